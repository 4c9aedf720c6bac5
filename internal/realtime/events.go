package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Event is one decoded provider event. The wire format is parsed exactly
// once, at the read loop; everything downstream switches on these types
// instead of re-inspecting JSON.
type Event interface {
	isEvent()
}

// SessionReady arrives once per connection after the session is created.
type SessionReady struct {
	SessionID string
	Model     string
}

// InputCommitted confirms a finalized input segment and carries the
// conversation item id the provider assigned to it.
type InputCommitted struct {
	ItemID string
}

// TranscriptDone is the final transcription of one committed input segment.
type TranscriptDone struct {
	ItemID string
	Text   string
}

// TranslationDelta is an incremental piece of the translated text.
type TranslationDelta struct {
	Text string
}

// TranslationDone carries the complete translated text for the turn.
type TranslationDone struct {
	Text string
}

// AudioChunk is one chunk of synthesized speech, already base64-decoded
// into 24 kHz mono s16 PCM.
type AudioChunk struct {
	PCM []byte
}

// AudioDone marks the end of the synthesized audio stream for the turn.
type AudioDone struct{}

// TurnDone marks the end of the whole response, with the ids of the
// conversation items the response produced.
type TurnDone struct {
	ItemIDs []string
}

// APIError is an error event from the provider. The connection stays up.
type APIError struct {
	Code    string
	Message string
}

func (e APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Disconnected reports that the connection dropped. Reconnecting is true
// when the client has scheduled an automatic reconnect.
type Disconnected struct {
	Err          error
	Reconnecting bool
}

func (SessionReady) isEvent()     {}
func (InputCommitted) isEvent()   {}
func (TranscriptDone) isEvent()   {}
func (TranslationDelta) isEvent() {}
func (TranslationDone) isEvent()  {}
func (AudioChunk) isEvent()       {}
func (AudioDone) isEvent()        {}
func (TurnDone) isEvent()         {}
func (APIError) isEvent()         {}
func (Disconnected) isEvent()     {}

// serverEvent mirrors the provider's wire envelope. Only the fields the
// handled event types use are declared.
type serverEvent struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	Session    *sessionInfo    `json:"session,omitempty"`
	Error      *serverError    `json:"error,omitempty"`
	ItemID     string          `json:"item_id,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Text       string          `json:"text,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	Response   *serverResponse `json:"response,omitempty"`
}

type sessionInfo struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

type serverError struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
}

type serverResponse struct {
	ID     string               `json:"id"`
	Output []serverResponseItem `json:"output"`
}

type serverResponseItem struct {
	ID string `json:"id"`
}

// parseServerEvent decodes one wire message into an Event. Events the
// session does not act on decode to (nil, nil) and are skipped; a malformed
// message is an error.
func parseServerEvent(data []byte) (Event, error) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("parse server event: %w", err)
	}

	switch ev.Type {
	case "session.created":
		e := SessionReady{}
		if ev.Session != nil {
			e.SessionID = ev.Session.ID
			e.Model = ev.Session.Model
		}
		return e, nil

	case "input_audio_buffer.committed":
		return InputCommitted{ItemID: ev.ItemID}, nil

	case "conversation.item.input_audio_transcription.completed":
		return TranscriptDone{ItemID: ev.ItemID, Text: ev.Transcript}, nil

	case "response.text.delta", "response.audio_transcript.delta":
		return TranslationDelta{Text: ev.Delta}, nil

	case "response.text.done":
		return TranslationDone{Text: ev.Text}, nil

	case "response.audio_transcript.done":
		return TranslationDone{Text: ev.Transcript}, nil

	case "response.audio.delta":
		pcm, err := base64.StdEncoding.DecodeString(ev.Delta)
		if err != nil {
			return nil, fmt.Errorf("decode audio delta: %w", err)
		}
		return AudioChunk{PCM: pcm}, nil

	case "response.audio.done":
		return AudioDone{}, nil

	case "response.done":
		e := TurnDone{}
		if ev.Response != nil {
			for _, item := range ev.Response.Output {
				e.ItemIDs = append(e.ItemIDs, item.ID)
			}
		}
		return e, nil

	case "error":
		e := APIError{}
		if ev.Error != nil {
			e.Code = ev.Error.Code
			e.Message = ev.Error.Message
		}
		return e, nil
	}

	// session.updated, rate_limits.updated, item lifecycle noise
	return nil, nil
}
