// Package session drives one listening session: audio frames in, provider
// events in, filtered transcripts through the accumulator, translations out
// to the logs, subtitle pacer, and playback. A single goroutine owns all
// session state transitions; public methods only read snapshots or toggle
// modes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"parlo/internal/accumulator"
	"parlo/internal/audio"
	"parlo/internal/filter"
	"parlo/internal/playback"
	"parlo/internal/realtime"
	"parlo/internal/subtitle"
)

const (
	// Transcript and translation logs keep this many entries.
	logBound = 50

	// Provider-side conversation items kept before pruning the oldest with
	// delete requests. Bounds server context growth and cost.
	ledgerBound = 10

	// The assistant-response early exit runs while the streaming translation
	// buffer is still shorter than this; past it, legitimate text containing
	// assistant-like substrings would false-positive.
	earlyCheckMaxRunes = 50

	defaultActivityWindow = 2500 * time.Millisecond
	defaultSpeakingGrace  = 500 * time.Millisecond
)

// Transport is the provider connection as the session consumes it.
// *realtime.Client satisfies it; tests use a scripted fake.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Events() <-chan realtime.Event
	AppendAudio(pcm []byte) error
	CommitInput() error
	CreateResponse() error
	DeleteItem(id string) error
}

// Deps are the session's collaborators, built by the daemon from config.
type Deps struct {
	Source       audio.Source
	NewTransport func() Transport
	Filter       *filter.Filter
	Accumulator  *accumulator.Accumulator

	// Checker is the optional LLM completeness check consulted before
	// length-triggered submissions. Nil skips it.
	Checker *accumulator.CompletionChecker

	Pacer  *subtitle.Pacer
	Player *playback.Synchronizer

	// Speak synthesizes PCM for one translation when voice output runs in
	// one-shot mode instead of the realtime audio modality. Nil disables it.
	Speak func(ctx context.Context, text string) ([]byte, error)

	// ActivityWindow is how far back voice activity must have occurred for a
	// transcript to be trusted.
	ActivityWindow time.Duration

	// SpeakingGrace delays the not-speaking transition after the audio
	// stream ends, avoiding flicker between consecutive utterances.
	SpeakingGrace time.Duration
}

// Status is a point-in-time snapshot for the UI surface.
type Status struct {
	State      string
	Detail     string
	Listening  bool
	Speaking   bool
	VoiceOn    bool
	SubtitleOn bool
	Level      float64
	QueueLen   int
	Live       string
	Original   []string
	Translated []string
}

type Session struct {
	deps Deps

	mu        sync.Mutex
	conn      ConnState
	turn      TurnState
	transport Transport
	detail    string

	speaking     bool
	captionsHeld bool // translation enqueued, waiting for playback to start
	audioStarted bool // this turn produced at least one audio chunk
	voiceOn      bool
	subtitleOn   bool

	live          string // streaming translation shown live
	liveRejected  bool   // early check discarded this turn's text
	earlyChecked  bool   // buffer grew past the early-check window
	lastSubmitted string

	original   []string
	translated []string
	ledger     []string // provider item ids, oldest first

	// Loop-owned timers; only the run goroutine touches them.
	fallback *time.Timer
	grace    *time.Timer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(deps Deps) *Session {
	if deps.ActivityWindow <= 0 {
		deps.ActivityWindow = defaultActivityWindow
	}
	if deps.SpeakingGrace <= 0 {
		deps.SpeakingGrace = defaultSpeakingGrace
	}
	s := &Session{deps: deps, conn: Disconnected, detail: "ready", subtitleOn: true}
	if deps.Player != nil {
		deps.Player.SetOnFirstChunk(s.onPlaybackStart)
	}
	return s
}

// Start begins a listening session: audio capture first, then the provider
// connection. If capture fails no connection is ever opened.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != Disconnected && s.conn != ConnError {
		s.mu.Unlock()
		return fmt.Errorf("already listening")
	}
	s.conn = Connecting
	s.detail = "starting"
	s.mu.Unlock()

	if err := s.deps.Source.Start(ctx); err != nil {
		s.fail("audio capture unavailable", err)
		return fmt.Errorf("start audio: %w", err)
	}

	transport := s.deps.NewTransport()
	if err := transport.Connect(ctx); err != nil {
		s.deps.Source.Stop()
		s.fail("connection failed", err)
		return fmt.Errorf("connect: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.transport = transport
	s.conn = Listening
	s.detail = "listening"
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx, transport)

	log.Info().Msg("session: listening started")
	return nil
}

// Stop tears the session down: loop stopped, timers dead, transport closed
// intentionally so no reconnect follows, buffers and rings cleared. Always
// lands back in ready.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if transport != nil {
		transport.Close()
	}
	s.wg.Wait()
	s.deps.Source.Stop()

	s.deps.Accumulator.Clear()
	s.deps.Filter.Reset()
	if s.deps.Pacer != nil {
		s.deps.Pacer.Clear()
	}
	if s.deps.Player != nil {
		s.deps.Player.Reset()
	}

	s.mu.Lock()
	s.conn = Disconnected
	s.turn = TurnIdle
	s.detail = "ready"
	s.speaking = false
	s.captionsHeld = false
	s.audioStarted = false
	s.live = ""
	s.liveRejected = false
	s.earlyChecked = false
	s.ledger = nil
	s.mu.Unlock()

	log.Info().Msg("session: stopped")
}

// Listening reports whether a session is active in any connection phase.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == Connecting || s.conn == Listening || s.conn == Reconnecting
}

// Status returns the UI snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.conn.String()
	switch {
	case s.conn == Disconnected:
		state = "ready"
	case s.conn == Listening && s.turn.inFlight():
		state = "processing"
	case s.conn == Reconnecting:
		state = "connecting"
	}

	st := Status{
		State:      state,
		Detail:     s.detail,
		Listening:  s.conn == Listening || s.conn == Reconnecting,
		Speaking:   s.speaking,
		VoiceOn:    s.voiceOn,
		SubtitleOn: s.subtitleOn,
		Level:      s.deps.Source.Level(),
		Live:       s.live,
		Original:   append([]string(nil), s.original...),
		Translated: append([]string(nil), s.translated...),
	}
	if s.deps.Pacer != nil {
		st.QueueLen = s.deps.Pacer.QueueLen()
	}
	return st
}

// Clear empties the transcript and translation logs.
func (s *Session) Clear() {
	s.mu.Lock()
	s.original = nil
	s.translated = nil
	s.live = ""
	s.mu.Unlock()
}

// SetVoice toggles spoken output. Takes effect for audio arriving from now
// on; the session config of an already-open connection is not renegotiated.
func (s *Session) SetVoice(on bool) {
	s.mu.Lock()
	s.voiceOn = on
	s.mu.Unlock()
	if s.deps.Player != nil {
		s.deps.Player.SetEnabled(on)
	}
}

// SetSubtitle toggles subtitle pacing. Turning it off drops queued chunks.
func (s *Session) SetSubtitle(on bool) {
	s.mu.Lock()
	s.subtitleOn = on
	s.mu.Unlock()
	if !on && s.deps.Pacer != nil {
		s.deps.Pacer.Clear()
	}
}

// SetLineWidth adjusts the subtitle split limit for future translations.
func (s *Session) SetLineWidth(chars int) {
	if s.deps.Pacer != nil {
		s.deps.Pacer.SetMaxChars(chars)
	}
}

func (s *Session) fail(msg string, err error) {
	s.mu.Lock()
	s.conn = ConnError
	s.detail = fmt.Sprintf("%s: %v", msg, err)
	s.mu.Unlock()
	log.Error().Err(err).Msg("session: " + msg)
}

// run is the session event loop. All turn and buffer mutation happens here,
// so event interleaving is strictly sequential.
func (s *Session) run(ctx context.Context, t Transport) {
	defer s.wg.Done()
	defer s.stopFallback()
	defer s.stopGrace()

	for {
		var fallbackC, graceC <-chan time.Time
		if s.fallback != nil {
			fallbackC = s.fallback.C
		}
		if s.grace != nil {
			graceC = s.grace.C
		}

		select {
		case <-ctx.Done():
			return

		case frame := <-s.deps.Source.Frames():
			if err := t.AppendAudio(frame.Data); err != nil {
				log.Debug().Err(err).Msg("session: audio append dropped")
			}

		case <-s.deps.Source.Commits():
			if err := t.CommitInput(); err != nil {
				log.Debug().Err(err).Msg("session: input commit dropped")
			}

		case ev, ok := <-t.Events():
			if !ok {
				return
			}
			s.handleEvent(ctx, t, ev)

		case <-fallbackC:
			s.fallback = nil
			s.onFallback(ctx, t)

		case <-graceC:
			s.grace = nil
			s.mu.Lock()
			s.speaking = false
			s.mu.Unlock()
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, t Transport, ev realtime.Event) {
	switch ev := ev.(type) {
	case realtime.SessionReady:
		s.mu.Lock()
		resumed := s.conn == Reconnecting
		if resumed {
			s.conn = Listening
			s.detail = "listening"
		}
		s.mu.Unlock()
		log.Debug().Str("session_id", ev.SessionID).Msg("session: provider session ready")
		if resumed {
			// Speech kept accumulating across the blip; submit it now.
			s.evaluate(ctx, t)
		}

	case realtime.InputCommitted:
		s.mu.Lock()
		s.ledger = append(s.ledger, ev.ItemID)
		s.mu.Unlock()

	case realtime.TranscriptDone:
		s.onTranscript(ctx, t, ev.Text)

	case realtime.TranslationDelta:
		s.onDelta(ev.Text)

	case realtime.TranslationDone:
		s.onTranslationDone(ctx, ev.Text)

	case realtime.AudioChunk:
		// A new turn's audio cancels the prior turn's speaking grace; the
		// first chunk re-raises the speaking flag through onPlaybackStart.
		s.stopGrace()
		if s.deps.Player != nil {
			s.deps.Player.Schedule(ev.PCM)
		}
		s.mu.Lock()
		s.audioStarted = true
		s.mu.Unlock()

	case realtime.AudioDone:
		s.armGrace()

	case realtime.TurnDone:
		s.onTurnDone(ctx, t, ev.ItemIDs)

	case realtime.APIError:
		s.mu.Lock()
		s.turn = TurnIdle
		s.detail = ev.Message
		s.live = ""
		s.liveRejected = false
		s.earlyChecked = false
		s.mu.Unlock()
		log.Warn().Str("code", ev.Code).Str("message", ev.Message).Msg("session: provider error")

	case realtime.Disconnected:
		s.onDisconnected(ev)
	}
}

func (s *Session) onTranscript(ctx context.Context, t Transport, text string) {
	hadSpeech := s.deps.Source.HadRecentSpeech(s.deps.ActivityWindow)
	if !s.deps.Filter.AdmitTranscript(text, hadSpeech) {
		return
	}

	s.mu.Lock()
	s.original = appendBounded(s.original, text)
	s.mu.Unlock()

	s.deps.Accumulator.Append(text)
	s.stopFallback()
	s.evaluate(ctx, t)
}

// evaluate decides what to do with the current buffer: submit, wait for the
// in-flight turn, consult the completeness check, or arm the fallback timer.
func (s *Session) evaluate(ctx context.Context, t Transport) {
	if s.deps.Accumulator.Empty() {
		return
	}

	switch s.deps.Accumulator.Readiness() {
	case accumulator.NotReady:
		s.armFallback(s.deps.Accumulator.FallbackDelay())

	case accumulator.ReadyPunctuation:
		s.submitIfIdle(t, "sentence boundary")

	case accumulator.ReadyLength:
		if s.turnInFlight() {
			// The turn-done handler re-evaluates; nothing is lost.
			return
		}
		if s.deps.Checker != nil && !s.deps.Checker.IsComplete(ctx, s.deps.Accumulator.Text()) {
			s.armFallback(s.deps.Accumulator.FallbackDelay())
			return
		}
		s.submitIfIdle(t, "length")
	}
}

func (s *Session) onFallback(ctx context.Context, t Transport) {
	s.mu.Lock()
	active := s.conn == Listening
	s.mu.Unlock()
	if !active || s.deps.Accumulator.Empty() {
		return
	}
	s.submitIfIdle(t, "timeout")
}

func (s *Session) turnInFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.inFlight()
}

// submitIfIdle issues a translation request for the buffered text unless a
// turn is already in flight. Single-flight: the buffer is cleared at submit
// time and the pending flag is set before the request goes out.
func (s *Session) submitIfIdle(t Transport, reason string) {
	s.mu.Lock()
	if s.turn.inFlight() || s.conn != Listening {
		s.mu.Unlock()
		return
	}
	s.turn = TurnSubmitted
	s.live = ""
	s.liveRejected = false
	s.earlyChecked = false
	s.audioStarted = false
	s.captionsHeld = false
	text := s.deps.Accumulator.Take()
	s.lastSubmitted = text
	s.mu.Unlock()

	log.Debug().Str("reason", reason).Str("text", text).Msg("session: requesting translation")
	if err := t.CreateResponse(); err != nil {
		log.Warn().Err(err).Msg("session: response request failed")
		s.mu.Lock()
		s.turn = TurnIdle
		s.mu.Unlock()
	}
}

func (s *Session) onDelta(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.turn == TurnSubmitted {
		s.turn = TurnStreaming
	}
	if s.liveRejected {
		return
	}

	s.live += delta

	// Early exit while the buffer is still short; an assistant-register
	// opener shows up in the first few words.
	if !s.earlyChecked {
		if s.deps.Filter.IsAssistantResponse(s.live) {
			s.liveRejected = true
			s.live = ""
			log.Debug().Msg("session: streaming text rejected early as assistant response")
			return
		}
		if len([]rune(s.live)) >= earlyCheckMaxRunes {
			s.earlyChecked = true
		}
	}
}

func (s *Session) onTranslationDone(ctx context.Context, text string) {
	s.mu.Lock()
	rejected := s.liveRejected
	if text == "" {
		// Some providers send an empty done payload; the streamed deltas
		// are authoritative then.
		text = s.live
	}
	s.live = ""
	s.mu.Unlock()

	if rejected {
		return
	}

	cleaned, ok := s.deps.Filter.AdmitTranslation(text)
	if !ok {
		return
	}

	s.mu.Lock()
	s.translated = appendBounded(s.translated, cleaned)
	subtitleOn := s.subtitleOn
	voiceOn := s.voiceOn
	speak := s.deps.Speak
	// With realtime voice active, captions wait for playback's first chunk
	// unless audio already started streaming for this turn.
	hold := voiceOn && speak == nil && !s.audioStarted
	s.captionsHeld = subtitleOn && hold
	s.mu.Unlock()

	if subtitleOn && s.deps.Pacer != nil {
		s.deps.Pacer.Enqueue(cleaned)
		if !hold {
			s.deps.Pacer.Start()
		}
	}

	if voiceOn && speak != nil {
		go s.speakOneShot(ctx, speak, cleaned)
	}
}

// speakOneShot synthesizes and schedules TTS audio off the event loop; the
// synthesis HTTP call must not stall audio forwarding.
func (s *Session) speakOneShot(ctx context.Context, speak func(context.Context, string) ([]byte, error), text string) {
	pcm, err := speak(ctx, text)
	if err != nil {
		log.Warn().Err(err).Msg("session: speech synthesis failed")
		return
	}
	if s.deps.Player != nil {
		s.deps.Player.Schedule(pcm)
		s.deps.Player.TurnDone()
	}
}

func (s *Session) onTurnDone(ctx context.Context, t Transport, itemIDs []string) {
	s.mu.Lock()
	s.turn = TurnIdle
	s.ledger = append(s.ledger, itemIDs...)
	var prune []string
	for len(s.ledger) > ledgerBound {
		prune = append(prune, s.ledger[0])
		s.ledger = s.ledger[1:]
	}
	s.mu.Unlock()

	if s.deps.Player != nil {
		s.deps.Player.TurnDone()
	}

	for _, id := range prune {
		if err := t.DeleteItem(id); err != nil {
			log.Debug().Err(err).Str("item", id).Msg("session: context prune failed")
		}
	}

	// Speech that accumulated during the turn becomes the next one.
	s.evaluate(ctx, t)
}

func (s *Session) onDisconnected(ev realtime.Disconnected) {
	s.mu.Lock()

	// Stale in-flight state would wedge every later turn.
	s.turn = TurnIdle
	s.live = ""
	s.liveRejected = false
	s.earlyChecked = false

	if ev.Reconnecting {
		s.conn = Reconnecting
		s.detail = "reconnecting"
	} else {
		s.conn = ConnError
		if ev.Err != nil {
			s.detail = ev.Err.Error()
		}
	}
	s.mu.Unlock()

	// The recognizer restarts on reconnect; repeats seen before the drop say
	// nothing about what comes after.
	s.deps.Filter.ClearRecentTranscriptions()

	if ev.Reconnecting {
		log.Warn().Err(ev.Err).Msg("session: connection dropped, reconnect pending")
	} else {
		log.Error().Err(ev.Err).Msg("session: connection lost")
	}
}

// onPlaybackStart is the pending-start handshake: captions held for voice
// output are released when the first audio chunk actually plays.
func (s *Session) onPlaybackStart() {
	s.mu.Lock()
	s.speaking = true
	release := s.captionsHeld
	s.captionsHeld = false
	s.mu.Unlock()

	if release && s.deps.Pacer != nil {
		s.deps.Pacer.Start()
	}
}

// Loop-owned timer helpers.

func (s *Session) armFallback(d time.Duration) {
	s.stopFallback()
	s.fallback = time.NewTimer(d)
}

func (s *Session) stopFallback() {
	if s.fallback != nil {
		s.fallback.Stop()
		s.fallback = nil
	}
}

func (s *Session) armGrace() {
	s.stopGrace()
	s.grace = time.NewTimer(s.deps.SpeakingGrace)
}

func (s *Session) stopGrace() {
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
}

func appendBounded(entries []string, entry string) []string {
	entries = append(entries, entry)
	if len(entries) > logBound {
		entries = entries[1:]
	}
	return entries
}
