// Package realtime manages the websocket session with the translation
// provider: connect and configure, keep-alive, scheduled session refresh,
// and a single delayed reconnect after an unexpected drop.
package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultURL   = "wss://api.openai.com/v1/realtime"
	defaultModel = "gpt-4o-realtime-preview"

	defaultConnectTimeout = 5 * time.Second
	defaultKeepAlive      = 30 * time.Second
	defaultRefreshCheck   = 60 * time.Second
	defaultSessionMaxAge  = 30 * time.Minute
	defaultIdleThreshold  = 10 * time.Second
	defaultReconnectDelay = 1500 * time.Millisecond
)

// Config describes one provider session.
type Config struct {
	APIKey string
	Model  string
	URL    string

	// Instructions is the full interpreter prompt, built by the caller from
	// the language pair, direction, and user context.
	Instructions string

	// TranscribeLang hints the input transcription language. Empty means
	// both directions are possible and the provider detects it.
	TranscribeLang string

	// Voice enables synthesized speech output under the given voice name.
	// Empty keeps the session text-only.
	Voice string

	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	RefreshCheck   time.Duration
	SessionMaxAge  time.Duration
	IdleThreshold  time.Duration
	ReconnectDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.RefreshCheck <= 0 {
		c.RefreshCheck = defaultRefreshCheck
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = defaultSessionMaxAge
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = defaultIdleThreshold
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
}

// wsConn is the slice of *websocket.Conn the client uses, injectable in tests.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, cfg Config) (wsConn, error)

func defaultDial(ctx context.Context, cfg Config) (wsConn, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("model", cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cfg.APIKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// Outgoing message types.
type sessionUpdate struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

type sessionSettings struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
	// Always null: segmentation is decided client side, never by server VAD.
	TurnDetection           *turnDetectionConfig `json:"turn_detection"`
	Temperature             float64              `json:"temperature,omitempty"`
	MaxResponseOutputTokens int                  `json:"max_response_output_tokens,omitempty"`
}

type transcriptionConfig struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetectionConfig struct {
	Type string `json:"type"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type typeOnly struct {
	Type string `json:"type"`
}

type itemDelete struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id"`
}

// Client owns one logical provider session across reconnects. Decoded
// events arrive on Events; sends go through the helper methods.
type Client struct {
	cfg  Config
	dial dialFunc

	events chan Event

	mu             sync.Mutex
	conn           wsConn
	intentional    bool
	gen            int // bumped by Connect and Close; stale dials are discarded
	connectedOnce  bool
	sessionStart   time.Time
	lastActivity   time.Time
	reconnectTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		dial:   defaultDial,
		events: make(chan Event, 100),
		now:    time.Now,
	}
}

// Events delivers decoded server events plus Disconnected notifications.
func (c *Client) Events() <-chan Event { return c.events }

// Connect dials the provider, configures the session, and starts the read
// and maintenance loops. An error here means no session was established;
// nothing is retried.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	if c.ctx == nil || c.ctx.Err() != nil {
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.intentional = false
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	return c.dialAndStart(ctx, gen)
}

// dialAndStart dials and configures the session, then installs the
// connection only if the client is still in the captured generation. A Close
// that lands while the dial is in flight bumps the generation, so the fresh
// connection is discarded instead of resurrecting a closed client.
func (c *Client) dialAndStart(ctx context.Context, gen int) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.dial(dialCtx, c.cfg)
	if err != nil {
		return err
	}

	if err := conn.WriteJSON(c.sessionConfig()); err != nil {
		conn.Close()
		return fmt.Errorf("configure session: %w", err)
	}

	c.mu.Lock()
	if c.intentional || gen != c.gen || c.conn != nil {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("client closed during connect")
	}
	c.conn = conn
	c.connectedOnce = true
	c.sessionStart = c.now()
	c.lastActivity = c.now()
	c.wg.Add(2)
	c.mu.Unlock()

	log.Debug().Str("model", c.cfg.Model).Msg("realtime: connected")

	go c.readLoop(conn)
	go c.maintainLoop(conn)
	return nil
}

// sessionConfig builds the session.update sent right after connecting and
// reused verbatim as the keep-alive heartbeat body.
func (c *Client) sessionConfig() sessionUpdate {
	settings := sessionSettings{
		Modalities:              []string{"text"},
		Instructions:            c.cfg.Instructions,
		InputAudioFormat:        "pcm16",
		InputAudioTranscription: &transcriptionConfig{Model: "whisper-1"},
		Temperature:             0.6,
		MaxResponseOutputTokens: 500,
	}
	if c.cfg.TranscribeLang != "" {
		settings.InputAudioTranscription.Language = c.cfg.TranscribeLang
	}
	if c.cfg.Voice != "" {
		settings.Modalities = []string{"text", "audio"}
		settings.Voice = c.cfg.Voice
		settings.OutputAudioFormat = "pcm16"
	}
	return sessionUpdate{Type: "session.update", Session: settings}
}

// Close ends the session on purpose: no reconnect follows.
func (c *Client) Close() error {
	c.mu.Lock()
	c.intentional = true
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	log.Debug().Msg("realtime: closed")
	return nil
}

// Connected reports whether a live connection exists right now.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// AppendAudio streams one PCM chunk into the provider's input buffer.
func (c *Client) AppendAudio(pcm []byte) error {
	c.touch()
	return c.write(audioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// CommitInput finalizes the buffered input segment into a conversation item.
func (c *Client) CommitInput() error {
	c.touch()
	return c.write(typeOnly{Type: "input_audio_buffer.commit"})
}

// CreateResponse asks for a translation of the conversation so far.
func (c *Client) CreateResponse() error {
	c.touch()
	return c.write(typeOnly{Type: "response.create"})
}

// DeleteItem prunes one conversation item server side.
func (c *Client) DeleteItem(id string) error {
	return c.write(itemDelete{Type: "conversation.item.delete", ItemID: id})
}

func (c *Client) write(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(v)
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = c.now()
	c.mu.Unlock()
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Client) readLoop(conn wsConn) {
	defer c.wg.Done()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn, err)
			return
		}

		ev, perr := parseServerEvent(message)
		if perr != nil {
			log.Warn().Err(perr).Msg("realtime: bad server event")
			continue
		}
		if ev == nil {
			continue
		}
		c.touch()
		c.emit(ev)
	}
}

// handleDrop classifies a read failure. An intentional close is silent; an
// unexpected one schedules exactly one delayed reconnect.
func (c *Client) handleDrop(conn wsConn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.intentional || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	delay := c.cfg.ReconnectDelay
	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
	c.mu.Unlock()

	log.Warn().Err(err).Dur("delay", delay).Msg("realtime: connection dropped, reconnecting")
	c.emit(Disconnected{Err: err, Reconnecting: true})
}

func (c *Client) reconnect() {
	c.mu.Lock()
	if c.intentional || c.conn != nil {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	gen := c.gen
	c.mu.Unlock()

	if err := c.dialAndStart(ctx, gen); err != nil {
		c.mu.Lock()
		closed := c.intentional || gen != c.gen
		c.mu.Unlock()
		if closed {
			return
		}
		log.Error().Err(err).Msg("realtime: reconnect failed")
		c.emit(Disconnected{Err: err, Reconnecting: false})
	}
}

// maintainLoop keeps the session warm and fresh: a periodic empty
// session.update stops idle timeouts, and once the session is old enough it
// is closed during a quiet moment so the reconnect starts a clean one.
func (c *Client) maintainLoop(conn wsConn) {
	defer c.wg.Done()

	keepAlive := time.NewTicker(c.cfg.KeepAlive)
	refresh := time.NewTicker(c.cfg.RefreshCheck)
	defer keepAlive.Stop()
	defer refresh.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-keepAlive.C:
			if !c.owns(conn) {
				return
			}
			if err := conn.WriteJSON(sessionUpdate{Type: "session.update"}); err != nil {
				return
			}

		case <-refresh.C:
			c.mu.Lock()
			stale := c.conn == conn &&
				c.now().Sub(c.sessionStart) >= c.cfg.SessionMaxAge &&
				c.now().Sub(c.lastActivity) >= c.cfg.IdleThreshold
			c.mu.Unlock()
			if !c.owns(conn) {
				return
			}
			if stale {
				log.Info().Msg("realtime: refreshing aged session")
				// Read loop sees the close as a drop and reconnects.
				conn.Close()
				return
			}
		}
	}
}

func (c *Client) owns(conn wsConn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}
