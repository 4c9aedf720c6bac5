// Package daemon runs the long-lived parlo process: it owns the control
// socket, the live configuration, and at most one listening session.
package daemon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"parlo/internal/accumulator"
	"parlo/internal/audio"
	"parlo/internal/bus"
	"parlo/internal/config"
	"parlo/internal/filter"
	"parlo/internal/notify"
	"parlo/internal/playback"
	"parlo/internal/realtime"
	"parlo/internal/session"
	"parlo/internal/subtitle"
	"parlo/internal/tts"
)

type Daemon struct {
	notifier notify.Notifier
	config   *config.Manager

	mu       sync.Mutex
	session  *session.Session
	starting bool // a listen command holds this while its session starts
	caption  string

	ctx    context.Context
	cancel context.CancelFunc
}

func New(n notify.Notifier) (*Daemon, error) {
	manager, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if n == nil {
		if manager.GetConfig().Notifications.Enabled {
			n = notify.Desktop{}
		} else {
			n = notify.Nop{}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		notifier: n,
		config:   manager,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.config.StartWatching(d.ctx); err != nil {
		log.Warn().Err(err).Msg("daemon: config watching unavailable")
	}
	defer d.config.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("daemon: shutting down")
		d.cancel()
	}()

	// Close the listener when context is done.
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Info().Msg("daemon: listening on control socket")

	defer d.stopListening()

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				log.Info().Msg("daemon: shutdown requested")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	line = strings.TrimRight(line, "\n")
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}
	cmd := line[0]
	payload := strings.TrimSpace(line[1:])

	switch cmd {
	case bus.CmdListen:
		if err := d.startListening(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK listening\n")

	case bus.CmdStop:
		d.stopListening()
		fmt.Fprint(c, "OK stopped\n")

	case bus.CmdStatus:
		fmt.Fprintf(c, "STATUS %s\n", d.statusLine())

	case bus.CmdClear:
		if s := d.currentSession(); s != nil {
			s.Clear()
		}
		fmt.Fprint(c, "OK cleared\n")

	case bus.CmdVoice:
		on, err := d.toggle(payload, d.voiceOn())
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		d.setVoice(on)
		fmt.Fprintf(c, "OK voice=%s\n", onOff(on))

	case bus.CmdSubtitle:
		on, err := d.toggle(payload, d.subtitleOn())
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		d.setSubtitle(on)
		fmt.Fprintf(c, "OK subtitle=%s\n", onOff(on))

	case bus.CmdDirection:
		if err := d.setDirection(payload); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK direction=%s\n", payload)

	case bus.CmdWidth:
		n, err := d.setWidth(payload)
		if err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprintf(c, "OK width=%d\n", n)

	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)

	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()

	default:
		log.Warn().Str("cmd", string(cmd)).Msg("daemon: unknown command")
		fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
	}
}

func (d *Daemon) currentSession() *session.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Daemon) listening() bool {
	s := d.currentSession()
	return s != nil && s.Listening()
}

func (d *Daemon) startListening() error {
	// Reserve the session slot before the slow start sequence so concurrent
	// listen commands cannot each build one.
	d.mu.Lock()
	if d.starting || (d.session != nil && d.session.Listening()) {
		d.mu.Unlock()
		return fmt.Errorf("already listening")
	}
	d.starting = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.starting = false
		d.mu.Unlock()
	}()

	cfg := d.config.GetConfig()
	if cfg.ResolveAPIKey() == "" {
		return fmt.Errorf("no API key configured (run 'parlo configure' or set OPENAI_API_KEY)")
	}

	s := d.buildSession(cfg)
	if err := s.Start(d.ctx); err != nil {
		go d.notifier.Error(err.Error())
		return err
	}

	d.mu.Lock()
	d.session = s
	d.mu.Unlock()

	go d.notifier.ListeningChanged(true)
	return nil
}

func (d *Daemon) stopListening() {
	d.mu.Lock()
	s := d.session
	d.session = nil
	d.caption = ""
	d.mu.Unlock()

	if s == nil {
		return
	}
	s.Stop()
	go d.notifier.ListeningChanged(false)
}

// buildSession assembles the collaborators for one listening session from
// the configuration current at start time. Config edits apply on the next
// start, except the toggles and width which route to the live session.
func (d *Daemon) buildSession(cfg *config.Config) *session.Session {
	apiKey := cfg.ResolveAPIKey()
	realtimeCfg := cfg.RealtimeConfig()

	deps := session.Deps{
		Source: audio.NewDefaultCapture(),
		NewTransport: func() session.Transport {
			return realtime.New(realtimeCfg)
		},
		Filter:         filter.New(nil),
		Accumulator:    accumulator.New(cfg.AccumulatorTuning()),
		Pacer:          subtitle.New(subtitle.DefaultTiming(), cfg.Subtitle.MaxChars, d.displayCaption),
		Player:         playback.New(playback.PipeWireSink()),
		ActivityWindow: cfg.ActivityWindow(),
	}

	if cfg.Tuning.SentenceCheck {
		deps.Checker = accumulator.NewCompletionChecker(apiKey)
	}

	if cfg.Voice.Enabled && cfg.Voice.Mode == "tts" {
		synth := tts.New(tts.Config{APIKey: apiKey, Voice: cfg.Voice.Name})
		deps.Speak = synth.Speak
	}

	s := session.New(deps)
	s.SetVoice(cfg.Voice.Enabled)
	s.SetSubtitle(cfg.Subtitle.Enabled)
	return s
}

func (d *Daemon) displayCaption(text string, remaining int) {
	d.mu.Lock()
	d.caption = text
	d.mu.Unlock()

	if text != "" {
		log.Info().Int("queued", remaining).Msg("caption: " + text)
	}
}

func (d *Daemon) statusLine() string {
	s := d.currentSession()
	if s == nil {
		return "state=ready listening=false"
	}

	st := s.Status()
	line := fmt.Sprintf("state=%s listening=%t speaking=%t voice=%t subtitle=%t queue=%d level=%.2f",
		st.State, st.Listening, st.Speaking, st.VoiceOn, st.SubtitleOn, st.QueueLen, st.Level)
	if st.State == "error" && st.Detail != "" {
		line += fmt.Sprintf(" detail=%q", st.Detail)
	}

	d.mu.Lock()
	caption := d.caption
	d.mu.Unlock()
	if caption != "" {
		line += fmt.Sprintf(" caption=%q", caption)
	}
	return line
}

func (d *Daemon) toggle(payload string, current bool) (bool, error) {
	switch payload {
	case "":
		return !current, nil
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid argument %q (use on or off)", payload)
	}
}

func (d *Daemon) voiceOn() bool {
	if s := d.currentSession(); s != nil {
		return s.Status().VoiceOn
	}
	return d.config.GetConfig().Voice.Enabled
}

func (d *Daemon) subtitleOn() bool {
	if s := d.currentSession(); s != nil {
		return s.Status().SubtitleOn
	}
	return d.config.GetConfig().Subtitle.Enabled
}

func (d *Daemon) setVoice(on bool) {
	if s := d.currentSession(); s != nil {
		s.SetVoice(on)
	}
	cfg := d.config.GetConfig()
	cfg.Voice.Enabled = on
	if err := config.Save(cfg); err != nil {
		log.Warn().Err(err).Msg("daemon: persist voice toggle")
	}
}

func (d *Daemon) setSubtitle(on bool) {
	if s := d.currentSession(); s != nil {
		s.SetSubtitle(on)
	}
	cfg := d.config.GetConfig()
	cfg.Subtitle.Enabled = on
	if err := config.Save(cfg); err != nil {
		log.Warn().Err(err).Msg("daemon: persist subtitle toggle")
	}
}

// setDirection changes the translation direction. Refused while a session
// is live: the provider instructions are negotiated at connect time.
func (d *Daemon) setDirection(payload string) error {
	if d.listening() {
		return fmt.Errorf("stop listening before changing direction")
	}

	cfg := d.config.GetConfig()
	cfg.Translation.Direction = payload
	if err := cfg.Validate(); err != nil {
		return err
	}
	return config.Save(cfg)
}

func (d *Daemon) setWidth(payload string) (int, error) {
	n, err := strconv.Atoi(payload)
	if err != nil {
		return 0, fmt.Errorf("invalid width %q", payload)
	}

	cfg := d.config.GetConfig()
	cfg.Subtitle.MaxChars = n
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if err := config.Save(cfg); err != nil {
		return 0, err
	}

	if s := d.currentSession(); s != nil {
		s.SetLineWidth(n)
	}
	return n, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
