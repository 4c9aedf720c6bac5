// Package playback schedules synthesized-speech PCM gaplessly and keeps
// subtitle pacing from racing ahead of the audio. It owns the timing
// bookkeeping only; actually rendering samples is the audio output
// collaborator's job, reached through the Sink.
package playback

import (
	"sync"
	"time"
)

// Output format of the synthesized stream: 24 kHz mono 16-bit PCM.
const (
	sampleRate     = 24000
	bytesPerSample = 2
)

// Sink plays a PCM chunk starting at the given wall-clock time.
type Sink func(pcm []byte, start time.Time)

// Synchronizer queues PCM chunks back to back: each chunk starts at the
// later of "now" and the end of the previously scheduled chunk, so there is
// no overlap and no gap. Safe for concurrent use.
type Synchronizer struct {
	mu           sync.Mutex
	sink         Sink
	enabled      bool
	playing      bool
	turnStarted  bool // audio seen for the current turn; cleared by TurnDone
	nextPlayTime time.Time
	pendingDur   time.Duration // audio scheduled since the last turn boundary
	turnDur      time.Duration // total audio of the last completed turn
	onFirstChunk func()
	now          func() time.Time
}

func New(sink Sink) *Synchronizer {
	if sink == nil {
		sink = func([]byte, time.Time) {}
	}
	return &Synchronizer{sink: sink, now: time.Now}
}

// SetEnabled toggles voice output. Disabling tears scheduling state down so
// the next session starts clean.
func (s *Synchronizer) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	if !enabled {
		s.resetLocked()
	}
}

// SetOnFirstChunk registers the pending-start handshake: the callback fires
// when playback actually begins, releasing any captions held back for it.
func (s *Synchronizer) SetOnFirstChunk(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFirstChunk = fn
}

// Duration returns the play time of a PCM chunk in the stream format.
func Duration(pcm []byte) time.Duration {
	samples := len(pcm) / bytesPerSample
	return time.Duration(samples) * time.Second / sampleRate
}

// Schedule queues one PCM chunk for gapless playback. Returns false when
// voice output is disabled.
func (s *Synchronizer) Schedule(pcm []byte) bool {
	s.mu.Lock()
	if !s.enabled || len(pcm) == 0 {
		s.mu.Unlock()
		return false
	}

	d := Duration(pcm)
	start := s.now()
	if s.nextPlayTime.After(start) {
		start = s.nextPlayTime
	}
	s.nextPlayTime = start.Add(d)
	s.pendingDur += d

	first := !s.turnStarted
	s.turnStarted = true
	s.playing = true
	onFirst := s.onFirstChunk
	sink := s.sink
	s.mu.Unlock()

	sink(pcm, start)
	if first && onFirst != nil {
		onFirst()
	}
	return true
}

// TurnDone marks the end of one response's audio stream. The next Schedule
// call counts as the first chunk of a new turn and fires the handshake again.
func (s *Synchronizer) TurnDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnDur = s.pendingDur
	s.pendingDur = 0
	s.turnStarted = false
}

// Remaining reports how much scheduled audio has not played yet.
func (s *Synchronizer) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return 0
	}
	if r := s.nextPlayTime.Sub(s.now()); r > 0 {
		return r
	}
	return 0
}

// Playing reports whether any audio has been scheduled since the last reset.
func (s *Synchronizer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// TurnDuration returns the total audio length of the last completed turn.
func (s *Synchronizer) TurnDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turnDur
}

// Reset clears the schedule so a new session starts from zero.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Synchronizer) resetLocked() {
	s.playing = false
	s.turnStarted = false
	s.nextPlayTime = time.Time{}
	s.pendingDur = 0
	s.turnDur = 0
}
