// Package audio defines the contract with the capture layer and ships a
// pw-record reference implementation. The session only needs the byte
// stream, the silence-derived commit signal, and a recent-speech
// corroboration check; everything device-specific stays behind Source.
package audio

import (
	"context"
	"time"
)

// Frame is one chunk of speech-likely PCM from the capture layer.
type Frame struct {
	Data      []byte
	Timestamp time.Time
}

// Source is implemented by the capture layer. The VAD behind it sends a
// commit signal after roughly 600 ms of silence following at least 600 ms
// of speech, matching the thresholds the translation quality was tuned on.
type Source interface {
	// Start begins capture. An error here aborts the listening-start
	// sequence before any provider session is configured.
	Start(ctx context.Context) error

	// Stop tears capture down. Safe to call when not started.
	Stop() error

	// Frames delivers PCM chunks while speech is detected.
	Frames() <-chan Frame

	// Commits signals that a silence threshold was crossed and the buffered
	// input segment should be finalized.
	Commits() <-chan struct{}

	// Level returns the current amplitude in [0, 1] for visualization.
	Level() float64

	// HadRecentSpeech reports whether voice activity occurred within the
	// given window. Transcripts arriving without it are hallucinations of
	// silence or background noise.
	HadRecentSpeech(window time.Duration) bool
}
