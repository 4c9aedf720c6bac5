// Package accumulator buffers accepted transcript fragments and decides when
// the buffered text is worth submitting as one translation request: neither
// per-fragment (too chatty, no context) nor only at long silences (too laggy).
package accumulator

import (
	"regexp"
	"strings"
	"time"
)

// Readiness is the accumulator's verdict on the buffered text.
type Readiness int

const (
	NotReady Readiness = iota
	// ReadyPunctuation: the buffer ends in sentence-final punctuation or a
	// Korean sentence-final verb ending. Submit immediately.
	ReadyPunctuation
	// ReadyLength: no boundary marker, but the buffer is long enough that
	// waiting further only adds latency.
	ReadyLength
)

// Tuning holds the empirically tuned thresholds. The numbers drifted across
// the app's history, so they are configuration, not constants.
type Tuning struct {
	CJKMinChars   int           // length trigger for CJK scripts
	LatinMinChars int           // length trigger for space-delimited scripts
	LatinMinWords int           // word-count trigger for space-delimited scripts
	ShortFallback time.Duration // fallback timer for short buffers
	LongFallback  time.Duration // fallback timer for substantial/CJK buffers
}

func DefaultTuning() Tuning {
	return Tuning{
		CJKMinChars:   15,
		LatinMinChars: 40,
		LatinMinWords: 5,
		ShortFallback: 2500 * time.Millisecond,
		LongFallback:  1200 * time.Millisecond,
	}
}

var (
	latinSentenceEnd = regexp.MustCompile(`[.!?]$`)
	cjkSentenceEnd   = regexp.MustCompile(`[。！？]$`)
	cjkRange         = regexp.MustCompile(`[\x{3131}-\x{D79D}\x{4E00}-\x{9FFF}\x{3040}-\x{309F}\x{30A0}-\x{30FF}]`)
)

// Korean sentences frequently end without punctuation; these verb endings
// mark a finished clause reliably enough to submit on.
var koreanFinalEndings = []string{
	"습니다", "습니까", "입니다", "입니까",
	"세요", "어요", "아요", "에요", "예요",
	"네요", "군요", "거든요", "잖아요",
	"지요", "죠", "을까요", "게요",
}

// Accumulator is the per-session fragment buffer. Not safe for concurrent
// use; the session owns it and drives it from its event loop.
type Accumulator struct {
	tuning Tuning
	buf    string
}

func New(tuning Tuning) *Accumulator {
	return &Accumulator{tuning: tuning}
}

// Append joins an accepted fragment onto the buffer, space-separated.
func (a *Accumulator) Append(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	if a.buf == "" {
		a.buf = fragment
	} else {
		a.buf += " " + fragment
	}
}

func (a *Accumulator) Text() string { return a.buf }
func (a *Accumulator) Empty() bool  { return a.buf == "" }

// Take returns the buffered text and clears the buffer. The clear happens at
// submit time, never at completion time: fragments arriving while a turn is
// in flight start a fresh buffer for the next turn.
func (a *Accumulator) Take() string {
	text := a.buf
	a.buf = ""
	return text
}

func (a *Accumulator) Clear() { a.buf = "" }

// Readiness evaluates the buffered text.
func (a *Accumulator) Readiness() Readiness {
	text := strings.TrimSpace(a.buf)
	if text == "" {
		return NotReady
	}

	if latinSentenceEnd.MatchString(text) || cjkSentenceEnd.MatchString(text) {
		return ReadyPunctuation
	}
	for _, ending := range koreanFinalEndings {
		if strings.HasSuffix(text, ending) {
			return ReadyPunctuation
		}
	}

	if cjkRange.MatchString(text) {
		if len([]rune(text)) >= a.tuning.CJKMinChars {
			return ReadyLength
		}
		return NotReady
	}

	if len(text) >= a.tuning.LatinMinChars {
		return ReadyLength
	}
	if len(strings.Fields(text)) >= a.tuning.LatinMinWords {
		return ReadyLength
	}
	return NotReady
}

// FallbackDelay picks the timer used when the buffer is not ready: text that
// already looks substantial is presumed near-complete and gets the shorter
// wait.
func (a *Accumulator) FallbackDelay() time.Duration {
	text := strings.TrimSpace(a.buf)
	if cjkRange.MatchString(text) || len(text) >= a.tuning.LatinMinChars/2 {
		return a.tuning.LongFallback
	}
	return a.tuning.ShortFallback
}
