package accumulator

import (
	"testing"
	"time"
)

func TestReadinessPunctuation(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"latin period", "Hello there."},
		{"latin question", "Are you coming?"},
		{"latin exclamation", "Watch out!"},
		{"cjk period", "회의를 시작하겠습니다。"},
		{"korean formal ending", "회의를 시작하겠습니다"},
		{"korean polite ending", "내일 다시 올게요"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := New(DefaultTuning())
			a.Append(tc.text)
			if got := a.Readiness(); got != ReadyPunctuation {
				t.Errorf("Readiness() = %v, want ReadyPunctuation", got)
			}
		})
	}
}

func TestReadinessLength(t *testing.T) {
	t.Run("latin by characters", func(t *testing.T) {
		a := New(Tuning{CJKMinChars: 15, LatinMinChars: 20, LatinMinWords: 99,
			ShortFallback: time.Second, LongFallback: time.Second})
		a.Append("aaaaaaaaaa bbbbbbbbbb")
		if got := a.Readiness(); got != ReadyLength {
			t.Errorf("Readiness() = %v, want ReadyLength", got)
		}
	})

	t.Run("latin by words", func(t *testing.T) {
		a := New(DefaultTuning())
		a.Append("one two three four five")
		if got := a.Readiness(); got != ReadyLength {
			t.Errorf("Readiness() = %v, want ReadyLength", got)
		}
	})

	t.Run("cjk by characters", func(t *testing.T) {
		a := New(DefaultTuning())
		a.Append("오늘 날씨가 정말 좋은 것 같은데")
		if got := a.Readiness(); got != ReadyLength {
			t.Errorf("Readiness() = %v, want ReadyLength", got)
		}
	})

	t.Run("cjk below threshold", func(t *testing.T) {
		a := New(DefaultTuning())
		a.Append("오늘 날씨가")
		if got := a.Readiness(); got != NotReady {
			t.Errorf("Readiness() = %v, want NotReady", got)
		}
	})

	t.Run("short latin not ready", func(t *testing.T) {
		a := New(DefaultTuning())
		a.Append("I think")
		a.Append("we might")
		if got := a.Readiness(); got != NotReady {
			t.Errorf("Readiness() = %v, want NotReady", got)
		}
	})
}

func TestAppendJoinsWithSpaces(t *testing.T) {
	a := New(DefaultTuning())
	a.Append("I think")
	a.Append(" we should ")
	a.Append("go now")
	if got := a.Text(); got != "I think we should go now" {
		t.Errorf("Text() = %q", got)
	}
}

func TestTakeClearsBuffer(t *testing.T) {
	a := New(DefaultTuning())
	a.Append("Hello there.")
	if got := a.Take(); got != "Hello there." {
		t.Errorf("Take() = %q", got)
	}
	if !a.Empty() {
		t.Error("buffer not empty after Take")
	}
	// Fragments after Take start a fresh buffer.
	a.Append("Second sentence.")
	if got := a.Text(); got != "Second sentence." {
		t.Errorf("Text() after Take = %q", got)
	}
}

func TestFallbackDelay(t *testing.T) {
	tuning := DefaultTuning()

	t.Run("short latin waits longer", func(t *testing.T) {
		a := New(tuning)
		a.Append("I think")
		if got := a.FallbackDelay(); got != tuning.ShortFallback {
			t.Errorf("FallbackDelay() = %v, want %v", got, tuning.ShortFallback)
		}
	})

	t.Run("cjk gets the short wait", func(t *testing.T) {
		a := New(tuning)
		a.Append("오늘 날씨가")
		if got := a.FallbackDelay(); got != tuning.LongFallback {
			t.Errorf("FallbackDelay() = %v, want %v", got, tuning.LongFallback)
		}
	})

	t.Run("substantial latin gets the short wait", func(t *testing.T) {
		a := New(tuning)
		a.Append("a buffer with enough text in")
		if got := a.FallbackDelay(); got != tuning.LongFallback {
			t.Errorf("FallbackDelay() = %v, want %v", got, tuning.LongFallback)
		}
	})
}

func TestNilCheckerFailsOpen(t *testing.T) {
	var c *CompletionChecker
	if !c.IsComplete(t.Context(), "anything at all") {
		t.Error("nil checker must fail open")
	}
	if NewCompletionChecker("") != nil {
		t.Error("empty key should produce a nil checker")
	}
}
