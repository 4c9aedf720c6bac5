package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"parlo/internal/accumulator"
	"parlo/internal/audio"
	"parlo/internal/filter"
	"parlo/internal/playback"
	"parlo/internal/realtime"
	"parlo/internal/subtitle"
)

// fakeTransport is a scripted provider connection: tests push inbound events
// and inspect what the session sent.
type fakeTransport struct {
	mu          sync.Mutex
	events      chan realtime.Event
	failConnect bool
	connects    int
	closes      int
	appends     int
	commits     int
	responses   int
	deleted     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan realtime.Event, 64)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.failConnect {
		return fmt.Errorf("dial refused")
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) Events() <-chan realtime.Event { return f.events }

func (f *fakeTransport) AppendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appends++
	return nil
}

func (f *fakeTransport) CommitInput() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeTransport) CreateResponse() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses++
	return nil
}

func (f *fakeTransport) DeleteItem(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeTransport) responseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responses
}

func (f *fakeTransport) push(ev realtime.Event) { f.events <- ev }

func fastTuning() accumulator.Tuning {
	return accumulator.Tuning{
		CJKMinChars:   15,
		LatinMinChars: 40,
		LatinMinWords: 5,
		ShortFallback: 40 * time.Millisecond,
		LongFallback:  20 * time.Millisecond,
	}
}

func fastTiming() subtitle.Timing {
	return subtitle.Timing{
		PerWord:    time.Millisecond,
		PerCJKChar: time.Millisecond,
		MinDisplay: time.Millisecond,
		MaxDisplay: 5 * time.Millisecond,
	}
}

type harness struct {
	session   *Session
	source    *audio.FakeSource
	transport *fakeTransport
	pacer     *subtitle.Pacer
	player    *playback.Synchronizer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source:    audio.NewFakeSource(),
		transport: newFakeTransport(),
	}
	h.pacer = subtitle.New(fastTiming(), 40, func(text string, remaining int) {})
	h.player = playback.New(nil)
	h.session = New(Deps{
		Source:       h.source,
		NewTransport: func() Transport { return h.transport },
		Filter:       filter.New(nil),
		Accumulator:  accumulator.New(fastTuning()),
		Pacer:        h.pacer,
		Player:       h.player,
	})
	t.Cleanup(h.session.Stop)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.session.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (h *harness) lastSubmitted() string {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.session.lastSubmitted
}

func TestSentenceBoundarySubmitsImmediately(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Hello there."})

	waitFor(t, "no submission after sentence boundary", func() bool {
		return h.transport.responseCount() == 1
	})
	if got := h.lastSubmitted(); got != "Hello there." {
		t.Errorf("submitted %q, want the full buffer", got)
	}
	if st := h.session.Status(); st.State != "processing" {
		t.Errorf("state = %q, want processing while a turn is in flight", st.State)
	}
}

func TestSingleFlightAndNoSpeechLoss(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "First sentence."})
	waitFor(t, "first turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})

	// Fragments arriving while the turn is in flight must not submit.
	h.transport.push(realtime.TranscriptDone{Text: "Second one"})
	h.transport.push(realtime.TranscriptDone{Text: "arrives now."})
	time.Sleep(100 * time.Millisecond)
	if got := h.transport.responseCount(); got != 1 {
		t.Fatalf("responses = %d while a turn was in flight, want 1", got)
	}

	// Turn completion releases the next submission with everything buffered.
	h.transport.push(realtime.TranslationDone{Text: "첫 번째 문장입니다"})
	h.transport.push(realtime.TurnDone{})

	waitFor(t, "buffered speech not submitted after turn done", func() bool {
		return h.transport.responseCount() == 2
	})
	if got := h.lastSubmitted(); got != "Second one arrives now." {
		t.Errorf("second turn carried %q, want in-order joined fragments", got)
	}
}

func TestLengthFallbackTimerSubmits(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	// Below every readiness threshold: no punctuation, <40 chars, <5 words.
	h.transport.push(realtime.TranscriptDone{Text: "I think"})
	h.transport.push(realtime.TranscriptDone{Text: "we might"})

	waitFor(t, "fallback timer never submitted", func() bool {
		return h.transport.responseCount() == 1
	})
	if got := h.lastSubmitted(); got != "I think we might" {
		t.Errorf("fallback submitted %q", got)
	}
}

func TestHallucinationNeverReachesAccumulator(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "[Music]"})
	h.transport.push(realtime.TranscriptDone{Text: "♪"})
	h.transport.push(realtime.TranscriptDone{Text: "Thank you for watching!"})

	time.Sleep(100 * time.Millisecond)
	if got := h.transport.responseCount(); got != 0 {
		t.Errorf("responses = %d, hallucinations must not submit", got)
	}
	if st := h.session.Status(); len(st.Original) != 0 {
		t.Errorf("original log = %v, want empty", st.Original)
	}
}

func TestSilentTranscriptRejected(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.source.SetRecentSpeech(false)

	h.transport.push(realtime.TranscriptDone{Text: "Completely plausible sentence."})

	time.Sleep(100 * time.Millisecond)
	if st := h.session.Status(); len(st.Original) != 0 {
		t.Errorf("transcript without voice activity reached the log: %v", st.Original)
	}
}

func TestAssistantResponseRejected(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Say something."})
	waitFor(t, "turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})

	h.transport.push(realtime.TranslationDelta{Text: "I'm sorry, I didn't catch that."})
	h.transport.push(realtime.TranslationDone{Text: "I'm sorry, I didn't catch that."})
	h.transport.push(realtime.TurnDone{})

	waitFor(t, "turn never completed", func() bool {
		return !h.session.Status().Listening || h.session.Status().State == "listening"
	})
	st := h.session.Status()
	if len(st.Translated) != 0 {
		t.Errorf("translated log = %v, want assistant response rejected", st.Translated)
	}
	if st.QueueLen != 0 {
		t.Errorf("subtitle queue = %d, want 0", st.QueueLen)
	}
}

func TestDuplicateTranslationSuppressed(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	turn := func(transcript, translation string) {
		h.transport.push(realtime.TranscriptDone{Text: transcript})
		h.transport.push(realtime.TranslationDone{Text: translation})
		h.transport.push(realtime.TurnDone{})
	}

	turn("Good morning everyone.", "좋은 아침입니다")
	turn("Good morning once more.", "좋은 아침입니다")
	turn("How are you today.", "오늘 어떻게 지내세요")

	waitFor(t, "third translation never logged", func() bool {
		return len(h.session.Status().Translated) == 2
	})
	st := h.session.Status()
	if st.Translated[0] != "좋은 아침입니다" || st.Translated[1] != "오늘 어떻게 지내세요" {
		t.Errorf("translated log = %v, want duplicate dropped", st.Translated)
	}
}

func TestLedgerPrunedWithDeleteRequests(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Keep the context bounded."})
	waitFor(t, "turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})

	var ids []string
	for i := 0; i < 12; i++ {
		ids = append(ids, fmt.Sprintf("item_%d", i))
	}
	h.transport.push(realtime.TranslationDone{Text: "맥락을 제한하세요"})
	h.transport.push(realtime.TurnDone{ItemIDs: ids})

	waitFor(t, "oldest items never pruned", func() bool {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		return len(h.transport.deleted) == 2
	})
	h.transport.mu.Lock()
	defer h.transport.mu.Unlock()
	if h.transport.deleted[0] != "item_0" || h.transport.deleted[1] != "item_1" {
		t.Errorf("pruned %v, want the two oldest", h.transport.deleted)
	}
}

func TestReconnectWithholdsSubmissionUntilSessionReady(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.Disconnected{Err: fmt.Errorf("blip"), Reconnecting: true})
	waitFor(t, "session never entered reconnecting", func() bool {
		return h.session.Status().State == "connecting"
	})

	// Ready buffer, but no connection: submission must wait.
	h.transport.push(realtime.TranscriptDone{Text: "Hold this thought."})
	time.Sleep(100 * time.Millisecond)
	if got := h.transport.responseCount(); got != 0 {
		t.Fatalf("responses = %d while reconnecting, want 0", got)
	}

	h.transport.push(realtime.SessionReady{SessionID: "fresh"})
	waitFor(t, "buffered speech not submitted after reconnect", func() bool {
		return h.transport.responseCount() == 1
	})
	if got := h.lastSubmitted(); got != "Hold this thought." {
		t.Errorf("submitted %q after reconnect", got)
	}
}

func TestDisconnectClearsRepetitionRing(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Same sentence again."})
	waitFor(t, "transcript never logged", func() bool {
		return len(h.session.Status().Original) == 1
	})

	h.transport.push(realtime.Disconnected{Err: fmt.Errorf("blip"), Reconnecting: true})
	waitFor(t, "session never entered reconnecting", func() bool {
		return h.session.Status().State == "connecting"
	})
	h.transport.push(realtime.SessionReady{SessionID: "fresh"})

	// The recognizer restarted with the connection; the identical transcript
	// is not a loop now.
	h.transport.push(realtime.TranscriptDone{Text: "Same sentence again."})
	waitFor(t, "post-reconnect transcript rejected as a loop", func() bool {
		return len(h.session.Status().Original) == 2
	})
}

func TestCaptionsWaitForPlaybackStart(t *testing.T) {
	h := newHarness(t)
	h.session.SetVoice(true)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Speak this aloud."})
	waitFor(t, "turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})

	h.transport.push(realtime.TranslationDone{Text: "이것을 소리내어 말하세요"})
	waitFor(t, "translation never queued", func() bool {
		return h.session.Status().QueueLen > 0 || h.pacer.Running()
	})
	if h.pacer.Running() {
		t.Fatal("pacer started before playback, captions must wait for audio")
	}

	// First audio chunk releases the held captions.
	h.transport.push(realtime.AudioChunk{PCM: make([]byte, 4800)})
	waitFor(t, "captions never released", func() bool {
		return h.pacer.Running() || h.session.Status().QueueLen == 0
	})
	if !h.session.Status().Speaking {
		t.Error("speaking flag not set after playback started")
	}
}

func TestCaptionsReleasedEveryTurn(t *testing.T) {
	h := newHarness(t)
	h.session.SetVoice(true)
	h.start(t)

	// Turn 1: audio streams before the translation completes, so captions
	// are never held.
	h.transport.push(realtime.TranscriptDone{Text: "First utterance here."})
	waitFor(t, "first turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})
	h.transport.push(realtime.AudioChunk{PCM: make([]byte, 4800)})
	h.transport.push(realtime.TranslationDone{Text: "첫 번째 발화입니다"})
	h.transport.push(realtime.AudioDone{})
	h.transport.push(realtime.TurnDone{})
	waitFor(t, "first turn captions never drained", func() bool {
		return h.session.Status().QueueLen == 0 && !h.pacer.Running()
	})

	// Turn 2: translation completes before its first audio chunk; the held
	// captions must still be released when that chunk arrives.
	h.transport.push(realtime.TranscriptDone{Text: "Second utterance now."})
	waitFor(t, "second turn not submitted", func() bool {
		return h.transport.responseCount() == 2
	})
	h.transport.push(realtime.TranslationDone{Text: "두 번째 발화입니다"})
	waitFor(t, "second translation never queued", func() bool {
		return h.session.Status().QueueLen > 0
	})
	if h.pacer.Running() {
		t.Fatal("pacer started before the second turn's audio")
	}

	h.transport.push(realtime.AudioChunk{PCM: make([]byte, 4800)})
	waitFor(t, "second turn captions never released", func() bool {
		return h.pacer.Running() || h.session.Status().QueueLen == 0
	})
	if !h.session.Status().Speaking {
		t.Error("speaking flag not set on the second turn's audio")
	}
}

func TestSpeakingClearsAfterGrace(t *testing.T) {
	h := newHarness(t)
	h.session.SetVoice(true)
	h.session.deps.SpeakingGrace = 20 * time.Millisecond
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Brief utterance here."})
	waitFor(t, "turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})
	h.transport.push(realtime.AudioChunk{PCM: make([]byte, 480)})
	waitFor(t, "speaking never set", func() bool {
		return h.session.Status().Speaking
	})

	h.transport.push(realtime.AudioDone{})
	waitFor(t, "speaking never cleared after grace", func() bool {
		return !h.session.Status().Speaking
	})
}

func TestProviderErrorClearsInFlightTurn(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "This will fail."})
	waitFor(t, "turn not submitted", func() bool {
		return h.transport.responseCount() == 1
	})

	h.transport.push(realtime.APIError{Code: "server_error", Message: "internal"})

	// Next utterance must produce a fresh turn; the error does not wedge.
	h.transport.push(realtime.TranscriptDone{Text: "Try once more."})
	waitFor(t, "turn after error never submitted", func() bool {
		return h.transport.responseCount() == 2
	})
}

func TestAudioFailureAbortsBeforeConnecting(t *testing.T) {
	h := newHarness(t)
	h.source.FailStart(true)

	if err := h.session.Start(t.Context()); err == nil {
		t.Fatal("Start succeeded with no microphone")
	}
	h.transport.mu.Lock()
	connects := h.transport.connects
	h.transport.mu.Unlock()
	if connects != 0 {
		t.Errorf("connected %d times, want no connection when audio never started", connects)
	}
	if st := h.session.Status(); st.State != "error" {
		t.Errorf("state = %q, want error", st.State)
	}
}

func TestStopReturnsToReady(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Some speech here"})
	time.Sleep(20 * time.Millisecond)

	h.session.Stop()

	st := h.session.Status()
	if st.State != "ready" {
		t.Errorf("state = %q after Stop, want ready", st.State)
	}
	h.transport.mu.Lock()
	closes := h.transport.closes
	h.transport.mu.Unlock()
	if closes == 0 {
		t.Error("transport never closed")
	}
	if h.source.StopCalls() == 0 {
		t.Error("audio source never stopped")
	}
	if h.session.deps.Accumulator.Text() != "" {
		t.Error("accumulator not cleared on stop")
	}

	// Stop is idempotent and the session can start again.
	h.session.Stop()
	h.start(t)
	if !h.session.Listening() {
		t.Error("session did not restart after Stop")
	}
}

func TestClearEmptiesLogs(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.transport.push(realtime.TranscriptDone{Text: "Log this sentence."})
	waitFor(t, "transcript never logged", func() bool {
		return len(h.session.Status().Original) == 1
	})

	h.session.Clear()
	if st := h.session.Status(); len(st.Original) != 0 || len(st.Translated) != 0 {
		t.Errorf("logs survived Clear: %v / %v", st.Original, st.Translated)
	}
}

func TestAudioFramesAndCommitsForwarded(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.source.PushFrame([]byte{1, 2, 3, 4})
	h.source.PushCommit()

	waitFor(t, "frame or commit never forwarded", func() bool {
		h.transport.mu.Lock()
		defer h.transport.mu.Unlock()
		return h.transport.appends == 1 && h.transport.commits == 1
	})
}
