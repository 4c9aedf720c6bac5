package audio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeSource is a scripted Source for tests: frames and commit signals are
// pushed by the test, and the recent-speech answer is set directly.
type FakeSource struct {
	mu         sync.Mutex
	started    bool
	failStart  bool
	hadSpeech  bool
	level      float64
	frames     chan Frame
	commits    chan struct{}
	stopCalls  int
	startCalls int
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		frames:    make(chan Frame, 64),
		commits:   make(chan struct{}, 8),
		hadSpeech: true,
	}
}

func (f *FakeSource) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	if f.failStart {
		return fmt.Errorf("microphone unavailable")
	}
	f.started = true
	return nil
}

func (f *FakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.started = false
	return nil
}

func (f *FakeSource) Frames() <-chan Frame     { return f.frames }
func (f *FakeSource) Commits() <-chan struct{} { return f.commits }

func (f *FakeSource) Level() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

func (f *FakeSource) HadRecentSpeech(window time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hadSpeech
}

// Test controls.

func (f *FakeSource) PushFrame(data []byte) {
	f.frames <- Frame{Data: data, Timestamp: time.Now()}
}

func (f *FakeSource) PushCommit() { f.commits <- struct{}{} }

func (f *FakeSource) SetRecentSpeech(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hadSpeech = v
}

func (f *FakeSource) SetLevel(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = v
}

func (f *FakeSource) FailStart(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failStart = v
}

func (f *FakeSource) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeSource) StopCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}
