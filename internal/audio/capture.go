package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type CaptureConfig struct {
	SampleRate int
	Channels   int
	Format     string
	BufferSize int
	Device     string
	FrameDepth int

	// Amplitude gate for voice activity. Levels are RMS in [0, 1].
	SpeechThreshold float64
	MinSpeech       time.Duration
	SilenceHang     time.Duration
}

func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:      24000,
		Channels:        1,
		Format:          "s16le",
		BufferSize:      4800, // 100 ms at 24 kHz mono s16le
		Device:          "",
		FrameDepth:      20,
		SpeechThreshold: 0.02,
		MinSpeech:       600 * time.Millisecond,
		SilenceHang:     600 * time.Millisecond,
	}
}

// Capture reads microphone PCM from pw-record and gates it through an
// amplitude-based voice activity detector. It implements Source.
type Capture struct {
	config  CaptureConfig
	running atomic.Bool

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup

	frames  chan Frame
	commits chan struct{}

	levelBits  atomic.Uint64 // math.Float64bits of current RMS level
	lastSpeech atomic.Int64  // unix nanos of last frame above threshold
}

func NewCapture(config CaptureConfig) *Capture {
	return &Capture{config: config}
}

func NewDefaultCapture() *Capture { return NewCapture(DefaultCaptureConfig()) }

func (c *Capture) Start(ctx context.Context) error {
	if c.running.Load() {
		return fmt.Errorf("already capturing")
	}

	if err := c.validateConfig(); err != nil {
		return err
	}

	if err := CheckPipeWireAvailable(ctx); err != nil {
		return fmt.Errorf("PipeWire not available: %w", err)
	}

	captureCtx, cancel := context.WithCancel(ctx)

	c.frames = make(chan Frame, c.config.FrameDepth)
	c.commits = make(chan struct{}, 1)

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.running.Store(true)
	c.wg.Add(1)
	go c.captureLoop(captureCtx)

	return nil
}

func (c *Capture) Stop() error {
	if !c.running.Load() {
		return nil
	}

	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	c.wg.Wait()
	return nil
}

func (c *Capture) Frames() <-chan Frame     { return c.frames }
func (c *Capture) Commits() <-chan struct{} { return c.commits }

func (c *Capture) Level() float64 {
	return math.Float64frombits(c.levelBits.Load())
}

func (c *Capture) HadRecentSpeech(window time.Duration) bool {
	last := c.lastSpeech.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) <= window
}

func (c *Capture) captureLoop(ctx context.Context) {
	defer func() {
		close(c.frames)
		close(c.commits)
		c.running.Store(false)
		c.levelBits.Store(0)

		// Ensure any child process is reaped.
		c.mu.Lock()
		if c.cmd != nil {
			_ = c.cmd.Wait()
			c.cmd = nil
		}
		c.cancel = nil
		c.mu.Unlock()

		c.wg.Done()
	}()

	args := c.buildPwRecordArgs()
	cmd := exec.CommandContext(ctx, "pw-record", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		log.Error().Err(err).Msg("capture: create stdout pipe")
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		log.Error().Err(err).Msg("capture: create stderr pipe")
		return
	}

	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()

	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Msg("capture: start pw-record")
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug().Str("line", scanner.Text()).Msg("capture: pw-record stderr")
		}
	}()

	gate := newVADGate(c.config.SpeechThreshold, c.config.MinSpeech, c.config.SilenceHang)
	buffer := make([]byte, c.config.BufferSize)
	var droppedCount int
	lastDropLog := time.Now()

	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			now := time.Now()
			level := rmsLevel(buffer[:n])
			c.levelBits.Store(math.Float64bits(level))

			speech, commit := gate.feed(level, now)
			if level >= c.config.SpeechThreshold {
				c.lastSpeech.Store(now.UnixNano())
			}

			if speech {
				frameData := make([]byte, n)
				copy(frameData, buffer[:n])

				select {
				case c.frames <- Frame{Data: frameData, Timestamp: now}:
				case <-ctx.Done():
					return
				default:
					droppedCount++
					if time.Since(lastDropLog) > time.Second {
						log.Warn().Int("dropped", droppedCount).Msg("capture: frames dropped due to backpressure")
						lastDropLog = time.Now()
						droppedCount = 0
					}
				}
			}

			if commit {
				select {
				case c.commits <- struct{}{}:
				default:
				}
			}
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				log.Error().Err(readErr).Msg("capture: read audio")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *Capture) buildPwRecordArgs() []string {
	args := []string{
		"--format", c.config.Format,
		"--rate", strconv.Itoa(c.config.SampleRate),
		"--channels", strconv.Itoa(c.config.Channels),
		"-", // stdout
	}
	if c.config.Device != "" {
		args = append(args, "--target", c.config.Device)
	}
	return args
}

func (c *Capture) validateConfig() error {
	if c.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", c.config.SampleRate)
	}
	if c.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", c.config.Channels)
	}
	if c.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", c.config.BufferSize)
	}
	if c.config.FrameDepth <= 0 {
		return fmt.Errorf("invalid FrameDepth: %d", c.config.FrameDepth)
	}
	if c.config.Format != "s16le" {
		return fmt.Errorf("invalid Format: %q (only s16le supported)", c.config.Format)
	}
	if c.config.SpeechThreshold <= 0 || c.config.SpeechThreshold >= 1 {
		return fmt.Errorf("invalid SpeechThreshold: %f", c.config.SpeechThreshold)
	}
	frameBytes := 2 * c.config.Channels
	if c.config.BufferSize%frameBytes != 0 {
		log.Warn().
			Int("buffer_size", c.config.BufferSize).
			Int("frame_bytes", frameBytes).
			Msg("capture: buffer size not aligned to sample frames")
	}
	return nil
}

func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

// rmsLevel computes the root-mean-square amplitude of s16le PCM, normalized
// to [0, 1].
func rmsLevel(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		f := float64(s) / 32768
		sum += f * f
	}
	return math.Sqrt(sum / float64(n))
}

// vadGate tracks speech and silence runs. It passes frames through from
// the first above-threshold level until SilenceHang of quiet, and fires a
// commit when a speech run of at least MinSpeech ends.
type vadGate struct {
	threshold   float64
	minSpeech   time.Duration
	silenceHang time.Duration

	inSpeech     bool
	speechStart  time.Time
	lastAbove    time.Time
	speechEnough bool
}

func newVADGate(threshold float64, minSpeech, silenceHang time.Duration) *vadGate {
	return &vadGate{
		threshold:   threshold,
		minSpeech:   minSpeech,
		silenceHang: silenceHang,
	}
}

func (g *vadGate) feed(level float64, now time.Time) (speech, commit bool) {
	above := level >= g.threshold

	if above {
		if !g.inSpeech {
			g.inSpeech = true
			g.speechStart = now
			g.speechEnough = false
		}
		g.lastAbove = now
		if now.Sub(g.speechStart) >= g.minSpeech {
			g.speechEnough = true
		}
		return true, false
	}

	if !g.inSpeech {
		return false, false
	}

	// Quiet, but still within the hang window of the last speech frame.
	if now.Sub(g.lastAbove) < g.silenceHang {
		return true, false
	}

	commit = g.speechEnough
	g.inSpeech = false
	g.speechEnough = false
	return false, commit
}
