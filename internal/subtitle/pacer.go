// Package subtitle turns completed translations into screen-width-bounded
// chunks and paces their display to estimated reading speed, so long or
// rapidly-arriving translations read as captions instead of a wall of text.
package subtitle

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Timing holds the reading-speed model. Values were tuned by eye in the
// original app; keep them adjustable.
type Timing struct {
	PerWord    time.Duration // space-delimited scripts
	PerCJKChar time.Duration // CJK scripts
	MinDisplay time.Duration // floor, avoids flicker on tiny chunks
	MaxDisplay time.Duration // ceiling, avoids stalling on huge chunks
}

func DefaultTiming() Timing {
	return Timing{
		PerWord:    280 * time.Millisecond,
		PerCJKChar: 135 * time.Millisecond,
		MinDisplay: 300 * time.Millisecond,
		MaxDisplay: 3 * time.Second,
	}
}

var (
	sentenceBoundary = regexp.MustCompile(`([.!?。！？])\s*`)
	clauseBoundary   = regexp.MustCompile(`([,;:，、；：])\s*`)
)

// Split breaks text into chunks of at most maxChars characters, preferring
// sentence boundaries, then clause boundaries, then word boundaries, with a
// hard rune cut only when a single unbreakable run exceeds the limit.
// maxChars comes from the display layer; the pacer does no layout math.
func Split(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= maxChars {
		return []string{text}
	}

	sep := " "
	if isCJK(text) {
		sep = ""
	}
	var chunks []string
	for _, sentence := range splitAfter(text, sentenceBoundary) {
		chunks = append(chunks, splitClause(sentence, maxChars)...)
	}
	return pack(chunks, maxChars, sep)
}

func splitClause(text string, maxChars int) []string {
	if runeLen(text) <= maxChars {
		return []string{text}
	}
	var parts []string
	for _, clause := range splitAfter(text, clauseBoundary) {
		parts = append(parts, splitWords(clause, maxChars)...)
	}
	return parts
}

func splitWords(text string, maxChars int) []string {
	if runeLen(text) <= maxChars {
		return []string{text}
	}
	if !strings.ContainsAny(text, " \t") {
		return hardCut(text, maxChars)
	}

	var parts []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if runeLen(candidate) <= maxChars {
			current = candidate
			continue
		}
		if current != "" {
			parts = append(parts, current)
		}
		if runeLen(word) > maxChars {
			parts = append(parts, hardCut(word, maxChars)...)
			current = ""
		} else {
			current = word
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

// hardCut slices an atomic run that exceeds the limit. The only case where a
// returned chunk may still exceed maxChars is maxChars <= 0.
func hardCut(text string, maxChars int) []string {
	if maxChars <= 0 {
		return []string{text}
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > maxChars {
		parts = append(parts, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// splitAfter splits text after each boundary match, keeping the boundary
// punctuation attached to the preceding piece.
func splitAfter(text string, re *regexp.Regexp) []string {
	var parts []string
	rest := text
	for {
		loc := re.FindStringIndex(rest)
		if loc == nil || loc[1] >= len(rest) {
			break
		}
		parts = append(parts, strings.TrimSpace(rest[:loc[1]]))
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// pack greedily merges adjacent pieces back together while they fit, so that
// a sentence split into many clauses does not flicker by in fragments.
func pack(pieces []string, maxChars int, sep string) []string {
	var out []string
	current := ""
	for _, p := range pieces {
		if current == "" {
			current = p
			continue
		}
		if candidate := current + sep + p; runeLen(candidate) <= maxChars {
			current = candidate
			continue
		}
		out = append(out, current)
		current = p
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func runeLen(s string) int { return len([]rune(s)) }

func isCJK(s string) bool { return !strings.ContainsAny(s, " \t") }

// Chunk is one display unit with its scheduled on-screen duration.
type Chunk struct {
	Text     string
	Duration time.Duration
}

// Pacer owns the FIFO subtitle queue and the single timer chain that
// advances it. Safe for concurrent use.
type Pacer struct {
	timing  Timing
	display func(text string, remaining int)

	mu       sync.Mutex
	maxChars int
	queue    []Chunk
	running  bool
	timer    *time.Timer
}

// New creates a pacer that reports each displayed chunk (and the remaining
// queue length) through display. display("" , 0) means the queue drained.
func New(timing Timing, maxChars int, display func(text string, remaining int)) *Pacer {
	if display == nil {
		display = func(string, int) {}
	}
	return &Pacer{timing: timing, display: display, maxChars: maxChars}
}

// SetMaxChars updates the line width used for future translations.
func (p *Pacer) SetMaxChars(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.maxChars = n
	}
}

// Durations assigns each chunk of one translation a display time
// proportional to its share of the whole translation's estimated reading
// time, clamped to the configured floor and ceiling.
func (p *Pacer) Durations(chunks []string) []Chunk {
	natural := make([]time.Duration, len(chunks))
	var total time.Duration
	totalChars := 0
	for i, c := range chunks {
		if isCJK(c) {
			natural[i] = time.Duration(runeLen(c)) * p.timing.PerCJKChar
		} else {
			natural[i] = time.Duration(len(strings.Fields(c))) * p.timing.PerWord
		}
		total += natural[i]
		totalChars += runeLen(c)
	}

	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		d := natural[i]
		if len(chunks) > 1 && totalChars > 0 {
			d = total * time.Duration(runeLen(c)) / time.Duration(totalChars)
		}
		out[i] = Chunk{Text: c, Duration: p.clamp(d)}
	}
	return out
}

func (p *Pacer) clamp(d time.Duration) time.Duration {
	if d < p.timing.MinDisplay {
		return p.timing.MinDisplay
	}
	if d > p.timing.MaxDisplay {
		return p.timing.MaxDisplay
	}
	return d
}

// Enqueue splits a completed translation and appends its chunks to the
// queue. It never replaces unshown chunks; bursts of fast translations
// accumulate. Display does not start until Start is called.
func (p *Pacer) Enqueue(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	chunks := Split(text, p.maxChars)
	p.queue = append(p.queue, p.Durations(chunks)...)
	return len(chunks)
}

// Start begins (or resumes) the display chain. A no-op when the queue is
// empty or a chain is already running: only one timer drives advancement.
func (p *Pacer) Start() {
	p.mu.Lock()
	if p.running || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()
	p.advance()
}

// Running reports whether a display chain is active.
func (p *Pacer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// QueueLen returns the number of unshown chunks.
func (p *Pacer) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pacer) advance() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if len(p.queue) == 0 {
		p.running = false
		p.timer = nil
		p.mu.Unlock()
		return
	}
	chunk := p.queue[0]
	p.queue = p.queue[1:]
	remaining := len(p.queue)
	p.timer = time.AfterFunc(chunk.Duration, p.advance)
	p.mu.Unlock()

	p.display(chunk.Text, remaining)
}

// Clear cancels the timer chain and empties the queue; used when subtitle
// display is turned off or the session stops.
func (p *Pacer) Clear() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.queue = nil
	p.running = false
	p.mu.Unlock()

	p.display("", 0)
}
