package keyword

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

const (
	// DefaultWindow is the tail of audio transcribed per scan. Long enough
	// to hear the keyword with context, short enough for sub-second
	// inference on a tiny model.
	DefaultWindow = 1500 * time.Millisecond

	// DefaultInterval is the amount of new audio that must accumulate
	// between scans.
	DefaultInterval = 600 * time.Millisecond

	// DefaultScanTimeout bounds a single scan. A model slower than this is
	// useless for live spotting; the scan is dropped and the silence
	// timeout remains as the safety net.
	DefaultScanTimeout = 2 * time.Second
)

// SpotterOption is a functional option for configuring a [Spotter].
type SpotterOption func(*Spotter)

// WithWindow sets the tail-window duration transcribed per scan.
func WithWindow(d time.Duration) SpotterOption {
	return func(s *Spotter) { s.window = d }
}

// WithInterval sets how much new audio accumulates between scans.
func WithInterval(d time.Duration) SpotterOption {
	return func(s *Spotter) { s.interval = d }
}

// WithScanTimeout bounds a single scan's inference time.
func WithScanTimeout(d time.Duration) SpotterOption {
	return func(s *Spotter) { s.scanTimeout = d }
}

// Spotter listens for the end keyword while a command is still being
// recorded. Every interval's worth of new audio it transcribes the last
// window of the capture buffer in the background and reports a hit when the
// window's transcript ends with the keyword.
//
// Scans run on a local model via the supplied transcriber; they overlap
// neither each other (a busy scan skips the next trigger) nor the capture
// loop (Feed never blocks on inference). A scan error is logged and
// swallowed; spotting is an accelerator, the silence timeout still ends
// the command without it.
//
// Feed and Reset must be called from a single goroutine; Hits may be read
// from anywhere.
type Spotter struct {
	matcher     *Matcher
	tr          stt.Transcriber
	window      time.Duration
	interval    time.Duration
	scanTimeout time.Duration

	mu   sync.Mutex
	tail []int16
	rate int

	sinceScan int // samples accumulated since the last scan
	gen       atomic.Int64
	inFlight  atomic.Bool
	hits      chan string
}

// NewSpotter creates a Spotter. tr should be a cheap local transcriber; m
// decides what counts as the keyword.
func NewSpotter(tr stt.Transcriber, m *Matcher, opts ...SpotterOption) *Spotter {
	s := &Spotter{
		matcher:     m,
		tr:          tr,
		window:      DefaultWindow,
		interval:    DefaultInterval,
		scanTimeout: DefaultScanTimeout,
		hits:        make(chan string, 1),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Hits emits the window transcript that ended with the keyword, at most one
// pending at a time.
func (s *Spotter) Hits() <-chan string { return s.hits }

// Feed appends freshly captured samples and starts a background scan when
// enough new audio has accumulated. It never blocks on inference.
func (s *Spotter) Feed(samples []int16, rate int) {
	if len(samples) == 0 || rate <= 0 {
		return
	}

	s.mu.Lock()
	s.rate = rate
	s.tail = append(s.tail, samples...)
	if maxTail := s.durationSamples(s.window); len(s.tail) > maxTail {
		s.tail = append(s.tail[:0:0], s.tail[len(s.tail)-maxTail:]...)
	}
	s.sinceScan += len(samples)
	trigger := s.sinceScan >= s.durationSamples(s.interval)
	if trigger {
		s.sinceScan = 0
	}
	s.mu.Unlock()

	if !trigger {
		return
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		// Previous scan still running; its window covers this audio's
		// predecessor and the next trigger covers this one.
		return
	}

	s.mu.Lock()
	pcm := make([]int16, len(s.tail))
	copy(pcm, s.tail)
	scanRate := s.rate
	s.mu.Unlock()

	go s.scan(pcm, scanRate, s.gen.Load())
}

// scan transcribes one window and posts a hit if it ends with the keyword.
func (s *Spotter) scan(pcm []int16, rate int, gen int64) {
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.scanTimeout)
	defer cancel()

	text, err := s.tr.Transcribe(ctx, pcm, rate)
	if err != nil {
		slog.Debug("keyword scan failed", "transcriber", s.tr.Name(), "error", err)
		return
	}
	if gen != s.gen.Load() {
		// The session ended while we were transcribing.
		return
	}
	if !s.matcher.EndsWith(text) {
		return
	}

	select {
	case s.hits <- text:
	default:
	}
}

// Reset discards buffered audio and any pending hit, and invalidates
// in-flight scans. Call it at the start of each capture session.
func (s *Spotter) Reset() {
	s.gen.Add(1)
	s.mu.Lock()
	s.tail = nil
	s.sinceScan = 0
	s.mu.Unlock()
	select {
	case <-s.hits:
	default:
	}
}

// durationSamples converts a duration to a sample count at the current rate.
func (s *Spotter) durationSamples(d time.Duration) int {
	rate := s.rate
	if rate <= 0 {
		rate = 16000
	}
	n := int(d * time.Duration(rate) / time.Second)
	if n < 1 {
		n = 1
	}
	return n
}
