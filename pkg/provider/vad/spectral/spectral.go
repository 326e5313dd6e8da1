// Package spectral implements a spectral-flux classifier for the
// [vad.Classifier] interface.
//
// Each chunk is Hamming-windowed and transformed with a real FFT; the mean
// magnitude across the spectrum is the chunk's flux. Speech onsets push the
// flux well above the ambient level, so a chunk counts as speech when its
// flux exceeds the tracked noise floor by a configurable ratio. The floor
// follows non-speech chunks with an exponential moving average, which lets
// the classifier ride out slow changes in room tone (HVAC cycling, rain)
// that would pin a fixed-threshold energy gate.
package spectral

import (
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"

	"github.com/MrWong99/hark/pkg/provider/vad"
)

const (
	// DefaultRatio is the factor by which flux must exceed the noise floor
	// to count as speech.
	DefaultRatio = 1.75

	// defaultFloorAlpha is the EMA coefficient for noise-floor updates.
	defaultFloorAlpha = 0.1

	// minFloor keeps the noise floor from collapsing to zero in a silent
	// room, which would classify the faintest hiss as speech.
	minFloor = 1.0
)

// Classifier tracks an adaptive noise floor across chunks. Feed it from one
// goroutine only; the first chunk primes the floor and always reads as
// non-speech.
type Classifier struct {
	mu     sync.Mutex
	ratio  float64
	alpha  float64
	floor  float64
	primed bool
}

var _ vad.Classifier = (*Classifier)(nil)

// Option configures the classifier created by [New].
type Option func(*Classifier)

// WithRatio overrides [DefaultRatio]. Must be greater than 1 to be useful.
func WithRatio(r float64) Option {
	return func(c *Classifier) { c.ratio = r }
}

// New returns a spectral-flux classifier with default tuning.
func New(opts ...Option) *Classifier {
	c := &Classifier{ratio: DefaultRatio, alpha: defaultFloorAlpha}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSpeech implements [vad.Classifier]. It never returns an error.
func (c *Classifier) IsSpeech(samples []int16) (bool, error) {
	flux := Flux(samples)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.primed {
		c.floor = max(flux, minFloor)
		c.primed = true
		return false, nil
	}

	if flux >= c.floor*c.ratio {
		return true, nil
	}
	c.floor = max((1-c.alpha)*c.floor+c.alpha*flux, minFloor)
	return false, nil
}

// Close implements [vad.Classifier].
func (c *Classifier) Close() error { return nil }

// Reset clears the noise floor, e.g. after the input device changed.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floor = 0
	c.primed = false
}

// Flux computes the mean spectral magnitude of one chunk. An empty chunk
// yields 0.
func Flux(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}
	window.Apply(x, window.Hamming)

	spectrum := fft.FFTReal(x)
	// Bins above n/2 mirror the lower half for real input; skip them and DC.
	half := len(spectrum) / 2
	if half < 1 {
		return 0
	}
	var sum float64
	for _, bin := range spectrum[1 : half+1] {
		sum += cmplx.Abs(bin)
	}
	return sum / float64(half)
}
