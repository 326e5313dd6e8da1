// Package energy implements a root-mean-square amplitude classifier for the
// [vad.Classifier] interface.
//
// It is the zero-dependency default: a chunk counts as speech when its RMS
// amplitude crosses a fixed threshold. That makes it robust on quiet desktop
// microphones but blind to the difference between speech and, say, a fan
// spinning up. Pick the webrtc or spectral engine when the environment is
// noisy.
package energy

import (
	"math"

	"github.com/MrWong99/hark/pkg/provider/vad"
)

// DefaultThreshold is the RMS level above which a chunk counts as speech,
// on the int16 sample scale. Tuned for a desktop microphone at arm's length.
const DefaultThreshold = 500

// Classifier classifies chunks by RMS amplitude. It is stateless and safe
// for concurrent use.
type Classifier struct {
	threshold float64
}

var _ vad.Classifier = (*Classifier)(nil)

// Option configures the classifier created by [New].
type Option func(*Classifier)

// WithThreshold overrides [DefaultThreshold]. Values at or below zero
// classify everything as speech.
func WithThreshold(t float64) Option {
	return func(c *Classifier) { c.threshold = t }
}

// New returns an RMS classifier with the default threshold.
func New(opts ...Option) *Classifier {
	c := &Classifier{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsSpeech implements [vad.Classifier]. It never returns an error.
func (c *Classifier) IsSpeech(samples []int16) (bool, error) {
	return RMS(samples) > c.threshold, nil
}

// Close implements [vad.Classifier].
func (c *Classifier) Close() error { return nil }

// RMS computes the root mean square of the samples. An empty slice yields 0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
