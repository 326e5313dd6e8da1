// Package porcupine adapts the Picovoice Porcupine engine to the
// [wake.Detector] interface.
//
// Porcupine runs entirely on-device against a trained keyword file (.ppn), so
// no audio leaves the machine while the dispatcher idles. The engine dictates
// its own frame geometry (pv.FrameLength samples at pv.SampleRate Hz) and
// the audio gateway's listening mode must be configured to match.
package porcupine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	pv "github.com/Picovoice/porcupine/binding/go/v3"

	"github.com/MrWong99/hark/pkg/wake"
)

// Detector recognizes a wake phrase using a local Porcupine model.
// Process must be called from a single goroutine.
type Detector struct {
	mu     sync.Mutex
	engine pv.Porcupine
	closed bool
}

var _ wake.Detector = (*Detector)(nil)

type options struct {
	modelPath   string
	libraryPath string
	sensitivity float32
}

// Option configures the detector created by [New].
type Option func(*options)

// WithSensitivity sets the detection sensitivity for every keyword.
// Range [0,1]; higher values trigger more readily at the cost of false
// positives. Defaults to 0.5.
func WithSensitivity(s float32) Option {
	return func(o *options) { o.sensitivity = s }
}

// WithModelPath points the engine at a non-default acoustic model file
// (porcupine_params.pv), e.g. for a non-English wake phrase.
func WithModelPath(path string) Option {
	return func(o *options) { o.modelPath = path }
}

// WithLibraryPath overrides the bundled native library, for platforms where
// the binding's default does not match the host.
func WithLibraryPath(path string) Option {
	return func(o *options) { o.libraryPath = path }
}

// New initializes a Porcupine detector for the given keyword files.
// accessKey is the Picovoice console key; keywordPaths must name at least
// one .ppn file. Initialization validates the key against the model, so an
// invalid or expired key fails here rather than on the first frame.
func New(accessKey string, keywordPaths []string, opts ...Option) (*Detector, error) {
	if accessKey == "" {
		return nil, errors.New("porcupine: access key must not be empty")
	}
	if len(keywordPaths) == 0 {
		return nil, errors.New("porcupine: at least one keyword path is required")
	}

	o := options{sensitivity: 0.5}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sensitivity < 0 || o.sensitivity > 1 {
		return nil, fmt.Errorf("porcupine: sensitivity %v out of range [0,1]", o.sensitivity)
	}

	sens := make([]float32, len(keywordPaths))
	for i := range sens {
		sens[i] = o.sensitivity
	}

	d := &Detector{engine: pv.Porcupine{
		AccessKey:     accessKey,
		ModelPath:     o.modelPath,
		LibraryPath:   o.libraryPath,
		KeywordPaths:  keywordPaths,
		Sensitivities: sens,
	}}
	if err := d.engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: init: %w", err)
	}
	return d, nil
}

// Process implements [wake.Detector]. The frame must hold exactly
// FrameLength samples; a mismatched frame is reported as a per-frame error
// and leaves the engine state untouched.
func (d *Detector) Process(pcm []int16) (wake.Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return wake.Event{}, false, wake.ErrClosed
	}
	if len(pcm) != pv.FrameLength {
		return wake.Event{}, false, fmt.Errorf("porcupine: frame must be %d samples, got %d", pv.FrameLength, len(pcm))
	}

	idx, err := d.engine.Process(pcm)
	if err != nil {
		return wake.Event{}, false, fmt.Errorf("porcupine: process: %w", err)
	}
	if idx < 0 {
		return wake.Event{}, false, nil
	}
	return wake.Event{KeywordIndex: idx, At: time.Now()}, true, nil
}

// FrameLength implements [wake.Detector].
func (d *Detector) FrameLength() int { return pv.FrameLength }

// SampleRate implements [wake.Detector].
func (d *Detector) SampleRate() int { return pv.SampleRate }

// Close implements [wake.Detector]. Safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.engine.Delete()
}
