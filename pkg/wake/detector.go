// Package wake defines the Detector interface for wake-word engines.
//
// A wake detector consumes fixed-length PCM frames pulled from the audio
// gateway while the dispatcher is idle and reports when the configured wake
// phrase was spoken. Detection is synchronous by design: Process returns
// immediately with a verdict, making it suitable for the hot path of the
// listening loop.
//
// Detectors are stateful (they carry the model's sliding analysis window), so
// a single Detector must only be fed from one goroutine. Frames must match
// FrameLength and SampleRate exactly; implementations reject anything else.
package wake

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Process after Close has been called.
var ErrClosed = errors.New("wake: detector is closed")

// Event describes a single wake-word detection.
type Event struct {
	// KeywordIndex identifies which of the configured keywords fired,
	// in the order they were registered. Zero for single-keyword setups.
	KeywordIndex int

	// At is the wall-clock time the detection was reported.
	At time.Time
}

// Detector is a push-style wake-word recognizer.
//
// Process must be called with consecutive frames of exactly FrameLength
// samples at SampleRate Hz. It returns ok=true at most once per utterance of
// the wake phrase. A non-nil error applies to that frame only; callers may
// log it and continue with the next frame.
type Detector interface {
	Process(pcm []int16) (ev Event, ok bool, err error)

	// FrameLength is the number of samples Process expects per call.
	FrameLength() int

	// SampleRate is the PCM sample rate in Hz that Process expects.
	SampleRate() int

	// Close releases the underlying model. Process returns ErrClosed afterwards.
	Close() error
}

// Debounced wraps a Detector and suppresses detections that fire within a
// refractory window of the previous one. The acknowledgement chime and the
// tail of the wake phrase itself can re-trigger sensitive models; a short
// window (one to two seconds) absorbs those echoes without masking genuine
// back-to-back commands.
type Debounced struct {
	inner  Detector
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

var _ Detector = (*Debounced)(nil)

// Debounce wraps d with a refractory window. A window of zero disables
// suppression and returns d unchanged behaviour-wise.
func Debounce(d Detector, window time.Duration) *Debounced {
	return &Debounced{inner: d, window: window, now: time.Now}
}

// Process implements [Detector]. Detections inside the refractory window are
// swallowed (ok=false, nil error); the window restarts on every accepted
// detection.
func (d *Debounced) Process(pcm []int16) (Event, bool, error) {
	ev, ok, err := d.inner.Process(pcm)
	if err != nil || !ok {
		return ev, ok, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if d.window > 0 && !d.last.IsZero() && now.Sub(d.last) < d.window {
		return Event{}, false, nil
	}
	d.last = now
	return ev, true, nil
}

// FrameLength implements [Detector].
func (d *Debounced) FrameLength() int { return d.inner.FrameLength() }

// SampleRate implements [Detector].
func (d *Debounced) SampleRate() int { return d.inner.SampleRate() }

// Close implements [Detector].
func (d *Debounced) Close() error { return d.inner.Close() }
