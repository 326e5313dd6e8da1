package audio

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable is returned when the requested input device cannot be
// found or opened. Callers may retry against the system default device before
// treating the condition as fatal.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// ErrGatewayClosed is returned by mode transitions after the Gateway has been
// shut down.
var ErrGatewayClosed = errors.New("audio gateway is closed")

// StreamParams describes the two stream shapes a [Gateway] must provide.
// Listening frames must match the wake classifier exactly; recording chunks
// trade latency for capture fidelity.
type StreamParams struct {
	// SampleRate in Hz for both modes. The wake classifier dictates it
	// (Porcupine requires 16000).
	SampleRate int

	// ListenFrameLen is the per-frame sample count in listening mode
	// (the classifier's frame length, e.g. 512).
	ListenFrameLen int

	// RecordChunkLen is the per-chunk sample count in recording mode
	// (100 ms at 16 kHz = 1600).
	RecordChunkLen int
}

// Gateway is the exclusive owner of the physical audio input device.
//
// Exactly one stream is open at any instant: entering a mode closes the
// stream of the previous mode first. No other component may open the device
// directly.
//
// Frames from whichever stream is active are delivered on the single channel
// returned by Frames, strictly ordered. Device faults detected mid-stream
// (disconnect, read errors) are reported on Faults; after a fault the Gateway
// drops to [ModeClosed] and the owner decides whether to re-acquire.
//
// Implementations must be safe for concurrent use.
type Gateway interface {
	// EnterListening closes any open stream and opens the low-latency
	// wake-classifier frame stream. Returns [ErrDeviceUnavailable] if the
	// device cannot be opened.
	EnterListening(ctx context.Context) error

	// EnterRecording closes any open stream and opens the command-capture
	// chunk stream. Returns [ErrDeviceUnavailable] if the device cannot be
	// opened.
	EnterRecording(ctx context.Context) error

	// Stop closes whichever stream is active and leaves the Gateway in
	// [ModeClosed]. Safe to call in any mode.
	Stop() error

	// Mode reports the current device mode.
	Mode() Mode

	// Frames returns the delivery channel for captured audio. The channel is
	// shared across modes and never closed while the Gateway is open; frame
	// sizes change with the mode. Frames buffered from a previous mode are
	// discarded during a transition, so everything received after EnterX
	// returns belongs to the new mode.
	Frames() <-chan Frame

	// Faults returns the channel on which mid-stream device faults are
	// reported. At most one fault is delivered per stream.
	Faults() <-chan error

	// Close releases the device and all Gateway resources. The Frames channel
	// is closed. Safe to call more than once.
	Close() error
}

// Player plays PCM audio on the output device (acknowledgment chime, spoken
// responses). Playback is independent of the input Gateway and never touches
// the input stream.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play synchronously plays the given mono samples at the given rate.
	// It returns once playback completes or ctx is cancelled.
	Play(ctx context.Context, samples []int16, rate int) error
}
