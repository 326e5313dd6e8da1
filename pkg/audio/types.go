// Package audio defines the types and interfaces for microphone access within
// hark.
//
// The central abstraction is the [Gateway]: the exclusive owner of the single
// physical input device. It exposes two mutually exclusive modes, a
// low-latency frame stream sized for the wake classifier and a
// higher-latency chunk stream for command recording, and guarantees that at
// most one device stream is open at any instant. Keeping one process-wide
// owner for the handle is what prevents OS-level audio-route renegotiation
// (Bluetooth HFP flapping) when switching between the two usages.
//
// Implementations of [Gateway] and [Player] are provided by device-specific
// adapter packages (e.g., audio/portaudio). This package lives under pkg/
// because the adapters are expected to implement these interfaces.
package audio

import "time"

// Frame is a block of signed 16-bit mono PCM samples flowing from the
// Gateway to the capture loop. In listening mode frames carry exactly the
// wake classifier's frame length; in recording mode they carry one chunk
// (100 ms by default).
type Frame struct {
	// Samples is the raw mono PCM payload.
	Samples []int16

	// Rate is the sample rate in Hz (16000 for the wake classifier).
	Rate int
}

// Duration returns the play time of the frame. Returns 0 when the rate is
// not set.
func (f Frame) Duration() time.Duration {
	if f.Rate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.Rate)
}

// Mode is the mutually exclusive state of the physical input device.
// The Gateway is in exactly one mode at any instant; mode transitions are
// the only points where the device stream is closed and reopened.
type Mode int

const (
	// ModeClosed means no device stream is open.
	ModeClosed Mode = iota

	// ModeListening means the low-latency wake-classifier frame stream is open.
	ModeListening

	// ModeRecording means the command-capture chunk stream is open.
	ModeRecording
)

// String returns the human-readable name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeListening:
		return "listening"
	case ModeRecording:
		return "recording"
	default:
		return "unknown"
	}
}
