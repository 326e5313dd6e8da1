// Package stt defines the Transcriber interface for batch speech-to-text
// backends.
//
// Command capture produces one bounded utterance at a time, so transcription
// here is deliberately batch-shaped: the caller hands over the complete PCM
// buffer and blocks on the result. Backends that could stream (cloud APIs)
// are still driven in batch mode; the simplicity is worth more than the few
// hundred milliseconds streaming would save on a 30-second ceiling.
//
// Implementations must be safe for concurrent use; the dispatcher may probe
// health from one goroutine while another transcribes.
package stt

import "context"

// Transcriber converts one utterance of mono 16-bit PCM into text.
type Transcriber interface {
	// Transcribe blocks until the backend returns a transcript or ctx ends.
	// The returned text is raw backend output: callers trim whitespace and
	// strip any trailing end keyword themselves. An empty string with a nil
	// error means the backend genuinely heard nothing.
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)

	// Name identifies the backend in logs and health reports, e.g. "whisper".
	Name() string
}

// HealthChecker is implemented by transcribers that can probe their backend
// without running an inference. The readiness endpoint type-asserts for it.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}
