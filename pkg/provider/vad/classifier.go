// Package vad defines the Classifier interface for per-chunk speech detection.
//
// During command capture the recording loop asks a Classifier, once per
// buffered chunk, whether the chunk contains speech. The loop derives the
// running silence duration from consecutive negative verdicts; classifiers
// themselves stay stateless where the backend allows it, or confine state to
// a single stream.
//
// Classification is synchronous by design: IsSpeech returns immediately,
// making it suitable for the hot path of the capture loop. A classification
// error applies to that chunk only; callers log it, treat the chunk as
// indeterminate, and continue with the next one.
//
// A single Classifier must only be fed from one goroutine unless the
// implementation documents otherwise.
package vad

// Classifier decides whether a chunk of mono 16-bit PCM contains speech.
type Classifier interface {
	// IsSpeech classifies one chunk. Chunks are typically 100 ms of audio;
	// implementations that need fixed sub-frame sizes slice the chunk
	// internally. An error invalidates this verdict only.
	IsSpeech(samples []int16) (bool, error)

	// Close releases any backend resources. Safe to call more than once.
	Close() error
}
