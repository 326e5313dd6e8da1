// Package mock provides a scripted mock implementation of the
// [stt.Transcriber] interface for use in unit tests.
//
// Example:
//
//	tr := &mock.Transcriber{Text: "open the garage over"}
//	got, _ := tr.Transcribe(ctx, pcm, 16000)
//	calls := tr.Calls() // inspect what was submitted
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

// TranscribeCall records the arguments of a single Transcribe invocation.
type TranscribeCall struct {
	// Samples is the PCM passed to Transcribe.
	Samples []int16
	// SampleRate is the rate passed to Transcribe.
	SampleRate int
}

// Transcriber is a scripted mock implementation of [stt.Transcriber].
// Set Text/Err before use; inspect Calls afterwards. TextByCall and
// ErrByCall override Text/Err for specific 1-based call numbers, which lets
// failover tests script "fail once, then recover".
type Transcriber struct {
	mu sync.Mutex

	// NameResult is returned by Name. Defaults to "mock".
	NameResult string

	// Text is returned by Transcribe for calls without an override.
	Text string

	// Err is returned by Transcribe for calls without an override.
	Err error

	// TextByCall maps 1-based Transcribe call numbers to their result.
	TextByCall map[int]string

	// ErrByCall maps 1-based Transcribe call numbers to their error.
	ErrByCall map[int]error

	// HealthErr is returned by CheckHealth.
	HealthErr error

	// Delay, when non-zero, makes Transcribe wait for the duration or ctx,
	// whichever ends first. Use it to test cancellation paths.
	Delay func(ctx context.Context) error

	calls []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)
var _ stt.HealthChecker = (*Transcriber)(nil)

// Transcribe implements [stt.Transcriber]. Records the call and returns the
// scripted result.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if t.Delay != nil {
		if err := t.Delay(ctx); err != nil {
			return "", err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, TranscribeCall{Samples: samples, SampleRate: sampleRate})
	n := len(t.calls)
	if err, ok := t.ErrByCall[n]; ok {
		return "", err
	}
	if text, ok := t.TextByCall[n]; ok {
		return text, nil
	}
	return t.Text, t.Err
}

// Name implements [stt.Transcriber].
func (t *Transcriber) Name() string {
	if t.NameResult == "" {
		return "mock"
	}
	return t.NameResult
}

// CheckHealth implements [stt.HealthChecker]. Returns HealthErr.
func (t *Transcriber) CheckHealth(context.Context) error { return t.HealthErr }

// Calls returns a copy of all recorded Transcribe invocations.
func (t *Transcriber) Calls() []TranscribeCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscribeCall, len(t.calls))
	copy(out, t.calls)
	return out
}

// CallCount returns how many times Transcribe was called.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
