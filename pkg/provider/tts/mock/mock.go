// Package mock provides a scripted mock implementation of the [tts.Speaker]
// interface for use in unit tests.
//
// Example:
//
//	sp := &mock.Speaker{}
//	_ = sp.Speak(ctx, "command sent")
//	if got := sp.Spoken(); got[0] != "command sent" { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hark/pkg/provider/tts"
)

// Speaker is a recording mock implementation of [tts.Speaker].
type Speaker struct {
	mu sync.Mutex

	// SpeakError is returned by Speak.
	SpeakError error

	// HealthErr is returned by CheckHealth.
	HealthErr error

	spoken []string
}

var _ tts.Speaker = (*Speaker)(nil)
var _ tts.HealthChecker = (*Speaker)(nil)

// Speak implements [tts.Speaker]. Records the text and returns SpeakError.
func (s *Speaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return s.SpeakError
}

// CheckHealth implements [tts.HealthChecker]. Returns HealthErr.
func (s *Speaker) CheckHealth(context.Context) error { return s.HealthErr }

// Spoken returns a copy of all texts passed to Speak, in order.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// CallCountSpeak returns how many times Speak was called.
func (s *Speaker) CallCountSpeak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spoken)
}
