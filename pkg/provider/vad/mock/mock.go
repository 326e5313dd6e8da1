// Package mock provides a scripted mock implementation of the
// [vad.Classifier] interface for use in unit tests.
package mock

import (
	"sync"

	"github.com/MrWong99/hark/pkg/provider/vad"
)

// Classifier is a scripted mock implementation of [vad.Classifier].
//
// Verdicts maps 1-based IsSpeech call numbers to the verdict returned for
// that call; unmapped calls return Default. ErrOnCall injects per-chunk
// errors, which take precedence over verdicts.
type Classifier struct {
	mu sync.Mutex

	// Default is returned for calls not present in Verdicts.
	Default bool

	// Verdicts maps the 1-based IsSpeech call number to its verdict.
	Verdicts map[int]bool

	// ErrOnCall maps the 1-based IsSpeech call number to an error.
	ErrOnCall map[int]error

	// CallCountIsSpeech records how many times IsSpeech was called.
	CallCountIsSpeech int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ vad.Classifier = (*Classifier)(nil)

// IsSpeech implements [vad.Classifier]. Outcomes follow the scripted maps.
func (c *Classifier) IsSpeech([]int16) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountIsSpeech++
	if err, ok := c.ErrOnCall[c.CallCountIsSpeech]; ok {
		return false, err
	}
	if v, ok := c.Verdicts[c.CallCountIsSpeech]; ok {
		return v, nil
	}
	return c.Default, nil
}

// Calls returns how many times IsSpeech was called. Safe to call while the
// classifier is in use from another goroutine.
func (c *Classifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountIsSpeech
}

// Close implements [vad.Classifier].
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountClose++
	return nil
}
