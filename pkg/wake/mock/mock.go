// Package mock provides an in-memory mock implementation of the
// [wake.Detector] interface for use in unit tests.
//
// The mock is scripted per call: HitOnCall and ErrOnCall map 1-based Process
// invocation numbers to outcomes, so a test can fire a detection on exactly
// the frame it wants, or inject a per-frame error and assert the caller
// skips it.
package mock

import (
	"sync"
	"time"

	"github.com/MrWong99/hark/pkg/wake"
)

// Detector is a scripted mock implementation of [wake.Detector].
type Detector struct {
	mu sync.Mutex

	// HitOnCall maps the 1-based Process call number to the keyword index
	// reported for that call. Calls not present report no detection.
	HitOnCall map[int]int

	// ErrOnCall maps the 1-based Process call number to an error returned
	// for that call. Errors take precedence over hits.
	ErrOnCall map[int]error

	// FrameLen is returned by FrameLength. Defaults to 512 if zero.
	FrameLen int

	// Rate is returned by SampleRate. Defaults to 16000 if zero.
	Rate int

	// CallCountProcess records how many times Process was called.
	CallCountProcess int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ wake.Detector = (*Detector)(nil)

// Process implements [wake.Detector]. Outcomes follow the scripted maps.
func (d *Detector) Process([]int16) (wake.Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountProcess++
	if err, ok := d.ErrOnCall[d.CallCountProcess]; ok {
		return wake.Event{}, false, err
	}
	if idx, ok := d.HitOnCall[d.CallCountProcess]; ok {
		return wake.Event{KeywordIndex: idx, At: time.Now()}, true, nil
	}
	return wake.Event{}, false, nil
}

// Calls returns how many times Process was called. Safe to call while the
// detector is in use from another goroutine.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CallCountProcess
}

// FrameLength implements [wake.Detector].
func (d *Detector) FrameLength() int {
	if d.FrameLen == 0 {
		return 512
	}
	return d.FrameLen
}

// SampleRate implements [wake.Detector].
func (d *Detector) SampleRate() int {
	if d.Rate == 0 {
		return 16000
	}
	return d.Rate
}

// Close implements [wake.Detector].
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountClose++
	return nil
}
