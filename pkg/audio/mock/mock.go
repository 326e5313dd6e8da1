// Package mock provides in-memory mock implementations of the [audio.Gateway]
// and [audio.Player] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	gw := mock.NewGateway(16)
//	gw.Push(audio.Frame{Samples: pcm, Rate: 16000})
//	gw.Fail(errors.New("stream died"))
//	got := gw.ModeLog() // e.g. [listening recording listening]
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hark/pkg/audio"
)

// ─── Gateway ──────────────────────────────────────────────────────────────────

// Gateway is a mock implementation of [audio.Gateway]. Tests feed it frames
// with [Gateway.Push] and faults with [Gateway.Fail]; mode transitions are
// recorded in order and can be asserted via [Gateway.ModeLog].
type Gateway struct {
	mu     sync.Mutex
	mode   audio.Mode
	frames chan audio.Frame
	faults chan error
	log    []audio.Mode

	// EnterListeningError is returned by EnterListening. The mode does not
	// change when it is non-nil.
	EnterListeningError error

	// EnterListeningErrByCall overrides EnterListeningError for specific
	// 1-based call numbers, which lets recovery tests script "fail twice,
	// then succeed".
	EnterListeningErrByCall map[int]error

	callsListening int

	// EnterRecordingError is returned by EnterRecording. The mode does not
	// change when it is non-nil.
	EnterRecordingError error

	// StopError is returned by Stop.
	StopError error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

var _ audio.Gateway = (*Gateway)(nil)

// NewGateway returns a Gateway whose frame channel holds up to buffer frames.
func NewGateway(buffer int) *Gateway {
	return &Gateway{
		frames: make(chan audio.Frame, buffer),
		faults: make(chan error, 1),
	}
}

// EnterListening implements [audio.Gateway]. Records the transition.
func (g *Gateway) EnterListening(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.callsListening++
	if err, ok := g.EnterListeningErrByCall[g.callsListening]; ok {
		if err != nil {
			return err
		}
	} else if g.EnterListeningError != nil {
		return g.EnterListeningError
	}
	g.mode = audio.ModeListening
	g.log = append(g.log, audio.ModeListening)
	return nil
}

// CallCountListening returns how many times EnterListening was called.
func (g *Gateway) CallCountListening() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callsListening
}

// EnterRecording implements [audio.Gateway]. Records the transition.
func (g *Gateway) EnterRecording(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.EnterRecordingError != nil {
		return g.EnterRecordingError
	}
	g.mode = audio.ModeRecording
	g.log = append(g.log, audio.ModeRecording)
	return nil
}

// Stop implements [audio.Gateway]. Records the transition to closed.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mode = audio.ModeClosed
	g.log = append(g.log, audio.ModeClosed)
	return g.StopError
}

// Mode implements [audio.Gateway].
func (g *Gateway) Mode() audio.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// Frames implements [audio.Gateway].
func (g *Gateway) Frames() <-chan audio.Frame { return g.frames }

// Faults implements [audio.Gateway].
func (g *Gateway) Faults() <-chan error { return g.faults }

// Close implements [audio.Gateway].
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CallCountClose++
	g.mode = audio.ModeClosed
	return nil
}

// Push delivers a frame as if it had been captured from the device.
// It blocks if the frame buffer is full.
func (g *Gateway) Push(f audio.Frame) { g.frames <- f }

// PushSilence delivers n frames of all-zero PCM, each spanning chunk samples.
func (g *Gateway) PushSilence(n, chunk, rate int) {
	for range n {
		g.frames <- audio.Frame{Samples: make([]int16, chunk), Rate: rate}
	}
}

// Fail delivers a device fault as if the stream had died mid-capture.
func (g *Gateway) Fail(err error) { g.faults <- err }

// ModeLog returns the mode transitions observed so far, in order.
func (g *Gateway) ModeLog() []audio.Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]audio.Mode, len(g.log))
	copy(out, g.log)
	return out
}

// ─── Player ───────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [Player.Play] invocation.
type PlayCall struct {
	// Samples is the PCM passed to Play.
	Samples []int16
	// Rate is the sample rate passed to Play.
	Rate int
}

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// PlayError is returned by Play.
	PlayError error

	// PlayCalls records all Play invocations.
	PlayCalls []PlayCall
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player]. Records the call and returns PlayError.
func (p *Player) Play(_ context.Context, samples []int16, rate int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, PlayCall{Samples: samples, Rate: rate})
	return p.PlayError
}

// CallCountPlay returns how many times Play was called.
func (p *Player) CallCountPlay() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.PlayCalls)
}
