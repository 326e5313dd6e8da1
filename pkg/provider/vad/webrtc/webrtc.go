// Package webrtc adapts the WebRTC voice activity detector to the
// [vad.Classifier] interface.
//
// The WebRTC engine models speech spectra rather than raw level, so it keeps
// working where the energy classifier drowns in background noise. It operates
// on fixed 10 ms sub-frames; IsSpeech slices each chunk accordingly and
// reports speech when the majority of sub-frames are voiced, which smooths
// over single-frame glitches in both directions.
package webrtc

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/hark/pkg/provider/vad"
)

// Classifier classifies chunks with the WebRTC VAD. The underlying engine is
// stateful per stream; feed a Classifier from one goroutine only.
type Classifier struct {
	mu         sync.Mutex
	engine     *webrtcvad.VAD
	sampleRate int
	frameLen   int
	closed     bool
}

var _ vad.Classifier = (*Classifier)(nil)

// New creates a WebRTC classifier. sampleRate must be one of 8000, 16000,
// 32000 or 48000 Hz. aggressiveness ranges 0 (permissive) to 3 (strict);
// higher values cut silence earlier but clip soft speech.
func New(sampleRate, aggressiveness int) (*Classifier, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("webrtc: unsupported sample rate %d (want 8000, 16000, 32000 or 48000)", sampleRate)
	}
	if aggressiveness < 0 || aggressiveness > 3 {
		return nil, fmt.Errorf("webrtc: aggressiveness %d out of range [0,3]", aggressiveness)
	}

	engine, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create engine: %w", err)
	}
	if err := engine.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("webrtc: set mode %d: %w", aggressiveness, err)
	}

	return &Classifier{
		engine:     engine,
		sampleRate: sampleRate,
		frameLen:   sampleRate / 100, // 10 ms
	}, nil
}

// IsSpeech implements [vad.Classifier]. Chunks shorter than one 10 ms
// sub-frame are zero-padded; a trailing partial sub-frame is dropped.
func (c *Classifier) IsSpeech(samples []int16) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, fmt.Errorf("webrtc: classifier is closed")
	}

	if len(samples) < c.frameLen {
		padded := make([]int16, c.frameLen)
		copy(padded, samples)
		samples = padded
	}

	var voiced, total int
	for off := 0; off+c.frameLen <= len(samples); off += c.frameLen {
		frame := toBytes(samples[off : off+c.frameLen])
		active, err := c.engine.Process(c.sampleRate, frame)
		if err != nil {
			return false, fmt.Errorf("webrtc: process sub-frame: %w", err)
		}
		total++
		if active {
			voiced++
		}
	}
	return voiced*2 > total, nil
}

// Close implements [vad.Classifier]. The engine needs no explicit teardown;
// Close only blocks further use.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// toBytes serializes samples as little-endian PCM, the layout the engine expects.
func toBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
