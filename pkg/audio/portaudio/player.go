package portaudio

import (
	"context"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/hark/pkg/audio"
)

const playbackBufLen = 1024

// Player is the PortAudio-backed implementation of [audio.Player]. It plays
// on the system default output device and serializes concurrent calls, so an
// acknowledgement chime and a spoken confirmation never talk over each other.
type Player struct {
	mu     sync.Mutex
	closed bool
}

var _ audio.Player = (*Player)(nil)

// NewPlayer initializes PortAudio for output. Call Close to release it.
func NewPlayer() (*Player, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Player{}, nil
}

// Play implements [audio.Player]. It blocks until the samples have been
// written to the device or ctx ends; cancellation takes effect between
// buffer writes, cutting playback within ~25 ms.
func (p *Player) Play(ctx context.Context, samples []int16, rate int) error {
	if len(samples) == 0 {
		return nil
	}
	if rate <= 0 {
		return fmt.Errorf("portaudio: sample rate %d must be positive", rate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return audio.ErrGatewayClosed
	}

	buffer := make([]int16, playbackBufLen)
	stream, err := pa.OpenDefaultStream(0, 1, float64(rate), playbackBufLen, &buffer)
	if err != nil {
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}
	defer stream.Stop()

	for pos := 0; pos < len(samples); pos += playbackBufLen {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(buffer, samples[pos:])
		for i := n; i < playbackBufLen; i++ {
			buffer[i] = 0
		}
		if err := stream.Write(); err != nil {
			return fmt.Errorf("portaudio: write output: %w", err)
		}
	}
	return nil
}

// Close releases the PortAudio runtime held by the player. Safe to call more
// than once.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}
