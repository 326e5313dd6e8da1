// Package portaudio implements the [audio.Gateway] and [audio.Player]
// interfaces on top of PortAudio.
//
// The gateway opens exactly one input stream at a time. Switching between
// listening and recording tears the current stream down and opens a new one
// with the requested frame geometry: wake engines want short fixed frames,
// capture wants larger chunks, and PortAudio fixes the frames-per-buffer at
// open time. The brief gap during a switch is inaudible and guarantees the
// two modes can never observe the device simultaneously.
//
// Frames are delivered on a buffered channel; when the consumer falls behind
// the newest frame is dropped rather than blocking the device callback path.
// Read failures other than input overflow are surfaced once per stream on
// Faults and end that stream.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pa "github.com/gordonklaus/portaudio"

	"github.com/MrWong99/hark/pkg/audio"
)

const frameChanBuf = 32

// Config holds the parameters for a Gateway.
type Config struct {
	// DeviceName selects the input device by its PortAudio name. Empty
	// selects the system default. A named device that cannot be found or
	// opened falls back to the default with a warning.
	DeviceName string

	// SampleRate is the capture rate in Hz for both modes.
	SampleRate int

	// ListenFrameLen is the samples per frame in listening mode. It must
	// match the wake detector's FrameLength.
	ListenFrameLen int

	// RecordChunkLen is the samples per chunk in recording mode.
	RecordChunkLen int
}

// Gateway is the PortAudio-backed implementation of [audio.Gateway].
type Gateway struct {
	cfg Config

	mu       sync.Mutex
	mode     audio.Mode
	stream   *pa.Stream
	stopRead chan struct{}
	readDone chan struct{}
	closed   bool

	frames chan audio.Frame
	faults chan error
}

var _ audio.Gateway = (*Gateway)(nil)

// New initializes PortAudio and returns a Gateway in the closed mode. Call
// EnterListening or EnterRecording to start capturing, and Close to release
// the PortAudio runtime.
func New(cfg Config) (*Gateway, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("portaudio: sample rate %d must be positive", cfg.SampleRate)
	}
	if cfg.ListenFrameLen <= 0 || cfg.RecordChunkLen <= 0 {
		return nil, fmt.Errorf("portaudio: frame lengths must be positive (listen %d, record %d)",
			cfg.ListenFrameLen, cfg.RecordChunkLen)
	}

	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	return &Gateway{
		cfg:    cfg,
		frames: make(chan audio.Frame, frameChanBuf),
		faults: make(chan error, 1),
	}, nil
}

// EnterListening implements [audio.Gateway].
func (g *Gateway) EnterListening(ctx context.Context) error {
	return g.enter(ctx, audio.ModeListening, g.cfg.ListenFrameLen)
}

// EnterRecording implements [audio.Gateway].
func (g *Gateway) EnterRecording(ctx context.Context) error {
	return g.enter(ctx, audio.ModeRecording, g.cfg.RecordChunkLen)
}

// enter switches the gateway into mode with the given frame geometry. The
// current stream, if any, is stopped first so only one ever exists.
func (g *Gateway) enter(ctx context.Context, mode audio.Mode, frameLen int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("portaudio: context already cancelled: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return audio.ErrGatewayClosed
	}
	if g.mode == mode {
		return nil
	}

	g.stopStreamLocked()

	// The old read loop has exited, so nothing is producing. Drop frames it
	// buffered before it stopped: they belong to the previous mode and must
	// not leak into the new one.
	for len(g.frames) > 0 {
		<-g.frames
	}

	buffer := make([]int16, frameLen)
	stream, err := g.openStreamLocked(buffer, frameLen)
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio: start input stream: %w", errors.Join(audio.ErrDeviceUnavailable, err))
	}

	g.stream = stream
	g.mode = mode
	g.stopRead = make(chan struct{})
	g.readDone = make(chan struct{})

	// Drain the fault slot so this stream can report its own.
	select {
	case <-g.faults:
	default:
	}

	go g.readLoop(stream, buffer, g.stopRead, g.readDone)
	return nil
}

// openStreamLocked opens an input stream on the configured device, falling
// back to the system default when a named device is missing or refuses the
// requested geometry.
func (g *Gateway) openStreamLocked(buffer []int16, frameLen int) (*pa.Stream, error) {
	rate := float64(g.cfg.SampleRate)

	if g.cfg.DeviceName != "" && g.cfg.DeviceName != "default" {
		dev, err := findInputDevice(g.cfg.DeviceName)
		if err == nil {
			params := pa.StreamParameters{
				Input: pa.StreamDeviceParameters{
					Device:   dev,
					Channels: 1,
					Latency:  dev.DefaultLowInputLatency,
				},
				SampleRate:      rate,
				FramesPerBuffer: frameLen,
			}
			stream, openErr := pa.OpenStream(params, buffer)
			if openErr == nil {
				return stream, nil
			}
			err = openErr
		}
		slog.Warn("named input device unavailable, falling back to default",
			"device", g.cfg.DeviceName, "error", err)
	}

	stream, err := pa.OpenDefaultStream(1, 0, rate, frameLen, buffer)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input stream: %w", errors.Join(audio.ErrDeviceUnavailable, err))
	}
	return stream, nil
}

// readLoop pulls frames from the stream until stopped or faulted. It owns no
// gateway state beyond the channels it was handed.
func (g *Gateway) readLoop(stream *pa.Stream, buffer []int16, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, pa.InputOverflowed) {
				// Data was lost but the stream is intact; the partial
				// buffer is still valid input.
				slog.Debug("input overflow, continuing")
			} else {
				select {
				case <-stop:
				default:
					select {
					case g.faults <- fmt.Errorf("portaudio: read: %w", err):
					default:
					}
				}
				return
			}
		}

		samples := make([]int16, len(buffer))
		copy(samples, buffer)
		select {
		case g.frames <- audio.Frame{Samples: samples, Rate: g.cfg.SampleRate}:
		default:
			// Consumer is behind; drop rather than stall the device.
		}
	}
}

// stopStreamLocked halts the current read loop and closes the stream.
// g.mu must be held.
func (g *Gateway) stopStreamLocked() {
	if g.stream == nil {
		return
	}
	close(g.stopRead)
	<-g.readDone
	if err := g.stream.Stop(); err != nil {
		slog.Warn("stopping input stream", "error", err)
	}
	if err := g.stream.Close(); err != nil {
		slog.Warn("closing input stream", "error", err)
	}
	g.stream = nil
	g.mode = audio.ModeClosed
}

// Stop implements [audio.Gateway].
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return audio.ErrGatewayClosed
	}
	g.stopStreamLocked()
	return nil
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

// Close implements [audio.Gateway]. Safe to call more than once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.stopStreamLocked()
	g.closed = true
	if err := pa.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// findInputDevice locates an input-capable PortAudio device by name.
func findInputDevice(name string) (*pa.DeviceInfo, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("portaudio: input device %q not found", name)
}

// DeviceInfo describes one input-capable audio device.
type DeviceInfo struct {
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// ListInputDevices enumerates input-capable devices. It manages its own
// PortAudio lifetime, so it works without an open Gateway; the devices CLI
// command and the device-unavailable error path both use it.
func ListInputDevices() ([]DeviceInfo, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer pa.Terminate()

	devices, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}

	var defaultName string
	if dev, err := pa.DefaultInputDevice(); err == nil && dev != nil {
		defaultName = dev.Name
	}

	var out []DeviceInfo
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			out = append(out, DeviceInfo{
				Name:              dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultName,
			})
		}
	}
	return out, nil
}
