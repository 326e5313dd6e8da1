// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

// nativeSampleRate is the only rate whisper.cpp accepts.
const nativeSampleRate = 16000

// Compile-time assertion that Native satisfies stt.Transcriber.
var _ stt.Transcriber = (*Native)(nil)

// Native implements stt.Transcriber using the whisper.cpp Go bindings (CGO),
// eliminating HTTP overhead entirely. The model is loaded once at startup and
// shared across calls; each Transcribe creates its own whisper context, so
// concurrent calls do not interfere.
type Native struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	closed   bool
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative creates a Native transcriber that loads the whisper.cpp model
// from the given GGML file path. Loading can take seconds for larger models;
// do it once at startup. The caller must call Close when the transcriber is
// no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	n := &Native{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Name implements stt.Transcriber.
func (n *Native) Name() string { return "whisper-native" }

// Transcribe runs whisper.cpp inference over the utterance. sampleRate must
// be 16000 Hz; the model accepts nothing else and resampling belongs to the
// audio layer, not here.
func (n *Native) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if sampleRate != nativeSampleRate {
		return "", fmt.Errorf("whisper: native model requires %d Hz input, got %d", nativeSampleRate, sampleRate)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return "", errors.New("whisper: transcriber is closed")
	}
	model := n.model
	lang := n.language
	n.mu.Unlock()

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines; a fresh context per call keeps Transcribe reentrant.
	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samplesToFloat32(samples), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Close releases the whisper model. Safe to call more than once.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.model.Close()
}
