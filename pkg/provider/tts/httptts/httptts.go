// Package httptts provides a Speaker backed by an OpenAI-compatible speech
// server.
//
// It targets the POST /v1/audio/speech dialect spoken by Kokoro-FastAPI,
// openedai-speech and the hosted OpenAI API alike: a JSON body naming model,
// voice and input text, answered with an encoded audio file. The provider
// requests WAV, decodes it, and plays the PCM on the injected [audio.Player].
//
// Typical usage:
//
//	sp, err := httptts.New("http://127.0.0.1:8880", player,
//	    httptts.WithVoice("alloy"),
//	)
//	err = sp.Speak(ctx, "command sent")
package httptts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/tts"
)

const (
	defaultVoice   = "alloy"
	defaultModel   = "tts-1"
	defaultTimeout = 30 * time.Second

	speechEndpoint = "/v1/audio/speech"
	modelsEndpoint = "/v1/models"
)

// Compile-time interface assertions.
var _ tts.Speaker = (*Speaker)(nil)
var _ tts.HealthChecker = (*Speaker)(nil)

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithVoice selects the server-side voice. Defaults to "alloy".
func WithVoice(voice string) Option {
	return func(s *Speaker) {
		s.voice = voice
	}
}

// WithModel overrides the model identifier sent to the server. Defaults to
// "tts-1"; local servers generally ignore it.
func WithModel(model string) Option {
	return func(s *Speaker) {
		s.model = model
	}
}

// WithAPIKey sets a bearer token for servers that require one. Local servers
// usually do not.
func WithAPIKey(key string) Option {
	return func(s *Speaker) {
		s.apiKey = key
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Speaker) {
		s.httpClient.Timeout = d
	}
}

// Speaker implements tts.Speaker against an OpenAI-compatible speech server.
// It is safe for concurrent use.
type Speaker struct {
	serverURL  string
	voice      string
	model      string
	apiKey     string
	httpClient *http.Client
	player     audio.Player
}

// New creates a Speaker targeting the speech server at serverURL
// (e.g., "http://127.0.0.1:8880"). Synthesized audio is played on player,
// which must not be nil.
func New(serverURL string, player audio.Player, opts ...Option) (*Speaker, error) {
	if serverURL == "" {
		return nil, errors.New("httptts: serverURL must not be empty")
	}
	if player == nil {
		return nil, errors.New("httptts: player must not be nil")
	}
	s := &Speaker{
		serverURL:  strings.TrimRight(serverURL, "/"),
		voice:      defaultVoice,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
		player:     player,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// speechRequest is the JSON body sent to POST /v1/audio/speech.
type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Speak implements tts.Speaker. Empty text is a no-op.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "wav",
	})
	if err != nil {
		return fmt.Errorf("httptts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+speechEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httptts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httptts: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httptts: server returned HTTP %d", resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httptts: read response body: %w", err)
	}

	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return fmt.Errorf("httptts: decode synthesized audio: %w", err)
	}

	if err := s.player.Play(ctx, samples, rate); err != nil {
		return fmt.Errorf("httptts: play audio: %w", err)
	}
	return nil
}

// CheckHealth probes GET /v1/models, which every OpenAI-compatible speech
// server answers.
func (s *Speaker) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+modelsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("httptts: create health request: %w", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httptts: server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("httptts: server unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}
