// Package openaicompat provides a transcriber for the OpenAI audio API and
// any server that speaks the same dialect.
//
// It is the designated fallback when the local whisper server is down: audio
// leaves the machine, so it stays opt-in behind the stt.use_fallback config
// switch. Pointing WithBaseURL at a self-hosted endpoint (LocalAI, Groq,
// vLLM) keeps the same code path on-premise.
package openaicompat

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
)

const defaultModel = "whisper-1"

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)
var _ stt.HealthChecker = (*Transcriber)(nil)

// Transcriber implements stt.Transcriber against the OpenAI audio
// transcription endpoint. It is safe for concurrent use.
type Transcriber struct {
	client   oai.Client
	model    string
	language string
}

// config holds optional configuration for the transcriber.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Transcriber.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, e.g. to target a
// self-hosted OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the default "whisper-1" model identifier.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithLanguage sets the ISO-639-1 language hint sent with each request.
func WithLanguage(lang string) Option {
	return func(c *config) {
		c.language = lang
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a Transcriber. apiKey must not be empty; the remaining
// settings default to the hosted OpenAI API and the whisper-1 model.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openaicompat: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Transcriber{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "openai" }

// Transcribe implements stt.Transcriber. The utterance is shipped as a WAV
// upload; the response's text is returned verbatim.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(samples, sampleRate)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: oai.AudioModel(t.model),
	}
	if t.language != "" {
		params.Language = oai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openaicompat: transcription request: %w", err)
	}
	return resp.Text, nil
}

// CheckHealth lists models as a cheap authenticated reachability probe.
func (t *Transcriber) CheckHealth(ctx context.Context) error {
	if _, err := t.client.Models.List(ctx); err != nil {
		return fmt.Errorf("openaicompat: list models: %w", err)
	}
	return nil
}
