// Package whisper provides whisper.cpp-backed transcribers.
//
// Two backends live here. [Transcriber] talks to a running whisper-server
// binary (which exposes a REST API at POST /inference) and is the default:
// the server holds the model resident, so per-utterance latency stays low and
// the dispatcher binary needs no CGO. [Native] loads a GGML model in-process
// through the whisper.cpp Go bindings, trading a CGO build and a slow first
// load for zero moving parts at runtime.
//
// Usage:
//
//	t, err := whisper.New("http://127.0.0.1:8090",
//	    whisper.WithLanguage("en"),
//	)
//	text, err := t.Transcribe(ctx, pcm, 16000)
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Transcriber implements stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)
var _ stt.HealthChecker = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with; this is the default.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithLanguage sets the BCP-47 language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout). Use this to
// tighten the inference deadline or to inject a test transport.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transcriber) {
		t.httpClient = c
	}
}

// Transcriber implements stt.Transcriber backed by a whisper.cpp HTTP server.
// It holds no per-utterance state and is safe for concurrent use.
type Transcriber struct {
	endpoint   string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Transcriber for the whisper-server at serverURL. The URL may
// name the inference endpoint directly ("http://127.0.0.1:8090/inference"); a
// URL without a path gets "/inference" appended. serverURL must be non-empty.
// Functional options may be provided to override defaults.
func New(serverURL string, opts ...Option) (*Transcriber, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("whisper: invalid serverURL %q: %w", serverURL, err)
	}
	endpoint := strings.TrimSuffix(serverURL, "/")
	if u.Path == "" || u.Path == "/" {
		endpoint += "/inference"
	}
	t := &Transcriber{
		endpoint:   endpoint,
		baseURL:    u.Scheme + "://" + u.Host,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "whisper" }

// Transcribe encodes the utterance as WAV and POSTs it to the whisper.cpp
// /inference endpoint as multipart/form-data. It returns the transcribed
// text, trimmed of the leading space whisper likes to emit.
func (t *Transcriber) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(samples, sampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Primary audio field.
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	// Hint fields.
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisper: write response_format field: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if t.model != "" {
		if err := mw.WriteField("model", t.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// CheckHealth probes the server with a plain GET against its base URL. Any
// HTTP response counts as healthy: whisper-server answers 200 on / but older
// builds answer 404, and either proves the process is up and listening.
func (t *Transcriber) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("whisper: create health request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper: server unreachable: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("whisper: server unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}
