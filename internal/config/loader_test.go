package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/hark/internal/config"
)

// ── Load from disk ────────────────────────────────────────────────────────────

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Command.EndKeyword != "over" {
		t.Errorf("command.end_keyword: got %q, want default %q", cfg.Command.EndKeyword, "over")
	}
	if cfg.Command.SilenceTimeout != 2*time.Second {
		t.Errorf("command.silence_timeout: got %v, want default 2s", cfg.Command.SilenceTimeout)
	}
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hark.yaml")
	yaml := `
wake:
  access_key: pv-from-file
command:
  end_keyword: finish
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wake.AccessKey != "pv-from-file" {
		t.Errorf("wake.access_key: got %q, want %q", cfg.Wake.AccessKey, "pv-from-file")
	}
	if cfg.Command.EndKeyword != "finish" {
		t.Errorf("command.end_keyword: got %q, want %q", cfg.Command.EndKeyword, "finish")
	}
}

func TestLoad_MalformedFileMentionsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("wake: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := config.Load(path)
	if err == nil {
		t.Fatal("expected error for malformed file, got nil")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error should mention the file path, got: %v", err)
	}
}

// ── Environment fallbacks ─────────────────────────────────────────────────────

func TestLoad_AccessKeyFromEnv(t *testing.T) {
	t.Setenv("PICOVOICE_ACCESS_KEY", "pv-from-env")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wake.AccessKey != "pv-from-env" {
		t.Errorf("wake.access_key: got %q, want %q", cfg.Wake.AccessKey, "pv-from-env")
	}
}

func TestLoad_AccessKeyEnvFallbackOrder(t *testing.T) {
	// HARK_ACCESS_KEY only wins when PICOVOICE_ACCESS_KEY is unset.
	t.Setenv("PICOVOICE_ACCESS_KEY", "")
	t.Setenv("HARK_ACCESS_KEY", "hk-from-env")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wake.AccessKey != "hk-from-env" {
		t.Errorf("wake.access_key: got %q, want %q", cfg.Wake.AccessKey, "hk-from-env")
	}
}

func TestLoad_FileAccessKeyBeatsEnv(t *testing.T) {
	t.Setenv("PICOVOICE_ACCESS_KEY", "pv-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader("wake:\n  access_key: pv-from-file\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Wake.AccessKey != "pv-from-file" {
		t.Errorf("wake.access_key: got %q, want the file value", cfg.Wake.AccessKey)
	}
}

func TestLoad_OpenAIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg, err := config.LoadFromReader(strings.NewReader("stt:\n  openai_base_url: https://api.openai.com/v1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.STT.OpenAIAPIKey != "sk-from-env" {
		t.Errorf("stt.openai_api_key: got %q, want %q", cfg.STT.OpenAIAPIKey, "sk-from-env")
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error should mention log.level, got: %v", err)
	}
}

func TestValidate_MissingKeywordPath(t *testing.T) {
	t.Parallel()
	yaml := `
wake:
  keyword_path: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for empty keyword_path, got nil")
	}
	if !strings.Contains(err.Error(), "wake.keyword_path") {
		t.Errorf("error should mention wake.keyword_path, got: %v", err)
	}
}

func TestValidate_SensitivityOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
wake:
  sensitivity: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range sensitivity, got nil")
	}
	if !strings.Contains(err.Error(), "wake.sensitivity") {
		t.Errorf("error should mention wake.sensitivity, got: %v", err)
	}
}

func TestValidate_NonPositiveSilenceTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
command:
  silence_timeout: 0s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero silence_timeout, got nil")
	}
	if !strings.Contains(err.Error(), "silence_timeout") {
		t.Errorf("error should mention silence_timeout, got: %v", err)
	}
}

func TestValidate_MaxDurationMustExceedSilenceTimeout(t *testing.T) {
	t.Parallel()
	yaml := `
command:
  silence_timeout: 5s
  max_duration: 5s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for max_duration <= silence_timeout, got nil")
	}
	if !strings.Contains(err.Error(), "max_duration") {
		t.Errorf("error should mention max_duration, got: %v", err)
	}
}

func TestValidate_KeywordWindowRequiredWithEndKeyword(t *testing.T) {
	t.Parallel()
	yaml := `
command:
  end_keyword: over
  keyword_window: 0s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero keyword_window with an end keyword, got nil")
	}
	if !strings.Contains(err.Error(), "keyword_window") {
		t.Errorf("error should mention keyword_window, got: %v", err)
	}
}

func TestValidate_NoEndKeywordSkipsWindowChecks(t *testing.T) {
	t.Parallel()
	yaml := `
command:
  end_keyword: ""
  keyword_window: 0s
  keyword_interval: 0s
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error without an end keyword: %v", err)
	}
}

func TestValidate_NonPositiveSampleRate(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero sample_rate, got nil")
	}
	if !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("error should mention sample_rate, got: %v", err)
	}
}

func TestValidate_NonPositiveRecordChunk(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  record_chunk: 0s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero record_chunk, got nil")
	}
}

func TestValidate_InvalidVADEngine(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  vad: silero
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown vad engine, got nil")
	}
	if !strings.Contains(err.Error(), "audio.vad") {
		t.Errorf("error should mention audio.vad, got: %v", err)
	}
}

func TestValidate_NegativeSilenceThreshold(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  silence_threshold: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative silence_threshold, got nil")
	}
}

func TestValidate_AggressivenessOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  vad_aggressiveness: 5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range vad_aggressiveness, got nil")
	}
	if !strings.Contains(err.Error(), "vad_aggressiveness") {
		t.Errorf("error should mention vad_aggressiveness, got: %v", err)
	}
}

func TestValidate_NoTranscriptionBackend(t *testing.T) {
	t.Parallel()
	yaml := `
stt:
  whisper_url: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error when every transcription backend is unset, got nil")
	}
	if !strings.Contains(err.Error(), "transcription backend") {
		t.Errorf("error should mention transcription backend, got: %v", err)
	}
}

func TestValidate_TTSEnabledRequiresURL(t *testing.T) {
	t.Parallel()
	yaml := `
tts:
  enabled: true
  url: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for enabled tts without a url, got nil")
	}
	if !strings.Contains(err.Error(), "tts.url") {
		t.Errorf("error should mention tts.url, got: %v", err)
	}
}

func TestValidate_MissingAgentBinary(t *testing.T) {
	t.Parallel()
	yaml := `
agent:
  binary: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for empty agent.binary, got nil")
	}
	if !strings.Contains(err.Error(), "agent.binary") {
		t.Errorf("error should mention agent.binary, got: %v", err)
	}
}

func TestValidate_InvalidTerminal(t *testing.T) {
	t.Parallel()
	yaml := `
agent:
  terminal: screen
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown terminal, got nil")
	}
	if !strings.Contains(err.Error(), "agent.terminal") {
		t.Errorf("error should mention agent.terminal, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
wake:
  sensitivity: 2.0
audio:
  vad: silero
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "wake.sensitivity") {
		t.Errorf("error should mention wake.sensitivity, got: %v", err)
	}
	if !strings.Contains(errStr, "audio.vad") {
		t.Errorf("error should mention audio.vad, got: %v", err)
	}
}

func TestValidVADEngines(t *testing.T) {
	t.Parallel()
	// Sanity-check that the list is populated.
	if len(config.ValidVADEngines) == 0 {
		t.Fatal("ValidVADEngines should not be empty")
	}
	found := false
	for _, n := range config.ValidVADEngines {
		if n == "energy" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidVADEngines should contain "energy"`)
	}
}
