package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidVADEngines lists the recognised voice-activity engine names.
var ValidVADEngines = []string{"energy", "webrtc", "spectral"}

// Load reads the YAML configuration file at path, applies environment
// fallbacks and returns a validated [Config]. A missing file is not an
// error: hark runs on [DefaultConfig] plus environment overrides. A .env
// file in the working directory is loaded into the environment first when
// present.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		cfg := DefaultConfig()
		applyEnv(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of [DefaultConfig], applies
// environment fallbacks and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secret fields from the environment when the file left them
// empty.
func applyEnv(cfg *Config) {
	if cfg.Wake.AccessKey == "" {
		cfg.Wake.AccessKey = os.Getenv("PICOVOICE_ACCESS_KEY")
	}
	if cfg.Wake.AccessKey == "" {
		cfg.Wake.AccessKey = os.Getenv("HARK_ACCESS_KEY")
	}
	if cfg.STT.OpenAIAPIKey == "" {
		cfg.STT.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Log
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	// Wake
	if cfg.Wake.KeywordPath == "" {
		errs = append(errs, errors.New("wake.keyword_path is required"))
	}
	if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity %.2f is out of range [0.0, 1.0]", cfg.Wake.Sensitivity))
	}
	if cfg.Wake.AccessKey == "" {
		slog.Warn("wake.access_key is empty and no PICOVOICE_ACCESS_KEY is set; wake detection will fail to start")
	}

	// Command
	if cfg.Command.SilenceTimeout <= 0 {
		errs = append(errs, fmt.Errorf("command.silence_timeout %v must be positive", cfg.Command.SilenceTimeout))
	}
	if cfg.Command.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("command.max_duration %v must be positive", cfg.Command.MaxDuration))
	}
	if cfg.Command.SilenceTimeout > 0 && cfg.Command.MaxDuration > 0 &&
		cfg.Command.MaxDuration <= cfg.Command.SilenceTimeout {
		errs = append(errs, fmt.Errorf("command.max_duration %v must exceed command.silence_timeout %v",
			cfg.Command.MaxDuration, cfg.Command.SilenceTimeout))
	}
	if cfg.Command.EndKeyword == "" {
		slog.Warn("command.end_keyword is empty; commands end on silence or the duration ceiling only")
	} else {
		if cfg.Command.KeywordWindow <= 0 {
			errs = append(errs, fmt.Errorf("command.keyword_window %v must be positive when an end keyword is set", cfg.Command.KeywordWindow))
		}
		if cfg.Command.KeywordInterval <= 0 {
			errs = append(errs, fmt.Errorf("command.keyword_interval %v must be positive when an end keyword is set", cfg.Command.KeywordInterval))
		}
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	} else if cfg.Audio.SampleRate != 16000 {
		slog.Warn("audio.sample_rate is not 16000; Porcupine and whisper expect 16 kHz",
			"sample_rate", cfg.Audio.SampleRate)
	}
	if cfg.Audio.RecordChunk <= 0 {
		errs = append(errs, fmt.Errorf("audio.record_chunk %v must be positive", cfg.Audio.RecordChunk))
	}
	if !slices.Contains(ValidVADEngines, cfg.Audio.VAD) {
		errs = append(errs, fmt.Errorf("audio.vad %q is invalid; valid values: energy, webrtc, spectral", cfg.Audio.VAD))
	}
	if cfg.Audio.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold %.0f must not be negative", cfg.Audio.SilenceThreshold))
	}
	if cfg.Audio.VADAggressiveness < 0 || cfg.Audio.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_aggressiveness %d is out of range [0, 3]", cfg.Audio.VADAggressiveness))
	}

	// STT
	if cfg.STT.WhisperURL == "" && cfg.STT.NativeModel == "" && cfg.STT.OpenAIBaseURL == "" {
		errs = append(errs, errors.New("stt: no transcription backend configured; set stt.whisper_url, stt.native_model or stt.openai_base_url"))
	}
	if cfg.STT.OpenAIBaseURL != "" && cfg.STT.OpenAIAPIKey == "" {
		slog.Warn("stt.openai_base_url is set without an API key; requests may be rejected",
			"base_url", cfg.STT.OpenAIBaseURL)
	}

	// TTS
	if cfg.TTS.Enabled && cfg.TTS.URL == "" {
		errs = append(errs, errors.New("tts.url is required when tts.enabled is true"))
	}

	// Agent
	if cfg.Agent.Binary == "" {
		errs = append(errs, errors.New("agent.binary is required"))
	}
	if cfg.Agent.Terminal != "" && !cfg.Agent.Terminal.IsValid() {
		errs = append(errs, fmt.Errorf("agent.terminal %q is invalid; valid values: iterm, terminal, tmux, none", cfg.Agent.Terminal))
	}

	return errors.Join(errs...)
}
