// Package config provides the configuration schema, defaults and loader for
// the hark daemon.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/hark/internal/agent"
)

// LogLevel controls log verbosity for the hark daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to its slog equivalent. Unrecognised levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for hark. It is typically
// loaded from a YAML file using [Load]; absent fields keep the
// [DefaultConfig] values.
type Config struct {
	Wake    WakeConfig    `yaml:"wake"`
	Command CommandConfig `yaml:"command"`
	Audio   AudioConfig   `yaml:"audio"`
	STT     STTConfig     `yaml:"stt"`
	TTS     TTSConfig     `yaml:"tts"`
	Agent   AgentConfig   `yaml:"agent"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// WakeConfig holds wake-word detection settings.
type WakeConfig struct {
	// AccessKey is the Picovoice access key. When empty, the
	// PICOVOICE_ACCESS_KEY (or HARK_ACCESS_KEY) environment variable is
	// used instead.
	AccessKey string `yaml:"access_key"`

	// KeywordPath is the Porcupine keyword file (.ppn) to listen for.
	KeywordPath string `yaml:"keyword_path"`

	// ModelPath optionally overrides the Porcupine acoustic model (.pv).
	ModelPath string `yaml:"model_path"`

	// Sensitivity trades detection rate against false positives, in
	// [0.0, 1.0].
	Sensitivity float32 `yaml:"sensitivity"`
}

// CommandConfig holds command-capture settings.
type CommandConfig struct {
	// EndKeyword terminates a command when spoken at the end of a phrase
	// (e.g. "over"). Empty disables keyword termination.
	EndKeyword string `yaml:"end_keyword"`

	// SilenceTimeout ends the command after this much trailing silence.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`

	// MaxDuration is the hard recording ceiling.
	MaxDuration time.Duration `yaml:"max_duration"`

	// KeywordWindow is how much trailing audio the mid-session keyword
	// spotter transcribes.
	KeywordWindow time.Duration `yaml:"keyword_window"`

	// KeywordInterval is how often the spotter runs during recording.
	KeywordInterval time.Duration `yaml:"keyword_interval"`
}

// AudioConfig holds capture device and voice-activity settings.
type AudioConfig struct {
	// InputDevice selects the capture device by name. Empty means the
	// system default.
	InputDevice string `yaml:"input_device"`

	// SampleRate is the capture rate in Hz. Porcupine requires 16000.
	SampleRate int `yaml:"sample_rate"`

	// RecordChunk is the duration of one captured frame.
	RecordChunk time.Duration `yaml:"record_chunk"`

	// VAD selects the voice-activity engine: "energy", "webrtc" or
	// "spectral".
	VAD string `yaml:"vad"`

	// SilenceThreshold is the RMS level below which a chunk counts as
	// silence. Used by the energy engine.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// VADAggressiveness tunes the webrtc engine, 0 (permissive) to 3
	// (aggressive).
	VADAggressiveness int `yaml:"vad_aggressiveness"`
}

// STTConfig holds transcription backend settings. The whisper server is the
// primary backend; a native whisper.cpp model and an OpenAI-compatible
// endpoint act as fallbacks when configured.
type STTConfig struct {
	// WhisperURL is the whisper-server inference endpoint.
	WhisperURL string `yaml:"whisper_url"`

	// Language is the ISO 639-1 recognition language.
	Language string `yaml:"language"`

	// NativeModel is a ggml model path. Setting it enables the in-process
	// whisper.cpp fallback and the mid-session keyword spotter.
	NativeModel string `yaml:"native_model"`

	// OpenAIBaseURL is an OpenAI-compatible transcription endpoint used as
	// a fallback (e.g. "https://api.openai.com/v1").
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// OpenAIAPIKey authenticates against OpenAIBaseURL. When empty, the
	// OPENAI_API_KEY environment variable is used instead.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// UseFallback enables failover across the configured backends.
	UseFallback bool `yaml:"use_fallback"`
}

// TTSConfig holds spoken-confirmation settings.
type TTSConfig struct {
	// Enabled turns on spoken confirmations after successful dispatch.
	Enabled bool `yaml:"enabled"`

	// URL is an OpenAI-compatible /v1/audio/speech endpoint.
	URL string `yaml:"url"`

	// Voice is the synthesis voice name.
	Voice string `yaml:"voice"`
}

// AgentConfig holds agent launcher settings.
type AgentConfig struct {
	// Binary is the agent CLI executable.
	Binary string `yaml:"binary"`

	// WorkingDir is where the agent runs. "~" expands to the user's home.
	WorkingDir string `yaml:"working_dir"`

	// Terminal selects where the launched session appears.
	Terminal agent.Terminal `yaml:"terminal"`
}

// LogConfig holds logging destinations.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`

	// File is the daemon log path.
	File string `yaml:"file"`

	// SessionFile is the command history path.
	SessionFile string `yaml:"session_file"`
}

// ServerConfig holds the optional HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz, /metrics and
	// /events (e.g. "127.0.0.1:9741"). Empty disables the server.
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns the configuration hark runs with when no config
// file exists.
func DefaultConfig() *Config {
	return &Config{
		Wake: WakeConfig{
			KeywordPath: "models/hey-hark.ppn",
			Sensitivity: 0.5,
		},
		Command: CommandConfig{
			EndKeyword:      "over",
			SilenceTimeout:  2 * time.Second,
			MaxDuration:     30 * time.Second,
			KeywordWindow:   1500 * time.Millisecond,
			KeywordInterval: 600 * time.Millisecond,
		},
		Audio: AudioConfig{
			SampleRate:        16000,
			RecordChunk:       100 * time.Millisecond,
			VAD:               "energy",
			SilenceThreshold:  500,
			VADAggressiveness: 2,
		},
		STT: STTConfig{
			WhisperURL:  "http://127.0.0.1:8090/inference",
			Language:    "en",
			UseFallback: true,
		},
		TTS: TTSConfig{
			URL:   "http://127.0.0.1:8880",
			Voice: "alloy",
		},
		Agent: AgentConfig{
			Binary:     "claude",
			WorkingDir: "~",
			Terminal:   agent.TerminalNone,
		},
		Log: LogConfig{
			Level:       LogInfo,
			File:        "logs/hark.log",
			SessionFile: "logs/command_history.log",
		},
	}
}
