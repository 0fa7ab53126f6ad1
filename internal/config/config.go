// Package config provides the gateway's configuration schema and loader.
// Values come from an optional YAML file, overridden by environment
// variables, overridden by command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ronith256-meesho/qw-asr/session"
)

// Config is the root configuration for the gateway process.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	VAD      VADConfig      `yaml:"vad"`
	Defaults SessionConfig  `yaml:"session_defaults"`
	Sessions SessionsConfig `yaml:"sessions"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g. ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// DecoderConfig selects and configures the transcription backend.
type DecoderConfig struct {
	// Backend selects the decoder implementation: "qwen" or "openai".
	Backend string `yaml:"backend"`

	// URL is the remote decode service endpoint (qwen backend).
	URL string `yaml:"url"`

	// APIKey authenticates against the backend.
	APIKey string `yaml:"api_key"`

	// TokenizerPath points at the tokenizer vocabulary used for
	// token-prefix rollback (qwen backend).
	TokenizerPath string `yaml:"tokenizer_path"`

	// Timeout bounds one streaming-decode call.
	Timeout time.Duration `yaml:"timeout"`
}

// VADConfig configures the voice activity detector.
type VADConfig struct {
	// ModelPath points at the Silero VAD ONNX model file.
	ModelPath string `yaml:"model_path"`

	// FrameSize is the analysis size in samples: 512, 1024 or 1536.
	FrameSize int `yaml:"frame_size"`

	// NoiseGate enables the pre-VAD noise gate filter.
	NoiseGate bool `yaml:"noise_gate"`
}

// SessionConfig mirrors session.Config for the YAML schema.
type SessionConfig struct {
	VADThreshold      *float64 `yaml:"vad_threshold"`
	SilenceThreshold  *float64 `yaml:"silence_threshold"`
	MinSpeechDuration *float64 `yaml:"min_speech_duration"`
	ChunkSize         *float64 `yaml:"chunk_size"`
	UnfixedChunkNum   *int     `yaml:"unfixed_chunk_num"`
	UnfixedTokenNum   *int     `yaml:"unfixed_token_num"`
	Language          *string  `yaml:"language"`
	Prompt            *string  `yaml:"prompt"`
	Context           *string  `yaml:"context"`
}

// SessionsConfig bounds session lifecycle.
type SessionsConfig struct {
	// Max is the maximum concurrent session count; 0 means unlimited.
	Max int `yaml:"max"`

	// IdleTTL closes sessions with no inbound activity.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   "info",
		},
		Decoder: DecoderConfig{
			Backend: "qwen",
			Timeout: 10 * time.Second,
		},
		VAD: VADConfig{
			FrameSize: 512,
		},
		Sessions: SessionsConfig{
			Max:     256,
			IdleTTL: 10 * time.Minute,
		},
	}
}

// Load reads the YAML file when path is non-empty, then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays QW_ASR_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.ListenAddr, "QW_ASR_LISTEN_ADDR")
	setString(&cfg.Server.LogLevel, "QW_ASR_LOG_LEVEL")
	setString(&cfg.Decoder.Backend, "QW_ASR_DECODER_BACKEND")
	setString(&cfg.Decoder.URL, "QW_ASR_DECODER_URL")
	setString(&cfg.Decoder.APIKey, "QW_ASR_DECODER_API_KEY")
	setString(&cfg.Decoder.TokenizerPath, "QW_ASR_TOKENIZER_PATH")
	setString(&cfg.VAD.ModelPath, "QW_ASR_VAD_MODEL")
	setInt(&cfg.VAD.FrameSize, "QW_ASR_VAD_FRAME_SIZE")
	setInt(&cfg.Sessions.Max, "QW_ASR_MAX_SESSIONS")
	setDuration(&cfg.Sessions.IdleTTL, "QW_ASR_IDLE_TTL")
	setDuration(&cfg.Decoder.Timeout, "QW_ASR_DECODE_TIMEOUT")
}

// SessionDefaults converts the YAML session block into the runtime defaults.
func (c Config) SessionDefaults() session.Config {
	cfg := session.DefaultConfig()
	d := c.Defaults
	if d.VADThreshold != nil {
		cfg.VADThreshold = *d.VADThreshold
	}
	if d.SilenceThreshold != nil {
		cfg.SilenceThreshold = *d.SilenceThreshold
	}
	if d.MinSpeechDuration != nil {
		cfg.MinSpeechDuration = *d.MinSpeechDuration
	}
	if d.ChunkSize != nil {
		cfg.ChunkSize = *d.ChunkSize
	}
	if d.UnfixedChunkNum != nil {
		cfg.UnfixedChunkNum = *d.UnfixedChunkNum
	}
	if d.UnfixedTokenNum != nil {
		cfg.UnfixedTokenNum = *d.UnfixedTokenNum
	}
	if d.Language != nil {
		cfg.Language = *d.Language
	}
	if d.Prompt != nil {
		cfg.Prompt = *d.Prompt
	}
	if d.Context != nil {
		cfg.Context = *d.Context
	}
	return cfg
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
