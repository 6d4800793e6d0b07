package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration.
type Config struct {
	Backend  string
	Deepgram DeepgramConfig
	OpenAI   OpenAIConfig
	Audio    AudioConfig
	Session  SessionConfig
	Output   OutputConfig
	Rules    RulesConfig
	Commands CommandsConfig
	History  HistoryConfig
	Log      LogConfig

	MetricsAddr   string
	Notifications bool
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	VADThreshold    float64
}

type SessionConfig struct {
	Streaming        bool
	LivePreview      bool
	MinSpeechSamples int
	LoopInterval     time.Duration
}

type OutputConfig struct {
	TrailingSpace   bool
	WordReplacement bool
	Formatting      bool
	ConfirmDelay    time.Duration
}

type RulesConfig struct {
	Path            string
	IterationLimit  int
	CollapseRepeats bool
}

type CommandsConfig struct {
	Enabled        bool
	Path           string
	DebounceWindow time.Duration
}

type HistoryConfig struct {
	DSN string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	BackendDeepgram = "deepgram"
	BackendOpenAI   = "openai"
)

// Load reads an optional .env file and resolves configuration from
// environment variables and sensible defaults. Variables already set in the
// environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "voicedesk")

	cfg := Config{
		Backend: strings.ToLower(envOrDefault("VOICEDESK_BACKEND", BackendDeepgram)),
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		OpenAI: OpenAIConfig{
			APIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL:  strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:    envOrDefault("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
			Language: strings.TrimSpace(os.Getenv("OPENAI_LANGUAGE")),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("VOICEDESK_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("VOICEDESK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("VOICEDESK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      16000,
			VADThreshold:    envOrDefaultFloat("VOICEDESK_VAD_THRESHOLD", 0.01),
		},
		Session: SessionConfig{
			Streaming:        envOrDefaultBool("VOICEDESK_STREAMING", true),
			LivePreview:      envOrDefaultBool("VOICEDESK_LIVE_PREVIEW", true),
			MinSpeechSamples: envOrDefaultInt("VOICEDESK_MIN_SPEECH_SAMPLES", 8000),
			LoopInterval:     time.Duration(envOrDefaultInt("VOICEDESK_LOOP_INTERVAL_MS", 300)) * time.Millisecond,
		},
		Output: OutputConfig{
			TrailingSpace:   envOrDefaultBool("VOICEDESK_TRAILING_SPACE", true),
			WordReplacement: envOrDefaultBool("VOICEDESK_WORD_REPLACEMENT", true),
			Formatting:      envOrDefaultBool("VOICEDESK_FORMATTING", true),
			ConfirmDelay:    time.Duration(envOrDefaultInt("VOICEDESK_CONFIRM_DELAY_MS", 150)) * time.Millisecond,
		},
		Rules: RulesConfig{
			Path:            envOrDefault("VOICEDESK_RULES_FILE", filepath.Join(configDir, "substitutions.rules")),
			IterationLimit:  envOrDefaultInt("VOICEDESK_RULE_ITERATION_LIMIT", 30),
			CollapseRepeats: envOrDefaultBool("VOICEDESK_COLLAPSE_REPEATS", true),
		},
		Commands: CommandsConfig{
			Enabled:        envOrDefaultBool("VOICEDESK_COMMANDS", true),
			Path:           envOrDefault("VOICEDESK_COMMANDS_FILE", filepath.Join(configDir, "commands.yaml")),
			DebounceWindow: time.Duration(envOrDefaultFloat("VOICEDESK_COMMAND_DEBOUNCE_SECONDS", 3) * float64(time.Second)),
		},
		History: HistoryConfig{
			DSN: strings.TrimSpace(os.Getenv("VOICEDESK_HISTORY_DSN")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("VOICEDESK_LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("VOICEDESK_LOG_FORMAT", "text")),
		},
		MetricsAddr:   strings.TrimSpace(os.Getenv("VOICEDESK_METRICS_ADDR")),
		Notifications: envOrDefaultBool("VOICEDESK_NOTIFICATIONS", false),
	}

	if cfg.Session.MinSpeechSamples <= 0 {
		cfg.Session.MinSpeechSamples = 8000
	}
	if cfg.Session.LoopInterval <= 0 {
		cfg.Session.LoopInterval = 300 * time.Millisecond
	}
	if cfg.Output.ConfirmDelay < 0 {
		cfg.Output.ConfirmDelay = 150 * time.Millisecond
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Commands.DebounceWindow < 0 {
		cfg.Commands.DebounceWindow = 3 * time.Second
	}
	if cfg.Audio.VADThreshold < 0 {
		cfg.Audio.VADThreshold = 0.01
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that have no sensible fallback.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendDeepgram, BackendOpenAI:
	default:
		return fmt.Errorf("unknown VOICEDESK_BACKEND %q", c.Backend)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown VOICEDESK_LOG_FORMAT %q", c.Log.Format)
	}
	return nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
