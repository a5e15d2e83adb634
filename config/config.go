// Package config loads the runtime configuration from an optional JSON file
// with environment variable overrides. Precedence: defaults, then file, then
// environment, then command line flags applied by the caller.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Provider names a conversation backend implementation.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the full runtime configuration.
type Config struct {
	// Provider selects the conversation backend: "openai" or "anthropic".
	Provider string `json:"provider"`
	// Model overrides the backend's default model id.
	Model string `json:"model,omitempty"`
	// AssistantID reuses an existing OpenAI assistant.
	AssistantID string `json:"assistant_id,omitempty"`
	// Instructions is the assistant's system prompt.
	Instructions string `json:"instructions,omitempty"`

	// DefaultTimezone interprets naive times when neither the payload nor
	// the profile carries a zone.
	DefaultTimezone string `json:"default_timezone"`
	// CalendarID selects the Google calendar written to.
	CalendarID string `json:"calendar_id,omitempty"`

	// ProfilePath points at the JSON profile document.
	ProfilePath string `json:"profile_path,omitempty"`
	// ThreadLookupPath points at the JSON file persisting thread tokens.
	ThreadLookupPath string `json:"thread_lookup_path,omitempty"`

	// PollIntervalSeconds is the pause between run status polls.
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`
	// MaxPollAttempts bounds polling per run segment.
	MaxPollAttempts int `json:"max_poll_attempts,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
	// LogFormat is "text" or "json".
	LogFormat string `json:"log_format,omitempty"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		Provider:            ProviderOpenAI,
		DefaultTimezone:     "UTC",
		CalendarID:          "primary",
		PollIntervalSeconds: 1,
		MaxPollAttempts:     60,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration from defaults, the optional JSON file at
// path (empty path skips the file), and CALAGENT_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field constraints.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.DefaultTimezone == "" {
		return fmt.Errorf("default_timezone must not be empty")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	if c.MaxPollAttempts <= 0 {
		return fmt.Errorf("max_poll_attempts must be positive")
	}
	return nil
}

// applyEnv overlays CALAGENT_* environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("CALAGENT_PROVIDER", &cfg.Provider)
	setString("CALAGENT_MODEL", &cfg.Model)
	setString("CALAGENT_ASSISTANT_ID", &cfg.AssistantID)
	setString("CALAGENT_INSTRUCTIONS", &cfg.Instructions)
	setString("CALAGENT_DEFAULT_TIMEZONE", &cfg.DefaultTimezone)
	setString("CALAGENT_CALENDAR_ID", &cfg.CalendarID)
	setString("CALAGENT_PROFILE_PATH", &cfg.ProfilePath)
	setString("CALAGENT_THREAD_LOOKUP_PATH", &cfg.ThreadLookupPath)
	setString("CALAGENT_LOG_LEVEL", &cfg.LogLevel)
	setString("CALAGENT_LOG_FORMAT", &cfg.LogFormat)
	setInt("CALAGENT_POLL_INTERVAL_SECONDS", &cfg.PollIntervalSeconds)
	setInt("CALAGENT_MAX_POLL_ATTEMPTS", &cfg.MaxPollAttempts)
}
