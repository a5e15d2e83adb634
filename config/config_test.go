package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, 60, cfg.MaxPollAttempts)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"provider": "anthropic",
		"default_timezone": "Europe/Berlin",
		"max_poll_attempts": 10
	}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "Europe/Berlin", cfg.DefaultTimezone)
	assert.Equal(t, 10, cfg.MaxPollAttempts)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1, cfg.PollIntervalSeconds)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default_timezone": "Europe/Berlin"}`), 0o600))

	t.Setenv("CALAGENT_DEFAULT_TIMEZONE", "Asia/Tokyo")
	t.Setenv("CALAGENT_MAX_POLL_ATTEMPTS", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tokyo", cfg.DefaultTimezone)
	assert.Equal(t, 5, cfg.MaxPollAttempts)
}

func TestLoadValidation(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("CALAGENT_PROVIDER", "cohere")
		_, err := Load("")
		assert.ErrorContains(t, err, "unknown provider")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid poll budget", func(t *testing.T) {
		t.Setenv("CALAGENT_MAX_POLL_ATTEMPTS", "-1")
		_, err := Load("")
		assert.ErrorContains(t, err, "max_poll_attempts")
	})
}
