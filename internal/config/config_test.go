package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456789:ABCdefGHIjklMNOpqrsTUVwxyz"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.Telegram.MaxFileSizeMB)
	assert.Equal(t, 60, cfg.Telegram.PollTimeout)
	assert.Empty(t, cfg.Telegram.Allowlist)
	assert.Equal(t, 30, cfg.Session.IdleTimeoutMinutes)
	assert.Equal(t, "@every 5m", cfg.Session.SweepSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, int64(20*1024*1024), cfg.MaxFileSize())
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, 5*time.Minute, cfg.DedupeTTL())
}

func TestIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsAllowed(42), "empty allowlist admits everyone")

	cfg.Telegram.Allowlist = []int64{7, 8}
	assert.True(t, cfg.IsAllowed(7))
	assert.False(t, cfg.IsAllowed(42))
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Telegram.BotToken = testToken

	out := cfg.String()
	assert.NotContains(t, out, "ABCdefGHI")
	assert.Contains(t, out, `"bot_token": "***"`)
	assert.Equal(t, testToken, cfg.Telegram.BotToken, "String must not mutate the config")
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Telegram.BotToken = testToken
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing token", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bot token is required")
	})

	t.Run("joins every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Session.IdleTimeoutMinutes = 0
		cfg.Logging.Level = "loud"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Len(t, strings.Split(err.Error(), "\n"), 3)
	})
}
