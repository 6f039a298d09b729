package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTelegramToken(t *testing.T) {
	v := NewValidator()

	t.Run("valid token", func(t *testing.T) {
		assert.NoError(t, v.ValidateTelegramToken(testToken))
	})

	t.Run("invalid format", func(t *testing.T) {
		assert.Error(t, v.ValidateTelegramToken("invalid-token"))
	})

	t.Run("empty token", func(t *testing.T) {
		assert.Error(t, v.ValidateTelegramToken(""))
	})
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level), level)
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("@every 5m"))
	assert.NoError(t, v.ValidateSchedule("*/10 * * * *"))
	assert.Error(t, v.ValidateSchedule(""))
	assert.Error(t, v.ValidateSchedule("every five minutes"))
}

func TestValidateListenAddr(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateListenAddr("127.0.0.1:9464"))
	assert.NoError(t, v.ValidateListenAddr(":9464"))
	assert.Error(t, v.ValidateListenAddr("9464"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Telegram.BotToken = testToken
		assert.Empty(t, v.ValidateConfig(cfg))
	})

	t.Run("bad values", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Telegram.BotToken = testToken
		cfg.Telegram.MaxFileSizeMB = 0
		cfg.Telegram.Allowlist = []int64{-1}
		cfg.Session.SweepSchedule = "sometimes"
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = "nowhere"

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 4)
	})

	t.Run("metrics address ignored when disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Telegram.BotToken = testToken
		cfg.Metrics.Listen = "nowhere"
		assert.Empty(t, v.ValidateConfig(cfg))
	})
}
