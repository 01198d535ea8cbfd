package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "default", cfg.TenantID)
	assert.Equal(t, 15*time.Second, cfg.ConflictCooldown)
	assert.Equal(t, time.Second, cfg.StreamErrorDelay)
	assert.Equal(t, 3*time.Second, cfg.GenericCloseDelay)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 55*time.Minute, cfg.ReminderLeadMin)
	assert.Equal(t, 65*time.Minute, cfg.ReminderLeadMax)
	assert.Equal(t, 6, cfg.HistoryDepth)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_CONFLICT_COOLDOWN", "30s")
	t.Setenv("GEMINI_MODELS", "gemini-2.0-flash, gemini-1.5-flash ")
	t.Setenv("COMPLETION_TEMPERATURE", "0.2")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ConflictCooldown)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash"}, cfg.GeminiModels)
	assert.InDelta(t, 0.2, cfg.Temperature, 1e-9)
	assert.True(t, cfg.RedisTLS)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CONVERSATION_HISTORY_DEPTH", "not-a-number")
	t.Setenv("REMINDER_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 6, cfg.HistoryDepth)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
}
