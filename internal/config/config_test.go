package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("AUTH_MODE", "")

	cfg := NewConfig()

	assert.Equal(t, "", cfg.Database.DSN)
	assert.Equal(t, 7, cfg.Grants.TokenTTLDays)
	assert.Equal(t, 30, cfg.Grants.MaxTokenTTLDays)
	assert.Equal(t, 10, cfg.RateLimit.TokenAttempts)
	assert.Equal(t, time.Minute, cfg.RateLimit.TokenWindow)
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "JWT")
	t.Setenv("GRANT_TOKEN_TTL_DAYS", "3")
	t.Setenv("GRANT_SWEEP_INTERVAL", "0s")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")

	cfg := NewConfig()

	assert.Equal(t, AuthModeJWT, cfg.Auth.Mode)
	assert.Equal(t, 3, cfg.Grants.TokenTTLDays)
	assert.Equal(t, time.Duration(0), cfg.Grants.SweepInterval)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.InDelta(t, 0.25, cfg.Telemetry.SamplingRatio, 1e-9)
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("REDIS_DB", "abc")

	assert.Equal(t, 0, NewConfig().Redis.DB)
}
