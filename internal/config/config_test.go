package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "EMITRA_TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "EMITRA_TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}
			assert.Equal(t, tc.expected, getEnvOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "EMITRA_TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "EMITRA_TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "EMITRA_TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}
			assert.Equal(t, tc.expected, getEnvAsIntOrDefault(tc.key, tc.defaultVal))
		})
	}
}

func TestGetEnvAsDurationOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"plain seconds", "45", 45 * time.Second},
		{"minutes", "5m", 5 * time.Minute},
		{"garbage falls back", "soon", time.Minute},
		{"empty falls back", "", time.Minute},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("EMITRA_TEST_DURATION", tc.envValue)
			assert.Equal(t, tc.expected, getEnvAsDurationOrDefault("EMITRA_TEST_DURATION", time.Minute))
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	t.Setenv("EMITRA_NONEXISTENT_REQUIRED_VAR", "")
	assert.Panics(t, func() {
		mustGetEnv("EMITRA_NONEXISTENT_REQUIRED_VAR")
	})
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	t.Setenv("EMITRA_TEST_REQUIRED", "value123")
	assert.Equal(t, "value123", mustGetEnv("EMITRA_TEST_REQUIRED"))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/emitra")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("PORT", "")
	t.Setenv("CHAT_TIMEOUT", "")
	t.Setenv("OTP_TTL", "")
	t.Setenv("OTP_MAX_ATTEMPTS", "")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.ChatTimeout)
	assert.Equal(t, 5*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 5, cfg.OTPMaxAttempts)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
}
