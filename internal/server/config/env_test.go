package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func Test_parseEnv(t *testing.T) {
	cfg := defaults()
	err := parseEnv(cfg, mapLookup(map[string]string{
		"TIMEVAULT_DATABASE_DSN":           "postgres://env",
		"TIMEVAULT_ADMIN_SECRET_KEY":       "k",
		"TIMEVAULT_OBJECT_STORAGE_ENABLED": "true",
		"TIMEVAULT_INLINE_THRESHOLD":       "1024",
		"TIMEVAULT_SWEEP_INTERVAL":         "10s",
		"TIMEVAULT_LOG_LEVEL":              "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, "k", cfg.AdminSecretKey)
	assert.True(t, cfg.ObjectStorageEnabled)
	assert.Equal(t, 1024, cfg.InlineThreshold)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.Equal(t, "info", cfg.LogLevel, "empty values are ignored")
}

func Test_parseEnv_Invalid(t *testing.T) {
	for k, v := range map[string]string{
		"TIMEVAULT_OBJECT_STORAGE_ENABLED": "maybe",
		"TIMEVAULT_POW_BASE_DIFFICULTY":    "hard",
		"TIMEVAULT_CHALLENGE_TTL":          "5 minutes",
	} {
		assert.Error(t, parseEnv(defaults(), mapLookup(map[string]string{k: v})), k)
	}
}
