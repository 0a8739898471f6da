package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"admin_grpc_addr":        "127.0.0.1:7000",
		"database_dsn":           "postgres://x",
		"object_storage_enabled": true,
		"inline_threshold":       0,
		"s3_bucket":              "bucket",
		"min_expiry_gap":         "30m",
		"metadata_retention":     int64(time.Hour),
		"argon2":                 map[string]any{"time": 1, "memory_kib": 1024, "threads": 1, "key_len": 32, "salt_len": 16},
		"capability_tiers": map[string]any{
			"team": map[string]any{"max_ciphertext_bytes": 5000, "max_expiry": "48h"},
		},
	})

	cfg := defaults()
	require.NoError(t, parseJSON(cfg, path))

	assert.Equal(t, "127.0.0.1:7000", cfg.AdminGRPCAddr)
	assert.Equal(t, "postgres://x", cfg.DatabaseDSN)
	assert.True(t, cfg.ObjectStorageEnabled)
	assert.Equal(t, 0, cfg.InlineThreshold)
	assert.Equal(t, "bucket", cfg.S3Bucket)
	assert.Equal(t, 30*time.Minute, cfg.MinExpiryGap)
	assert.Equal(t, time.Hour, cfg.MetadataRetention)
	assert.Equal(t, uint32(1024), cfg.Argon2.Memory)
	assert.Equal(t, map[string]CapabilityTier{"team": {MaxCiphertextBytes: 5000, MaxExpiry: 48 * time.Hour}}, cfg.CapabilityTiers)

	// untouched fields keep defaults
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 18, cfg.PowBaseDifficulty)
}

func Test_parseJSON_NoPath(t *testing.T) {
	cfg := defaults()
	require.NoError(t, parseJSON(cfg, ""))
	assert.Equal(t, defaults(), cfg)
}
