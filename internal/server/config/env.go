package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix namespaces every environment variable the server reads.
const EnvPrefix = "TIMEVAULT_"

type lookupFunc func(string) (string, bool)

// parseEnv overlays TIMEVAULT_* variables. Secrets (DSN, admin key, S3
// credentials) are usually supplied this way rather than in files.
func parseEnv(config *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"HTTP_ADDR":         &config.HTTPAddr,
		"ADMIN_GRPC_ADDR":   &config.AdminGRPCAddr,
		"ADMIN_SECRET_KEY":  &config.AdminSecretKey,
		"STORAGE":           &config.Storage,
		"DATABASE_DSN":      &config.DatabaseDSN,
		"S3_ACCESS_KEY":     &config.S3AccessKey,
		"S3_SECRET_KEY":     &config.S3SecretKey,
		"S3_BUCKET":         &config.S3Bucket,
		"S3_REGION":         &config.S3Region,
		"S3_BASE_ENDPOINT":  &config.S3BaseEndpoint,
		"ALERT_WEBHOOK_URL": &config.AlertWebhookURL,
		"LOG_LEVEL":         &config.LogLevel,
		"LOG_FORMAT":        &config.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "OBJECT_STORAGE_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sOBJECT_STORAGE_ENABLED: %w", EnvPrefix, err)
		}
		config.ObjectStorageEnabled = b
	}

	ints := map[string]*int{
		"INLINE_THRESHOLD":     &config.InlineThreshold,
		"MAX_CIPHERTEXT_BYTES": &config.MaxCiphertextBytes,
		"POW_BASE_DIFFICULTY":  &config.PowBaseDifficulty,
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}

	durs := map[string]*time.Duration{
		"CHALLENGE_TTL":      &config.ChallengeTTL,
		"SWEEP_INTERVAL":     &config.SweepInterval,
		"METADATA_RETENTION": &config.MetadataRetention,
	}
	for name, dst := range durs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}

	return nil
}
