package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Comments and trailing
// commas are allowed. Durations use timex.Duration so both "15m" and integer
// nanoseconds parse. Absent fields keep the value of the previous layer.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	AdminGRPCAddr   string         `json:"admin_grpc_addr"`
	AdminSecretKey  string         `json:"admin_secret_key"`
	ShutdownTimeout timex.Duration `json:"shutdown_timeout"`

	Storage     string `json:"storage"`
	DatabaseDSN string `json:"database_dsn"`

	ObjectStorageEnabled *bool  `json:"object_storage_enabled"`
	InlineThreshold      *int   `json:"inline_threshold"`
	S3AccessKey          string `json:"s3_access_key"`
	S3SecretKey          string `json:"s3_secret_key"`
	S3Bucket             string `json:"s3_bucket"`
	S3Region             string `json:"s3_region"`
	S3BaseEndpoint       string `json:"s3_base_endpoint"`

	MaxCiphertextBytes int            `json:"max_ciphertext_bytes"`
	MinExpiryGap       timex.Duration `json:"min_expiry_gap"`
	MaxHorizon         timex.Duration `json:"max_horizon"`

	PowBaseDifficulty *int           `json:"pow_base_difficulty"`
	ChallengeTTL      timex.Duration `json:"challenge_ttl"`

	SweepInterval     timex.Duration `json:"sweep_interval"`
	SweepBatchSize    int            `json:"sweep_batch_size"`
	MetadataRetention timex.Duration `json:"metadata_retention"`

	Argon2                  *cryptox.Argon2Params `json:"argon2"`
	CapabilityTiers         map[string]jsonTier   `json:"capability_tiers"`
	CapabilityTokenValidity timex.Duration        `json:"capability_token_validity"`

	AlertWebhookURL string `json:"alert_webhook_url"`
	LogLevel        string `json:"log_level"`
	LogFormat       string `json:"log_format"`
}

type jsonTier struct {
	MaxCiphertextBytes int64          `json:"max_ciphertext_bytes"`
	MaxExpiry          timex.Duration `json:"max_expiry"`
}

// parseJSON loads path (if non-empty) over config.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(jsonc.ToJSON(raw), c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.AdminGRPCAddr, c.AdminGRPCAddr)
	setString(&config.AdminSecretKey, c.AdminSecretKey)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)

	if c.ObjectStorageEnabled != nil {
		config.ObjectStorageEnabled = *c.ObjectStorageEnabled
	}
	if c.InlineThreshold != nil {
		config.InlineThreshold = *c.InlineThreshold
	}
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.MaxCiphertextBytes != 0 {
		config.MaxCiphertextBytes = c.MaxCiphertextBytes
	}
	setDuration(&config.MinExpiryGap, c.MinExpiryGap)
	setDuration(&config.MaxHorizon, c.MaxHorizon)

	if c.PowBaseDifficulty != nil {
		config.PowBaseDifficulty = *c.PowBaseDifficulty
	}
	setDuration(&config.ChallengeTTL, c.ChallengeTTL)

	setDuration(&config.SweepInterval, c.SweepInterval)
	if c.SweepBatchSize != 0 {
		config.SweepBatchSize = c.SweepBatchSize
	}
	setDuration(&config.MetadataRetention, c.MetadataRetention)

	if c.Argon2 != nil {
		config.Argon2 = *c.Argon2
	}
	if c.CapabilityTiers != nil {
		config.CapabilityTiers = make(map[string]CapabilityTier, len(c.CapabilityTiers))
		for name, t := range c.CapabilityTiers {
			config.CapabilityTiers[name] = CapabilityTier{MaxCiphertextBytes: t.MaxCiphertextBytes, MaxExpiry: t.MaxExpiry.Duration}
		}
	}
	setDuration(&config.CapabilityTokenValidity, c.CapabilityTokenValidity)

	setString(&config.AlertWebhookURL, c.AlertWebhookURL)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
