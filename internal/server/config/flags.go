package config

import (
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/timevault/internal/flagx"
)

// newFlagSet declares the server flags with the current config values as
// defaults, so unset flags leave earlier layers alone.
//
//	-a, --http-addr         public HTTP listen address
//	    --admin-addr        admin gRPC listen address ("" disables)
//	-s, --admin-secret      HMAC key for admin JWTs
//	    --storage           postgres | memory
//	-d, --database-dsn      PostgreSQL DSN (pgx)
//	    --object-storage    store large ciphertexts in S3
//	    --inline-threshold  max ciphertext bytes kept in the database
//	-u, --s3-access-key
//	-p, --s3-secret-key
//	-b, --s3-bucket
//	-g, --s3-region
//	-e, --s3-endpoint
//	    --pow-difficulty    base PoW difficulty in bits
//	    --challenge-ttl
//	    --sweep-interval
//	    --alert-webhook
//	    --log-level
//	    --log-format        json | text
func newFlagSet(config *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("timevault-server", pflag.ContinueOnError)

	fs.StringVarP(&config.HTTPAddr, "http-addr", "a", config.HTTPAddr, "public HTTP listen address")
	fs.StringVar(&config.AdminGRPCAddr, "admin-addr", config.AdminGRPCAddr, "admin gRPC listen address, empty disables")
	fs.StringVarP(&config.AdminSecretKey, "admin-secret", "s", config.AdminSecretKey, "admin JWT signing key")
	fs.StringVar(&config.Storage, "storage", config.Storage, "storage backend: postgres or memory")
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "database DSN")
	fs.BoolVar(&config.ObjectStorageEnabled, "object-storage", config.ObjectStorageEnabled, "store large ciphertexts in S3")
	fs.IntVar(&config.InlineThreshold, "inline-threshold", config.InlineThreshold, "max ciphertext bytes stored inline")
	fs.StringVarP(&config.S3AccessKey, "s3-access-key", "u", config.S3AccessKey, "S3 access key")
	fs.StringVarP(&config.S3SecretKey, "s3-secret-key", "p", config.S3SecretKey, "S3 secret key")
	fs.StringVarP(&config.S3Bucket, "s3-bucket", "b", config.S3Bucket, "S3 bucket")
	fs.StringVarP(&config.S3Region, "s3-region", "g", config.S3Region, "S3 region")
	fs.StringVarP(&config.S3BaseEndpoint, "s3-endpoint", "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.IntVar(&config.PowBaseDifficulty, "pow-difficulty", config.PowBaseDifficulty, "base PoW difficulty (leading zero bits)")
	fs.DurationVar(&config.ChallengeTTL, "challenge-ttl", config.ChallengeTTL, "PoW challenge lifetime")
	fs.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "expiry sweep interval")
	fs.StringVar(&config.AlertWebhookURL, "alert-webhook", config.AlertWebhookURL, "operator alert webhook URL")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "json or text")

	return fs
}

// parseFlags overlays command-line flags. Arguments that belong to other
// flag sets (such as -c) are skipped.
func parseFlags(config *Config, args []string) error {
	return flagx.ParseOwn(newFlagSet(config), args)
}
