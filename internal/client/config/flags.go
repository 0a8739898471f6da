package config

import "github.com/spf13/pflag"

// AddFlags registers the persistent CLI flags on fs, bound to cfg and
// defaulting to its current values so unset flags keep earlier layers.
//
//	-c, --config            JSON config file (read before flags)
//	-s, --server            API server base URL
//	    --public-url        base URL of share links
//	    --history           history database path, empty disables
//	    --capability-token  bypass PoW with a capability token
//	    --timeout           per-request timeout
//	    --retries           retries of transient failures
//	    --admin-addr        admin gRPC address
//	    --admin-token       admin JWT
func AddFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringP("config", "c", "", "path to JSON config file")
	fs.StringVarP(&cfg.ServerURL, "server", "s", cfg.ServerURL, "API server base URL")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "base URL used in share links")
	fs.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "history database path, empty disables history")
	fs.StringVar(&cfg.CapabilityToken, "capability-token", cfg.CapabilityToken, "capability token used instead of proof of work")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	fs.IntVar(&cfg.Retries, "retries", cfg.Retries, "retries of transient failures")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin gRPC address")
	fs.StringVar(&cfg.AdminToken, "admin-token", cfg.AdminToken, "admin JWT")
}
