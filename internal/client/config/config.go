// Package config holds the settings of the timevault CLI: built-in defaults,
// then an optional JSON file (-c/--config), then TIMEVAULT_* environment
// variables, then the persistent command-line flags registered by AddFlags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/timevault/internal/flagx"
)

// Config holds runtime settings for the timevault CLI.
type Config struct {
	// ServerURL is the base URL of the API server, without /api/v1.
	ServerURL string
	// PublicURL prefixes share and edit links. Defaults to ServerURL.
	PublicURL string
	// HistoryPath is the SQLite file recording created secrets. Empty
	// disables history.
	HistoryPath     string
	CapabilityToken string
	RequestTimeout  time.Duration
	Retries         int
	// AdminAddr and AdminToken are only used by the admin commands.
	AdminAddr  string
	AdminToken string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.PublicURL = ""
	c.HistoryPath = defaultHistoryPath()
	c.CapabilityToken = ""
	c.RequestTimeout = 30 * time.Second
	c.Retries = 3
	c.AdminAddr = "127.0.0.1:50051"
	c.AdminToken = ""
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "timevault", "history.db")
}

// LinkBase returns the URL share and edit links are built on.
func (c *Config) LinkBase() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return c.ServerURL
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server url %q is not an absolute URL", c.ServerURL))
	}
	if c.PublicURL != "" {
		if u, err := url.Parse(c.PublicURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("public url %q is not an absolute URL", c.PublicURL))
		}
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Retries < 0 {
		errs = append(errs, errors.New("retries must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults, the JSON file named by
// -c/--config in args and the environment. Flags are applied later by the
// command tree through AddFlags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}
