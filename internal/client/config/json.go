package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/dmitrijs2005/timevault/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI config file. Absent fields keep
// their defaults.
type JsonConfig struct {
	ServerURL       string         `json:"server_url"`
	PublicURL       string         `json:"public_url"`
	HistoryPath     *string        `json:"history_path"`
	CapabilityToken string         `json:"capability_token"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
	Retries         *int           `json:"retries"`
	AdminAddr       string         `json:"admin_addr"`
	AdminToken      string         `json:"admin_token"`
}

func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(jsonc.ToJSON(raw), &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.PublicURL != "" {
		cfg.PublicURL = jc.PublicURL
	}
	if jc.HistoryPath != nil {
		cfg.HistoryPath = *jc.HistoryPath
	}
	if jc.CapabilityToken != "" {
		cfg.CapabilityToken = jc.CapabilityToken
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.Retries != nil {
		cfg.Retries = *jc.Retries
	}
	if jc.AdminAddr != "" {
		cfg.AdminAddr = jc.AdminAddr
	}
	if jc.AdminToken != "" {
		cfg.AdminToken = jc.AdminToken
	}
	return nil
}
