package config

import (
	"fmt"
	"strconv"
	"time"
)

const EnvPrefix = "TIMEVAULT_"

type lookupFunc func(string) (string, bool)

func parseEnv(cfg *Config, lookup lookupFunc) error {
	strs := map[string]*string{
		"SERVER_URL":       &cfg.ServerURL,
		"PUBLIC_URL":       &cfg.PublicURL,
		"HISTORY_PATH":     &cfg.HistoryPath,
		"CAPABILITY_TOKEN": &cfg.CapabilityToken,
		"ADMIN_ADDR":       &cfg.AdminAddr,
		"ADMIN_TOKEN":      &cfg.AdminToken,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.RequestTimeout = d
	}
	if v, ok := lookup(EnvPrefix + "RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRIES: %w", EnvPrefix, err)
		}
		cfg.Retries = n
	}
	return nil
}
