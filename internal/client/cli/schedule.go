package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/timevault/internal/client/services"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTime accepts RFC 3339 or a local "2006-01-02 15:04".
func parseTime(flag, s string) (*time.Time, error) {
	for _, l := range timeLayouts {
		if t, err := time.ParseInLocation(l, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: cannot parse %q, use RFC 3339 or \"YYYY-MM-DD HH:MM\"", flag, s)
}

// scheduleFlags are the unlock and expiry flags shared by create and edit.
// An absolute time wins over the preset, whose flag default is ignored.
type scheduleFlags struct {
	unlock    string
	unlockAt  string
	expiry    string
	expiresAt string
}

func (f scheduleFlags) schedule() (services.Schedule, error) {
	var s services.Schedule
	var err error

	if f.unlockAt != "" {
		if s.UnlockAt, err = parseTime("unlock-at", f.unlockAt); err != nil {
			return s, err
		}
	} else {
		s.UnlockPreset = f.unlock
	}

	if f.expiresAt != "" {
		if s.ExpiresAt, err = parseTime("expires-at", f.expiresAt); err != nil {
			return s, err
		}
	} else {
		s.ExpiryPreset = f.expiry
	}
	return s, nil
}
