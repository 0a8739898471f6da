package services

import (
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
)

const day = 24 * time.Hour

// UnlockPresets are offsets from the server clock.
var UnlockPresets = map[string]time.Duration{
	"now":  0,
	"1h":   time.Hour,
	"6h":   6 * time.Hour,
	"1d":   day,
	"3d":   3 * day,
	"7d":   7 * day,
	"30d":  30 * day,
	"90d":  90 * day,
	"180d": 180 * day,
	"1y":   365 * day,
}

// ExpiryPresets are offsets from the resolved unlock time.
var ExpiryPresets = map[string]time.Duration{
	"1d":  day,
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
	"1y":  365 * day,
}

// TimeSpec is either an absolute time or a preset name; exactly one must be
// set.
type TimeSpec struct {
	At     *time.Time
	Preset string
}

// Schedule is a resolved pair of lifecycle times.
type Schedule struct {
	UnlockAt  time.Time
	ExpiresAt time.Time
}

type scheduleLimits struct {
	gap     time.Duration
	horizon time.Duration
}

func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func resolveOne(field string, spec TimeSpec, base time.Time, presets map[string]time.Duration) (time.Time, error) {
	switch {
	case spec.At != nil && spec.Preset != "":
		return time.Time{}, common.NewTimeRangeError("provide only one of %s or %s_preset", field, trimAt(field))
	case spec.At != nil:
		return normalize(*spec.At), nil
	case spec.Preset != "":
		d, ok := presets[spec.Preset]
		if !ok {
			return time.Time{}, common.NewTimeRangeError("unknown %s preset %q", trimAt(field), spec.Preset)
		}
		return normalize(base.Add(d)), nil
	default:
		return time.Time{}, common.NewTimeRangeError("one of %s or %s_preset is required", field, trimAt(field))
	}
}

// trimAt maps "unlock_at" to "unlock" and "expires_at" to "expiry".
func trimAt(field string) string {
	if field == "expires_at" {
		return "expiry"
	}
	return "unlock"
}

// resolveSchedule turns the two specs into absolute times and checks the
// minimum gap and the horizon. Both bounds are inclusive.
func resolveSchedule(now time.Time, unlock, expiry TimeSpec, l scheduleLimits) (Schedule, error) {
	unlockAt, err := resolveOne("unlock_at", unlock, now, UnlockPresets)
	if err != nil {
		return Schedule{}, err
	}
	expiresAt, err := resolveOne("expires_at", expiry, unlockAt, ExpiryPresets)
	if err != nil {
		return Schedule{}, err
	}

	if expiresAt.Before(unlockAt.Add(l.gap)) {
		return Schedule{}, common.NewTimeRangeError("expires_at must be at least %s after unlock_at", l.gap)
	}
	if expiresAt.After(now.Add(l.horizon)) {
		return Schedule{}, common.NewTimeRangeError("expires_at must be within %s of now", l.horizon)
	}
	return Schedule{UnlockAt: unlockAt, ExpiresAt: expiresAt}, nil
}
