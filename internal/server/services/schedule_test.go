package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
)

func TestResolveSchedule(t *testing.T) {
	limits := scheduleLimits{gap: 15 * time.Minute, horizon: 5 * 365 * day}
	past := t0.Add(-time.Hour)

	tests := []struct {
		name       string
		unlock     TimeSpec
		expiry     TimeSpec
		wantUnlock time.Time
		wantExpiry time.Time
		wantErr    string
	}{
		{name: "presets", unlock: preset("6h"), expiry: preset("7d"),
			wantUnlock: t0.Add(6 * time.Hour), wantExpiry: t0.Add(6*time.Hour + 7*day)},
		{name: "now preset", unlock: preset("now"), expiry: preset("1d"),
			wantUnlock: t0, wantExpiry: t0.Add(day)},
		{name: "absolute in the past", unlock: at(past), expiry: at(t0.Add(time.Hour)),
			wantUnlock: past, wantExpiry: t0.Add(time.Hour)},
		{name: "expiry preset from unlock", unlock: preset("1y"), expiry: preset("1y"),
			wantUnlock: t0.Add(365 * day), wantExpiry: t0.Add(730 * day)},
		{name: "missing unlock", expiry: preset("1d"), wantErr: "one of unlock_at or unlock_preset is required"},
		{name: "missing expiry", unlock: preset("1h"), wantErr: "one of expires_at or expiry_preset is required"},
		{name: "unknown preset", unlock: preset("2h"), expiry: preset("1d"), wantErr: `unknown unlock preset "2h"`},
		{name: "unlock preset as expiry", unlock: preset("now"), expiry: preset("1h"), wantErr: `unknown expiry preset "1h"`},
		{name: "gap", unlock: at(t0), expiry: at(t0.Add(14 * time.Minute)), wantErr: "at least 15m0s"},
		{name: "expiry before unlock", unlock: at(t0), expiry: at(t0.Add(-time.Minute)), wantErr: "at least"},
		{name: "horizon", unlock: preset("1y"), expiry: at(t0.Add(5*365*day + time.Second)), wantErr: "within"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveSchedule(t0, tt.unlock, tt.expiry, limits)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, common.ErrInvalidTimeRange)
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUnlock, got.UnlockAt)
			assert.Equal(t, tt.wantExpiry, got.ExpiresAt)
		})
	}
}

func TestResolveSchedule_NormalizesToUTCMicroseconds(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	u := time.Date(2030, 6, 1, 18, 0, 0, 123456789, loc)

	got, err := resolveSchedule(t0, at(u), preset("1d"), scheduleLimits{gap: time.Minute, horizon: 365 * day})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.UnlockAt.Location())
	assert.Equal(t, 123456000, got.UnlockAt.Nanosecond())
}
