package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/timevault/internal/client/api"
	"github.com/dmitrijs2005/timevault/internal/client/links"
	"github.com/dmitrijs2005/timevault/internal/common"
)

const timeFormat = "2006-01-02 15:04 MST"

// when renders t in local time with a rough distance from now.
func when(t, now time.Time) string {
	d := t.Sub(now).Round(time.Minute)
	switch {
	case d > 0:
		return fmt.Sprintf("%s (in %s)", t.Local().Format(timeFormat), shortDuration(d))
	case d < 0:
		return fmt.Sprintf("%s (%s ago)", t.Local().Format(timeFormat), shortDuration(-d))
	default:
		return t.Local().Format(timeFormat) + " (now)"
	}
}

func shortDuration(d time.Duration) string {
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, h)
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// describe turns an error into the line shown to the user.
func describe(err error, now time.Time) string {
	var apiErr *api.Error
	hasAPI := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, common.ErrNotYetUnlocked):
		if hasAPI && apiErr.UnlockAt != nil {
			return "secret is still locked; it unlocks " + when(*apiErr.UnlockAt, now)
		}
		return "secret is still locked"
	case errors.Is(err, common.ErrAlreadyRetrieved):
		return "secret was already viewed; it can be read only once"
	case errors.Is(err, common.ErrExpired):
		return "secret has expired"
	case errors.Is(err, common.ErrAlreadyUnlocked):
		return "secret has already unlocked and can no longer be edited"
	case errors.Is(err, common.ErrorNotFound):
		return "secret not found"
	case errors.Is(err, common.ErrAuthenticationFailure):
		return "could not decrypt: the key in the link is wrong or the data was altered"
	case errors.Is(err, common.ErrCorruptPayload):
		return "decrypted data is not a valid message"
	case errors.Is(err, links.ErrMalformedLink):
		return err.Error()
	}

	if hasAPI && apiErr.CorrelationID != "" {
		return fmt.Sprintf("%s (correlation id %s)", err, apiErr.CorrelationID)
	}
	return err.Error()
}
