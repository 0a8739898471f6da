package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
)

// Error is a non-2xx answer from the server. It unwraps to the matching
// sentinel of package common, so callers can use errors.Is.
type Error struct {
	StatusCode    int
	Code          string
	Message       string
	Constraint    string
	Status        string
	UnlockAt      *time.Time
	ExpiresAt     *time.Time
	CorrelationID string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("API error: %d", e.StatusCode)
}

var codeErrors = map[string]error{
	"invalid_request":    common.ErrInvalidRequest,
	"invalid_time_range": common.ErrInvalidTimeRange,
	"admission_denied":   common.ErrAdmissionDenied,
	"challenge_expired":  common.ErrChallengeExpired,
	"challenge_consumed": common.ErrChallengeConsumed,
	"payload_too_large":  common.ErrPayloadTooLarge,
	"not_found":          common.ErrorNotFound,
	"unauthorized":       common.ErrorUnauthorized,
	"not_yet_unlocked":   common.ErrNotYetUnlocked,
	"already_unlocked":   common.ErrAlreadyUnlocked,
	"already_retrieved":  common.ErrAlreadyRetrieved,
	"expired":            common.ErrExpired,
	"internal":           common.ErrorInternal,
}

func (e *Error) Unwrap() error {
	if err, ok := codeErrors[e.Code]; ok {
		return err
	}
	if e.StatusCode >= 500 {
		return common.ErrorInternal
	}
	return nil
}

func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var errResp struct {
		Error      string     `json:"error"`
		Message    string     `json:"message"`
		Constraint string     `json:"constraint"`
		Status     string     `json:"status"`
		UnlockAt   *time.Time `json:"unlock_at"`
		ExpiresAt  *time.Time `json:"expires_at"`
	}

	e := &Error{
		StatusCode:    resp.StatusCode,
		CorrelationID: resp.Header.Get(common.CorrelationIDHeaderName),
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		e.Code = errResp.Error
		e.Message = errResp.Message
		e.Constraint = errResp.Constraint
		e.Status = errResp.Status
		e.UnlockAt = errResp.UnlockAt
		e.ExpiresAt = errResp.ExpiresAt
		return e
	}

	e.Message = string(body)
	return e
}
