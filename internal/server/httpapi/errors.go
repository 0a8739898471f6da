package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/server/models"
	"github.com/dmitrijs2005/timevault/internal/server/services"
)

// Error codes of the JSON error body.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidTimeRange  = "invalid_time_range"
	CodeAdmissionDenied   = "admission_denied"
	CodeChallengeExpired  = "challenge_expired"
	CodeChallengeConsumed = "challenge_consumed"
	CodePayloadTooLarge   = "payload_too_large"
	CodeNotFound          = "not_found"
	CodeUnauthorized      = "unauthorized"
	CodeNotYetUnlocked    = "not_yet_unlocked"
	CodeAlreadyUnlocked   = "already_unlocked"
	CodeAlreadyRetrieved  = "already_retrieved"
	CodeExpired           = "expired"
	CodeInternal          = "internal"
)

// toResponse maps a service error to an HTTP status and body. Unknown
// errors become a generic internal error so no detail leaks.
func toResponse(err error) (int, errorResponse) {
	var tre *common.TimeRangeError
	if errors.As(err, &tre) {
		return http.StatusBadRequest, errorResponse{Error: CodeInvalidTimeRange, Message: err.Error(), Constraint: tre.Constraint}
	}

	var (
		status int
		body   = errorResponse{Message: err.Error()}
	)
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		status, body.Error = http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, common.ErrInvalidTimeRange):
		status, body.Error = http.StatusBadRequest, CodeInvalidTimeRange
	case errors.Is(err, common.ErrChallengeExpired):
		status, body.Error = http.StatusBadRequest, CodeChallengeExpired
	case errors.Is(err, common.ErrChallengeConsumed):
		status, body.Error = http.StatusBadRequest, CodeChallengeConsumed
	case errors.Is(err, common.ErrAdmissionDenied):
		status, body.Error = http.StatusBadRequest, CodeAdmissionDenied
	case errors.Is(err, common.ErrPayloadTooLarge):
		status, body.Error = http.StatusRequestEntityTooLarge, CodePayloadTooLarge
	case errors.Is(err, common.ErrorNotFound):
		status, body.Error, body.Message = http.StatusNotFound, CodeNotFound, "secret not found"
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status, body.Error = http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, common.ErrNotYetUnlocked):
		status, body.Error = http.StatusForbidden, CodeNotYetUnlocked
	case errors.Is(err, common.ErrAlreadyUnlocked):
		status, body.Error = http.StatusConflict, CodeAlreadyUnlocked
	case errors.Is(err, common.ErrAlreadyRetrieved):
		status, body.Error = http.StatusGone, CodeAlreadyRetrieved
	case errors.Is(err, common.ErrExpired):
		status, body.Error = http.StatusGone, CodeExpired
	default:
		return http.StatusInternalServerError, errorResponse{Error: CodeInternal, Message: "internal error"}
	}

	var se *services.StateError
	if errors.As(err, &se) {
		body.Status = string(se.Status)
		switch se.Status {
		case models.StatusPending:
			u := se.UnlockAt
			body.UnlockAt = &u
		case models.StatusExpired:
			e := se.ExpiresAt
			body.ExpiresAt = &e
		}
	}
	return status, body
}
