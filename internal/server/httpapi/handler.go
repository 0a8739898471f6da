// Package httpapi serves the public JSON API under /api/v1.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/models"
	"github.com/dmitrijs2005/timevault/internal/server/services"
)

// PingFunc reports storage health.
type PingFunc func(ctx context.Context) error

type Handler struct {
	secrets    *services.SecretService
	challenges *services.ChallengeService
	captokens  *services.CapabilityTokenService
	feedback   *services.FeedbackService
	ping       PingFunc
	log        logging.Logger
	maxBody    int64
}

// NewHandler builds the API handler. maxCiphertext is the largest
// ciphertext any admission path accepts; request bodies are capped
// accordingly.
func NewHandler(s *services.SecretService, c *services.ChallengeService, t *services.CapabilityTokenService,
	ping PingFunc, log logging.Logger, maxCiphertext int64) *Handler {
	return &Handler{
		secrets:    s,
		challenges: c,
		captokens:  t,
		ping:       ping,
		log:        log.With("module", "http_api"),
		// base64 expansion plus room for the JSON fields
		maxBody: maxCiphertext/3*4 + 4 + 64*1024,
	}
}

// WithFeedback enables POST /api/v1/feedback.
func (h *Handler) WithFeedback(f *services.FeedbackService) *Handler {
	h.feedback = f
	return h
}

// Routes returns the full handler tree including request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	p := common.APIPrefix

	mux.HandleFunc("POST "+p+"/challenges", h.HandleIssueChallenge)
	mux.HandleFunc("POST "+p+"/secrets", h.HandleCreateSecret)
	mux.HandleFunc("GET "+p+"/secrets/status", h.HandleStatus(services.DecryptToken))
	mux.HandleFunc("GET "+p+"/secrets/edit/status", h.HandleStatus(services.EditToken))
	mux.HandleFunc("GET "+p+"/secrets/retrieve", h.HandleRetrieve)
	mux.HandleFunc("PUT "+p+"/secrets/edit", h.HandleEdit)
	mux.HandleFunc("GET "+p+"/capability-tokens/validate", h.HandleValidateCapabilityToken)
	if h.feedback != nil {
		mux.HandleFunc("POST "+p+"/feedback", h.HandleFeedback)
	}
	mux.HandleFunc("GET /health", h.HandleHealth)

	return withRequestLogging(h.log, mux)
}

func writeJSON(log logging.Logger, w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Warn(context.Background(), "writing JSON response", "error", err)
	}
}

func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toResponse(err)
	if status == http.StatusInternalServerError {
		h.log.Error(r.Context(), "request error", "correlation_id", CorrelationID(r.Context()), "error", err)
	}
	writeJSON(h.log, w, status, body)
}

// decode reads a JSON body, enforcing the size cap.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return fmt.Errorf("%w: request body exceeds %d bytes", common.ErrPayloadTooLarge, mbe.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body", common.ErrInvalidRequest)
	}
	return nil
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, error) {
	v := r.Header.Get(common.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(v, "Bearer ")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: missing bearer token", common.ErrorUnauthorized)
	}
	return strings.TrimSpace(token), nil
}

func (h *Handler) HandleIssueChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	c, err := h.challenges.Issue(r.Context(), req.PayloadHash, req.CiphertextSize)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, c)
}

func (h *Handler) HandleCreateSecret(w http.ResponseWriter, r *http.Request) {
	var req createSecretRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	res, err := h.secrets.Create(r.Context(), services.CreateRequest{
		Encrypted: cryptox.EncryptedData{
			Ciphertext: req.Ciphertext,
			IV:         req.IV,
			AuthTag:    req.AuthTag,
		},
		Unlock:          services.TimeSpec{At: req.UnlockAt, Preset: req.UnlockPreset},
		Expiry:          services.TimeSpec{At: req.ExpiresAt, Preset: req.ExpiryPreset},
		EditToken:       req.EditToken,
		DecryptToken:    req.DecryptToken,
		Proof:           req.PowProof,
		CapabilityToken: req.CapabilityToken,
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	writeJSON(h.log, w, http.StatusCreated, createSecretResponse{
		SecretID:  res.SecretID,
		UnlockAt:  res.UnlockAt,
		ExpiresAt: res.ExpiresAt,
		CreatedAt: res.CreatedAt,
	})
}

func (h *Handler) HandleStatus(kind services.TokenKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			h.sendError(w, r, err)
			return
		}

		st, err := h.secrets.Status(r.Context(), token, kind)
		if err != nil {
			h.sendError(w, r, err)
			return
		}

		resp := statusResponse{Exists: st.Exists, Status: string(st.Status)}
		if st.Exists {
			resp.UnlockAt, resp.ExpiresAt = &st.UnlockAt, &st.ExpiresAt
		}
		writeJSON(h.log, w, http.StatusOK, resp)
	}
}

func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	res, err := h.secrets.Retrieve(r.Context(), token)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(h.log, w, http.StatusOK, retrieveResponse{
		Status:      string(models.StatusAvailable),
		Ciphertext:  res.Encrypted.Ciphertext,
		IV:          res.Encrypted.IV,
		AuthTag:     res.Encrypted.AuthTag,
		UnlockAt:    res.UnlockAt,
		ExpiresAt:   res.ExpiresAt,
		RetrievedAt: res.RetrievedAt,
	})
}

func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	token, err := bearerToken(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	var req editRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	res, err := h.secrets.Edit(r.Context(), token, services.EditRequest{
		Unlock: services.TimeSpec{At: req.UnlockAt, Preset: req.UnlockPreset},
		Expiry: services.TimeSpec{At: req.ExpiresAt, Preset: req.ExpiryPreset},
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	writeJSON(h.log, w, http.StatusOK, editResponse{SecretID: res.SecretID, UnlockAt: res.UnlockAt, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) HandleValidateCapabilityToken(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(common.CapabilityTokenHeaderName)
	if !cryptox.ValidTokenFormat(token) {
		writeJSON(h.log, w, http.StatusOK, validateResponse{Valid: false, Error: "invalid token format"})
		return
	}

	info, err := h.captokens.Validate(r.Context(), token)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	resp := validateResponse{Valid: info.Valid, Consumed: info.Consumed, Error: info.Reason}
	if info.Tier != "" {
		exp := info.ExpiresAt
		resp.Tier, resp.MaxCiphertextBytes, resp.ExpiresAt = info.Tier, info.MaxCiphertextBytes, &exp
	}
	writeJSON(h.log, w, http.StatusOK, resp)
}

func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := h.decode(w, r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	if err := h.feedback.Submit(r.Context(), req.Message, req.Email); err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(h.log, w, http.StatusCreated, feedbackResponse{Success: true, Message: "Thank you for your feedback!"})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			h.log.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(h.log, w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy"})
			return
		}
	}
	writeJSON(h.log, w, http.StatusOK, healthResponse{Status: "healthy"})
}
