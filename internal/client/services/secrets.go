// Package services sequences the client flows: create (encrypt, prove
// work, upload), view (retrieve, decrypt, unpack), edit and status checks.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/timevault/internal/client/api"
	"github.com/dmitrijs2005/timevault/internal/client/history"
	"github.com/dmitrijs2005/timevault/internal/client/links"
	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/envelope"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/pow"
)

// API is the part of the HTTP client the flows use.
type API interface {
	IssueChallenge(ctx context.Context, payloadHash string, ciphertextSize int) (*pow.Challenge, error)
	CreateSecret(ctx context.Context, in api.CreateSecretRequest) (*api.CreateSecretResponse, error)
	Status(ctx context.Context, decryptToken string) (*api.StatusResponse, error)
	EditStatus(ctx context.Context, editToken string) (*api.StatusResponse, error)
	Retrieve(ctx context.Context, decryptToken string) (*api.RetrieveResponse, error)
	Edit(ctx context.Context, editToken string, in api.EditRequest) (*api.EditResponse, error)
	ValidateCapabilityToken(ctx context.Context, token string) (*api.CapabilityTokenInfo, error)
}

// Schedule carries one of At/Preset for each of unlock and expiry. Presets
// are resolved by the server clock.
type Schedule struct {
	UnlockAt     *time.Time
	UnlockPreset string
	ExpiresAt    *time.Time
	ExpiryPreset string
}

type CreateInput struct {
	Text            string
	Attachments     []envelope.Attachment
	Schedule        Schedule
	CapabilityToken string
	// Label is stored in the local history only.
	Label string
}

type Created struct {
	SecretID  string
	ShareLink string
	EditLink  string
	UnlockAt  time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SolveProgress is reported while a proof of work is searched.
type SolveProgress struct {
	Attempt    int
	Difficulty int
	Iterations uint64
	Done       bool
}

type Viewed struct {
	Payload     *envelope.Payload
	UnlockAt    time.Time
	ExpiresAt   time.Time
	RetrievedAt time.Time
}

type SecretService struct {
	api      API
	history  history.Repository
	linkBase string
	solver   *pow.Solver
	log      logging.Logger
	attempts int
}

type Option func(*SecretService)

// WithSolver replaces the default PoW solver.
func WithSolver(s *pow.Solver) Option {
	return func(svc *SecretService) { svc.solver = s }
}

// WithAdmissionAttempts bounds how many challenges one create may use.
func WithAdmissionAttempts(n int) Option {
	return func(svc *SecretService) { svc.attempts = max(n, 1) }
}

// NewSecretService builds the client flows. hist may be nil to disable the
// local history.
func NewSecretService(a API, hist history.Repository, linkBase string, log logging.Logger, opts ...Option) *SecretService {
	s := &SecretService{
		api:      a,
		history:  hist,
		linkBase: linkBase,
		solver:   pow.NewSolver(),
		log:      log.With("module", "client_secrets"),
		attempts: 3,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create encrypts the message, obtains admission and uploads the secret.
// The returned links are the only way to read or edit it.
func (s *SecretService) Create(ctx context.Context, in CreateInput, onProgress func(SolveProgress)) (*Created, error) {
	if err := envelope.Validate(in.Text, in.Attachments); err != nil {
		return nil, err
	}
	payload := envelope.Encode(in.Text, in.Attachments)

	gs, err := cryptox.GenerateSecret(payload)
	common.WipeByteArray(payload)
	if err != nil {
		return nil, fmt.Errorf("encryption error: %w", err)
	}
	defer gs.Wipe()

	req := api.CreateSecretRequest{
		Ciphertext:   gs.Encrypted.Ciphertext,
		IV:           gs.Encrypted.IV,
		AuthTag:      gs.Encrypted.AuthTag,
		UnlockAt:     in.Schedule.UnlockAt,
		UnlockPreset: in.Schedule.UnlockPreset,
		ExpiresAt:    in.Schedule.ExpiresAt,
		ExpiryPreset: in.Schedule.ExpiryPreset,
		EditToken:    gs.EditToken,
		DecryptToken: gs.DecryptToken,
	}

	var resp *api.CreateSecretResponse
	if in.CapabilityToken != "" {
		req.CapabilityToken = in.CapabilityToken
		resp, err = s.api.CreateSecret(ctx, req)
	} else {
		resp, err = s.createWithProof(ctx, req, gs.PayloadHash, len(payload), onProgress)
	}
	if err != nil {
		return nil, err
	}

	created := &Created{
		SecretID:  resp.SecretID,
		ShareLink: links.ShareLink(s.linkBase, gs.DecryptToken, gs.EncryptionKey),
		EditLink:  links.EditLink(s.linkBase, gs.EditToken),
		UnlockAt:  resp.UnlockAt,
		ExpiresAt: resp.ExpiresAt,
		CreatedAt: resp.CreatedAt,
	}

	if s.history != nil {
		err := s.history.Add(ctx, &history.Record{
			SecretID:  created.SecretID,
			Label:     in.Label,
			ShareLink: created.ShareLink,
			EditLink:  created.EditLink,
			UnlockAt:  created.UnlockAt,
			ExpiresAt: created.ExpiresAt,
			CreatedAt: created.CreatedAt,
		})
		if err != nil {
			s.log.Warn(ctx, "could not record secret in history", "secret_id", created.SecretID, "error", err)
		}
	}
	return created, nil
}

// createWithProof fetches a challenge, solves it and submits. A challenge
// that expired or was used meanwhile, or a search that exhausted its
// counter space, is replaced by a fresh one.
func (s *SecretService) createWithProof(ctx context.Context, req api.CreateSecretRequest, payloadHash string, size int,
	onProgress func(SolveProgress)) (*api.CreateSecretResponse, error) {

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		ch, err := s.api.IssueChallenge(ctx, payloadHash, size)
		if err != nil {
			return nil, fmt.Errorf("challenge request failed: %w", err)
		}

		proof, err := s.solve(ctx, *ch, payloadHash, attempt, onProgress)
		if errors.Is(err, common.ErrPowExhausted) {
			s.log.Warn(ctx, "proof of work exhausted, requesting a new challenge", "attempt", attempt)
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		req.PowProof = proof
		resp, err := s.api.CreateSecret(ctx, req)
		if errors.Is(err, common.ErrChallengeExpired) || errors.Is(err, common.ErrChallengeConsumed) {
			s.log.Warn(ctx, "challenge rejected, requesting a new one", "attempt", attempt)
			lastErr = err
			continue
		}
		return resp, err
	}
	return nil, lastErr
}

func (s *SecretService) solve(ctx context.Context, ch pow.Challenge, payloadHash string, attempt int,
	onProgress func(SolveProgress)) (*pow.Proof, error) {

	report := func(p SolveProgress) {
		if onProgress != nil {
			p.Attempt, p.Difficulty = attempt, ch.Difficulty
			onProgress(p)
		}
	}

	for ev := range s.solver.Start(ctx, ch, payloadHash) {
		switch ev.Kind {
		case pow.EventProgress:
			report(SolveProgress{Iterations: ev.Iterations})
		case pow.EventSolved:
			report(SolveProgress{Iterations: ev.Iterations, Done: true})
			return ev.Proof, nil
		case pow.EventFailed:
			return nil, ev.Err
		}
	}
	// stream closed without a result: ctx was cancelled
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, common.ErrPowExhausted
}

// View retrieves and opens the secret behind a share link. It consumes the
// secret: a second View fails with common.ErrAlreadyRetrieved.
func (s *SecretService) View(ctx context.Context, shareLink string) (*Viewed, error) {
	share, err := links.ParseShare(shareLink)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.Retrieve(ctx, share.DecryptToken)
	if err != nil {
		return nil, err
	}

	plain, err := cryptox.Decrypt(cryptox.EncryptedData{
		Ciphertext: resp.Ciphertext,
		IV:         resp.IV,
		AuthTag:    resp.AuthTag,
	}, share.Key)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(plain)

	p, err := envelope.Decode(plain)
	if err != nil {
		return nil, err
	}
	return &Viewed{Payload: p, UnlockAt: resp.UnlockAt, ExpiresAt: resp.ExpiresAt, RetrievedAt: resp.RetrievedAt}, nil
}

// Status checks a share link without consuming it.
func (s *SecretService) Status(ctx context.Context, shareLink string) (*api.StatusResponse, error) {
	share, err := links.ParseShare(shareLink)
	if err != nil {
		return nil, err
	}
	return s.api.Status(ctx, share.DecryptToken)
}

func (s *SecretService) EditStatus(ctx context.Context, editLink string) (*api.StatusResponse, error) {
	token, err := links.ParseEdit(editLink)
	if err != nil {
		return nil, err
	}
	return s.api.EditStatus(ctx, token)
}

// Edit moves the unlock time of a pending secret forward.
func (s *SecretService) Edit(ctx context.Context, editLink string, sch Schedule) (*api.EditResponse, error) {
	token, err := links.ParseEdit(editLink)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.Edit(ctx, token, api.EditRequest{
		UnlockAt:     sch.UnlockAt,
		UnlockPreset: sch.UnlockPreset,
		ExpiresAt:    sch.ExpiresAt,
		ExpiryPreset: sch.ExpiryPreset,
	})
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		err := s.history.UpdateSchedule(ctx, resp.SecretID, resp.UnlockAt, resp.ExpiresAt)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "could not update history", "secret_id", resp.SecretID, "error", err)
		}
	}
	return resp, nil
}

// CheckCapabilityToken asks the server about a capability token.
func (s *SecretService) CheckCapabilityToken(ctx context.Context, token string) (*api.CapabilityTokenInfo, error) {
	return s.api.ValidateCapabilityToken(ctx, token)
}

// History lists locally recorded secrets. With refresh set, every record
// still pending or available is re-checked through its edit link first.
func (s *SecretService) History(ctx context.Context, refresh bool, now time.Time) ([]*history.Record, error) {
	if s.history == nil {
		return nil, errors.New("history is disabled")
	}

	records, err := s.history.List(ctx)
	if err != nil {
		return nil, err
	}
	if !refresh {
		return records, nil
	}

	for _, r := range records {
		if r.LastStatus == "retrieved" || r.LastStatus == "expired" || r.LastStatus == "not_found" {
			continue
		}
		st, err := s.EditStatus(ctx, r.EditLink)
		if err != nil {
			s.log.Warn(ctx, "status check failed", "secret_id", r.SecretID, "error", err)
			continue
		}
		if err := s.history.UpdateStatus(ctx, r.SecretID, st.Status, now); err != nil {
			return nil, err
		}
		r.LastStatus, r.CheckedAt = st.Status, &now
	}
	return records, nil
}
