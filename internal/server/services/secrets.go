// Package services contains the server-side business logic: the secret
// lifecycle, proof-of-work challenges and capability tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/timevault/internal/codec"
	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/pow"
	"github.com/dmitrijs2005/timevault/internal/server/blobstore"
	"github.com/dmitrijs2005/timevault/internal/server/config"
	"github.com/dmitrijs2005/timevault/internal/server/models"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/timevault/internal/timex"
)

// TokenKind selects which bearer token a lookup is keyed on.
type TokenKind int

const (
	DecryptToken TokenKind = iota
	EditToken
)

type CreateRequest struct {
	Encrypted       cryptox.EncryptedData
	Unlock          TimeSpec
	Expiry          TimeSpec
	EditToken       string
	DecryptToken    string
	Proof           *pow.Proof
	CapabilityToken string
}

type CreateResult struct {
	SecretID  string
	UnlockAt  time.Time
	ExpiresAt time.Time
	CreatedAt time.Time
}

type StatusResult struct {
	Exists    bool
	Status    models.Status
	UnlockAt  time.Time
	ExpiresAt time.Time
}

type RetrieveResult struct {
	SecretID    string
	Encrypted   cryptox.EncryptedData
	UnlockAt    time.Time
	ExpiresAt   time.Time
	RetrievedAt time.Time
}

type EditRequest struct {
	Unlock TimeSpec
	Expiry TimeSpec
}

type EditResult struct {
	SecretID  string
	UnlockAt  time.Time
	ExpiresAt time.Time
}

// SweepResult summarizes one SweepExpired run.
type SweepResult struct {
	Cleared       int
	ObjectsFailed int
}

// SecretService owns the pending → available → retrieved | expired
// lifecycle. Time always comes from the server clock.
type SecretService struct {
	repomanager repomanager.RepositoryManager
	blobs       blobstore.Store
	cfg         *config.Config
	clock       timex.Clock
	log         logging.Logger
}

// NewSecretService constructs a SecretService. blobs may be nil, in which
// case every ciphertext is stored inline.
func NewSecretService(m repomanager.RepositoryManager, blobs blobstore.Store, cfg *config.Config, log logging.Logger) *SecretService {
	return &SecretService{
		repomanager: m,
		blobs:       blobs,
		cfg:         cfg,
		clock:       timex.SystemClock(),
		log:         log,
	}
}

func (s *SecretService) WithClock(c timex.Clock) *SecretService {
	s.clock = c
	return s
}

func (s *SecretService) now() time.Time {
	return normalize(s.clock.Now())
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

type decodedPayload struct {
	ciphertext []byte
	iv         []byte
	tag        []byte
	hash       string
}

func decodePayload(enc cryptox.EncryptedData) (*decodedPayload, error) {
	ct, err := codec.DecodeBase64(enc.Ciphertext)
	if err != nil || len(ct) == 0 {
		return nil, invalid("ciphertext must be non-empty base64")
	}
	iv, err := codec.DecodeBase64Len(enc.IV, cryptox.IVSize)
	if err != nil {
		return nil, invalid("iv: %v", err)
	}
	tag, err := codec.DecodeBase64Len(enc.AuthTag, cryptox.TagSize)
	if err != nil {
		return nil, invalid("auth_tag: %v", err)
	}
	sum := cryptox.PayloadHash(ct, iv, tag)
	return &decodedPayload{ciphertext: ct, iv: iv, tag: tag, hash: codec.EncodeHex(sum[:])}, nil
}

// Create stores a new secret. Admission is either a solved challenge bound
// to the submitted ciphertext or a capability token, never both. The
// challenge or token is consumed in the same transaction as the insert.
func (s *SecretService) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if !cryptox.ValidTokenFormat(req.EditToken) || !cryptox.ValidTokenFormat(req.DecryptToken) {
		return nil, invalid("edit_token and decrypt_token must be 64 lowercase hex characters")
	}
	if req.EditToken == req.DecryptToken {
		return nil, invalid("edit_token and decrypt_token must differ")
	}
	if (req.Proof == nil) == (req.CapabilityToken == "") {
		return nil, invalid("exactly one of pow_proof or capability_token is required")
	}

	payload, err := decodePayload(req.Encrypted)
	if err != nil {
		return nil, err
	}

	now := s.now()
	repos := s.repomanager.Repos()

	maxSize := int64(s.cfg.MaxCiphertextBytes)
	limits := scheduleLimits{gap: s.cfg.MinExpiryGap, horizon: s.cfg.MaxHorizon}

	var capToken *models.CapabilityToken
	if req.CapabilityToken != "" {
		capToken, err = findCapabilityToken(ctx, repos.CapabilityTokens, req.CapabilityToken)
		if err != nil {
			return nil, err
		}
		switch {
		case capToken == nil:
			return nil, fmt.Errorf("%w: unknown capability token", common.ErrAdmissionDenied)
		case capToken.Consumed():
			return nil, fmt.Errorf("%w: capability token already consumed", common.ErrAdmissionDenied)
		case !now.Before(capToken.ExpiresAt):
			return nil, fmt.Errorf("%w: capability token expired", common.ErrAdmissionDenied)
		}
		maxSize = capToken.MaxCiphertextBytes
		limits.horizon = min(limits.horizon, capToken.MaxExpiry)
	}

	if int64(len(payload.ciphertext)) > maxSize {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes, limit is %d", common.ErrPayloadTooLarge, len(payload.ciphertext), maxSize)
	}

	sched, err := resolveSchedule(now, req.Unlock, req.Expiry, limits)
	if err != nil {
		return nil, err
	}

	if req.Proof != nil {
		if err := s.checkProof(ctx, *req.Proof, payload, now); err != nil {
			return nil, err
		}
	}

	secret := &models.Secret{
		ID:                 uuid.NewString(),
		Ciphertext:         payload.ciphertext,
		IV:                 payload.iv,
		AuthTag:            payload.tag,
		CiphertextSize:     len(payload.ciphertext),
		UnlockAt:           sched.UnlockAt,
		ExpiresAt:          sched.ExpiresAt,
		CreatedAt:          now,
		EditTokenPrefix:    cryptox.TokenPrefix(req.EditToken),
		DecryptTokenPrefix: cryptox.TokenPrefix(req.DecryptToken),
		Status:             models.StatusPending,
	}
	if secret.EditTokenHash, err = cryptox.HashToken(req.EditToken, s.cfg.Argon2); err != nil {
		return nil, fmt.Errorf("hash edit token: %w", err)
	}
	if secret.DecryptTokenHash, err = cryptox.HashToken(req.DecryptToken, s.cfg.Argon2); err != nil {
		return nil, fmt.Errorf("hash decrypt token: %w", err)
	}

	if s.blobs != nil && len(payload.ciphertext) > s.cfg.InlineThreshold {
		key, err := s.blobs.Put(ctx, payload.ciphertext)
		if err != nil {
			return nil, fmt.Errorf("store ciphertext: %w", err)
		}
		secret.StorageKey = key
		secret.Ciphertext = nil
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Secrets.Create(ctx, secret); err != nil {
			return fmt.Errorf("error creating secret: %w", err)
		}
		if capToken != nil {
			return r.CapabilityTokens.Consume(ctx, capToken.ID, secret.ID, now)
		}
		return r.Challenges.MarkUsed(ctx, req.Proof.ChallengeID, now)
	})
	if err != nil {
		if secret.StorageKey != "" {
			if derr := s.blobs.Delete(ctx, secret.StorageKey); derr != nil {
				s.log.Error(ctx, "orphaned object after failed create", "storage_key", secret.StorageKey, "error", derr)
			}
		}
		return nil, err
	}

	admission := "pow"
	if capToken != nil {
		admission = "capability:" + capToken.Tier
	}
	s.log.Info(ctx, "secret created", "secret_id", secret.ID, "size", secret.CiphertextSize,
		"admission", admission, "object_storage", secret.StorageKey != "")

	return &CreateResult{
		SecretID:  secret.ID,
		UnlockAt:  secret.UnlockAt,
		ExpiresAt: secret.ExpiresAt,
		CreatedAt: secret.CreatedAt,
	}, nil
}

func (s *SecretService) checkProof(ctx context.Context, proof pow.Proof, payload *decodedPayload, now time.Time) error {
	c, err := s.repomanager.Repos().Challenges.Get(ctx, proof.ChallengeID)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: unknown challenge", common.ErrAdmissionDenied)
	}
	if err != nil {
		return fmt.Errorf("error loading challenge: %w", err)
	}

	if err := pow.Verify(proof, toPowChallenge(c), payload.hash, now); err != nil {
		return err
	}
	if pow.Difficulty(s.cfg.PowBaseDifficulty, len(payload.ciphertext)) > c.Difficulty {
		return fmt.Errorf("%w: challenge was issued for a smaller payload", common.ErrAdmissionDenied)
	}
	return nil
}

// lookup finds the secret a raw token of the given kind belongs to. It
// returns nil when none matches.
func (s *SecretService) lookup(ctx context.Context, repo secrets.Repository, token string, kind TokenKind) (*models.Secret, error) {
	if !cryptox.ValidTokenFormat(token) {
		return nil, nil
	}

	var (
		candidates []*models.Secret
		err        error
	)
	prefix := cryptox.TokenPrefix(token)
	if kind == EditToken {
		candidates, err = repo.FindByEditPrefix(ctx, prefix)
	} else {
		candidates, err = repo.FindByDecryptPrefix(ctx, prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("error looking up secret: %w", err)
	}

	for _, c := range candidates {
		hash := c.DecryptTokenHash
		if kind == EditToken {
			hash = c.EditTokenHash
		}
		if cryptox.VerifyToken(token, hash) {
			return c, nil
		}
	}
	return nil, nil
}

// Status reports the lifecycle state without changing anything. An unknown
// token is not an error.
func (s *SecretService) Status(ctx context.Context, token string, kind TokenKind) (*StatusResult, error) {
	secret, err := s.lookup(ctx, s.repomanager.Repos().Secrets, token, kind)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return &StatusResult{Exists: false, Status: models.StatusNotFound}, nil
	}
	return &StatusResult{
		Exists:    true,
		Status:    secret.StatusAt(s.now()),
		UnlockAt:  secret.UnlockAt,
		ExpiresAt: secret.ExpiresAt,
	}, nil
}

// StateError reports that a secret is not in the state an operation needs.
// It unwraps to the matching lifecycle sentinel and carries the schedule so
// callers can tell the user when the secret unlocks or expired.
type StateError struct {
	Err       error
	Status    models.Status
	UnlockAt  time.Time
	ExpiresAt time.Time
}

func (e *StateError) Error() string { return e.Err.Error() }
func (e *StateError) Unwrap() error { return e.Err }

func stateError(secret *models.Secret, st models.Status) error {
	e := &StateError{Status: st, UnlockAt: secret.UnlockAt, ExpiresAt: secret.ExpiresAt}
	switch st {
	case models.StatusPending:
		e.Err = common.ErrNotYetUnlocked
	case models.StatusAvailable:
		e.Err = common.ErrAlreadyUnlocked
	case models.StatusRetrieved:
		e.Err = common.ErrAlreadyRetrieved
	default:
		e.Err = common.ErrExpired
	}
	return e
}

// Retrieve hands the ciphertext to exactly one caller once the secret is
// unlocked and clears it in the same step. Asking early is free and
// repeatable.
func (s *SecretService) Retrieve(ctx context.Context, decryptToken string) (*RetrieveResult, error) {
	repo := s.repomanager.Repos().Secrets

	secret, err := s.lookup(ctx, repo, decryptToken, DecryptToken)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, common.ErrorNotFound
	}

	now := s.now()
	st := secret.StatusAt(now)
	if st == models.StatusExpired && !secret.Cleared() {
		s.clearExpired(ctx, secret.ID, now)
	}
	if st != models.StatusAvailable {
		return nil, stateError(secret, st)
	}
	if secret.StorageKey != "" && s.blobs == nil {
		s.log.Error(ctx, "secret stored as object but object storage is not configured", "secret_id", secret.ID)
		return nil, fmt.Errorf("%w: object storage not configured", common.ErrorInternal)
	}

	claimed, err := repo.Claim(ctx, secret.ID, now)
	if errors.Is(err, secrets.ErrNoTransition) {
		return nil, s.lostRace(ctx, secret.ID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("error claiming secret: %w", err)
	}

	ciphertext := claimed.Ciphertext
	if claimed.StorageKey != "" {
		ciphertext, err = s.blobs.Get(ctx, claimed.StorageKey)
		if err != nil {
			s.log.Error(ctx, "ciphertext object unavailable after claim", "secret_id", claimed.ID, "error", err)
			return nil, fmt.Errorf("%w: ciphertext unavailable", common.ErrorInternal)
		}
		if derr := s.blobs.Delete(ctx, claimed.StorageKey); derr != nil {
			s.log.Warn(ctx, "failed to delete retrieved object", "secret_id", claimed.ID, "error", derr)
		}
	}

	s.log.Info(ctx, "secret retrieved", "secret_id", claimed.ID)

	return &RetrieveResult{
		SecretID: claimed.ID,
		Encrypted: cryptox.EncryptedData{
			Ciphertext: codec.EncodeBase64(ciphertext),
			IV:         codec.EncodeBase64(claimed.IV),
			AuthTag:    codec.EncodeBase64(claimed.AuthTag),
		},
		UnlockAt:    claimed.UnlockAt,
		ExpiresAt:   claimed.ExpiresAt,
		RetrievedAt: claimed.RetrievedAt,
	}, nil
}

// clearExpired clears one secret found past its expiry without waiting for
// the sweeper. Failures are logged; the sweeper picks the row up later.
func (s *SecretService) clearExpired(ctx context.Context, id string, now time.Time) {
	c, err := s.repomanager.Repos().Secrets.ClearExpiredByID(ctx, id, now)
	if errors.Is(err, secrets.ErrNoTransition) {
		return
	}
	if err != nil {
		s.log.Warn(ctx, "failed to clear expired secret", "secret_id", id, "error", err)
		return
	}
	if c.StorageKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, c.StorageKey); err != nil {
			s.log.Warn(ctx, "failed to delete expired object", "secret_id", id, "error", err)
		}
	}
	s.log.Info(ctx, "expired secret cleared on access", "secret_id", id)
}

// lostRace re-reads a secret whose conditional update matched nothing and
// reports why.
func (s *SecretService) lostRace(ctx context.Context, id string, now time.Time) error {
	current, err := s.repomanager.Repos().Secrets.Get(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrExpired
	}
	if err != nil {
		return fmt.Errorf("error reloading secret: %w", err)
	}
	return stateError(current, current.StatusAt(now))
}

const errUnlockNotLater = "unlock_at must be later than the current unlock time"

// Edit reschedules a pending secret. The unlock time may only move later;
// expiry is re-validated against gap and horizon.
func (s *SecretService) Edit(ctx context.Context, editToken string, req EditRequest) (*EditResult, error) {
	repo := s.repomanager.Repos().Secrets

	secret, err := s.lookup(ctx, repo, editToken, EditToken)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, common.ErrorNotFound
	}

	now := s.now()
	if st := secret.StatusAt(now); st != models.StatusPending {
		return nil, stateError(secret, st)
	}

	sched, err := resolveSchedule(now, req.Unlock, req.Expiry,
		scheduleLimits{gap: s.cfg.MinExpiryGap, horizon: s.cfg.MaxHorizon})
	if err != nil {
		return nil, err
	}
	if !sched.UnlockAt.After(secret.UnlockAt) {
		return nil, common.NewTimeRangeError(errUnlockNotLater)
	}

	err = repo.Reschedule(ctx, secret.ID, sched.UnlockAt, sched.ExpiresAt, now)
	if errors.Is(err, secrets.ErrNoTransition) {
		if rerr := s.lostRace(ctx, secret.ID, now); !errors.Is(rerr, common.ErrNotYetUnlocked) {
			return nil, rerr
		}
		// Still pending, so a concurrent edit moved the unlock to or past ours.
		return nil, common.NewTimeRangeError(errUnlockNotLater)
	}
	if err != nil {
		return nil, fmt.Errorf("error rescheduling secret: %w", err)
	}

	s.log.Info(ctx, "secret rescheduled", "secret_id", secret.ID)

	return &EditResult{SecretID: secret.ID, UnlockAt: sched.UnlockAt, ExpiresAt: sched.ExpiresAt}, nil
}

// SweepExpired clears the content of every secret whose expiry has passed,
// in batches. Running it twice is harmless, and it never clears a secret a
// concurrent Retrieve has claimed.
func (s *SecretService) SweepExpired(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	repo := s.repomanager.Repos().Secrets
	batch := s.cfg.SweepBatchSize

	for {
		cleared, err := repo.ClearExpired(ctx, s.now(), batch)
		if err != nil {
			return res, fmt.Errorf("error clearing expired secrets: %w", err)
		}
		res.Cleared += len(cleared)

		for _, c := range cleared {
			if c.StorageKey == "" || s.blobs == nil {
				continue
			}
			if err := s.blobs.Delete(ctx, c.StorageKey); err != nil {
				res.ObjectsFailed++
				s.log.Warn(ctx, "failed to delete expired object", "secret_id", c.ID, "error", err)
			}
		}

		if len(cleared) < batch || ctx.Err() != nil {
			break
		}
	}

	if res.Cleared > 0 {
		s.log.Info(ctx, "expired secrets cleared", "count", res.Cleared)
	}
	return res, nil
}

// PurgeMetadata deletes rows whose content was cleared longer than the
// retention period ago.
func (s *SecretService) PurgeMetadata(ctx context.Context) (int64, error) {
	n, err := s.repomanager.Repos().Secrets.PurgeCleared(ctx, s.now().Add(-s.cfg.MetadataRetention))
	if err != nil {
		return 0, fmt.Errorf("error purging secret metadata: %w", err)
	}
	return n, nil
}
