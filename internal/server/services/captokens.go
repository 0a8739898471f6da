package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/config"
	"github.com/dmitrijs2005/timevault/internal/server/models"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/captokens"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/timevault/internal/timex"
)

// IssuedCapabilityToken is returned once to the operator; the raw token is
// not recoverable afterwards.
type IssuedCapabilityToken struct {
	ID                 string
	Token              string
	Tier               string
	MaxCiphertextBytes int64
	MaxExpiry          time.Duration
	ExpiresAt          time.Time
}

// CapabilityTokenInfo answers a validation request.
type CapabilityTokenInfo struct {
	Valid              bool
	Tier               string
	MaxCiphertextBytes int64
	ExpiresAt          time.Time
	Consumed           bool
	Reason             string
}

type CapabilityTokenService struct {
	repomanager repomanager.RepositoryManager
	tiers       map[string]config.CapabilityTier
	validity    time.Duration
	argon       cryptox.Argon2Params
	clock       timex.Clock
	log         logging.Logger
}

func NewCapabilityTokenService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *CapabilityTokenService {
	return &CapabilityTokenService{
		repomanager: m,
		tiers:       cfg.CapabilityTiers,
		validity:    cfg.CapabilityTokenValidity,
		argon:       cfg.Argon2,
		clock:       timex.SystemClock(),
		log:         log,
	}
}

func (s *CapabilityTokenService) WithClock(c timex.Clock) *CapabilityTokenService {
	s.clock = c
	return s
}

// Tiers lists the configured tier names in order.
func (s *CapabilityTokenService) Tiers() []string {
	names := make([]string, 0, len(s.tiers))
	for n := range s.tiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Issue mints a token of the given tier.
func (s *CapabilityTokenService) Issue(ctx context.Context, tier, note string) (*IssuedCapabilityToken, error) {
	t, ok := s.tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tier %q", common.ErrInvalidRequest, tier)
	}

	raw, err := common.MakeRandHexString(cryptox.TokenSize)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	hash, err := cryptox.HashToken(raw, s.argon)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	now := normalize(s.clock.Now())
	m := &models.CapabilityToken{
		ID:                 uuid.NewString(),
		TokenPrefix:        cryptox.TokenPrefix(raw),
		TokenHash:          hash,
		Tier:               tier,
		MaxCiphertextBytes: t.MaxCiphertextBytes,
		MaxExpiry:          t.MaxExpiry,
		Note:               note,
		CreatedAt:          now,
		ExpiresAt:          now.Add(s.validity),
	}
	if err := s.repomanager.Repos().CapabilityTokens.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("error creating capability token: %w", err)
	}

	s.log.Info(ctx, "capability token issued", "token_id", m.ID, "tier", tier)

	return &IssuedCapabilityToken{
		ID:                 m.ID,
		Token:              raw,
		Tier:               tier,
		MaxCiphertextBytes: m.MaxCiphertextBytes,
		MaxExpiry:          m.MaxExpiry,
		ExpiresAt:          m.ExpiresAt,
	}, nil
}

// Validate reports whether token could be used for admission right now. It
// never consumes the token.
func (s *CapabilityTokenService) Validate(ctx context.Context, token string) (*CapabilityTokenInfo, error) {
	t, err := findCapabilityToken(ctx, s.repomanager.Repos().CapabilityTokens, token)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return &CapabilityTokenInfo{Valid: false, Reason: "token not found"}, nil
	}

	info := &CapabilityTokenInfo{
		Tier:               t.Tier,
		MaxCiphertextBytes: t.MaxCiphertextBytes,
		ExpiresAt:          t.ExpiresAt,
		Consumed:           t.Consumed(),
	}
	switch {
	case t.Consumed():
		info.Reason = "token already used"
	case !s.clock.Now().Before(t.ExpiresAt):
		info.Reason = "token expired"
	default:
		info.Valid = true
	}
	return info, nil
}

// findCapabilityToken returns the token whose hash matches, or nil.
func findCapabilityToken(ctx context.Context, repo captokens.Repository, token string) (*models.CapabilityToken, error) {
	if !cryptox.ValidTokenFormat(token) {
		return nil, nil
	}
	candidates, err := repo.FindByPrefix(ctx, cryptox.TokenPrefix(token))
	if err != nil {
		return nil, fmt.Errorf("error looking up capability token: %w", err)
	}
	for _, c := range candidates {
		if cryptox.VerifyToken(token, c.TokenHash) {
			return c, nil
		}
	}
	return nil, nil
}
