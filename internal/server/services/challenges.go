package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/timevault/internal/codec"
	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/pow"
	"github.com/dmitrijs2005/timevault/internal/server/config"
	"github.com/dmitrijs2005/timevault/internal/server/models"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/timevault/internal/timex"
)

// ChallengeService issues proof-of-work challenges.
type ChallengeService struct {
	repomanager    repomanager.RepositoryManager
	baseDifficulty int
	ttl            time.Duration
	maxSize        int
	clock          timex.Clock
	log            logging.Logger
}

func NewChallengeService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *ChallengeService {
	return &ChallengeService{
		repomanager:    m,
		baseDifficulty: cfg.PowBaseDifficulty,
		ttl:            cfg.ChallengeTTL,
		maxSize:        cfg.MaxCiphertextBytes,
		clock:          timex.SystemClock(),
		log:            log,
	}
}

func (s *ChallengeService) WithClock(c timex.Clock) *ChallengeService {
	s.clock = c
	return s
}

// Issue creates a challenge bound to payloadHash. Difficulty grows with the
// declared ciphertext size.
func (s *ChallengeService) Issue(ctx context.Context, payloadHash string, ciphertextSize int) (*pow.Challenge, error) {
	if !codec.IsLowerHex(payloadHash, 64) {
		return nil, fmt.Errorf("%w: payload_hash must be 64 lowercase hex characters", common.ErrInvalidRequest)
	}
	if ciphertextSize <= 0 {
		return nil, fmt.Errorf("%w: ciphertext_size must be positive", common.ErrInvalidRequest)
	}
	if ciphertextSize > s.maxSize {
		return nil, fmt.Errorf("%w: ciphertext_size exceeds %d bytes", common.ErrPayloadTooLarge, s.maxSize)
	}

	now := normalize(s.clock.Now())
	c, err := pow.NewChallenge(uuid.NewString(), payloadHash, pow.Difficulty(s.baseDifficulty, ciphertextSize), now, s.ttl)
	if err != nil {
		return nil, err
	}

	err = s.repomanager.Repos().Challenges.Create(ctx, &models.Challenge{
		ID:             c.ID,
		Nonce:          c.Nonce,
		Difficulty:     c.Difficulty,
		PayloadHash:    c.PayloadHash,
		CiphertextSize: ciphertextSize,
		ExpiresAt:      c.ExpiresAt,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating challenge: %w", err)
	}

	s.log.Debug(ctx, "challenge issued", "challenge_id", c.ID, "difficulty", c.Difficulty)
	return c, nil
}

// DeleteExpired removes challenges that can no longer be redeemed.
func (s *ChallengeService) DeleteExpired(ctx context.Context) (int64, error) {
	return s.repomanager.Repos().Challenges.DeleteExpired(ctx, s.clock.Now())
}

func toPowChallenge(c *models.Challenge) *pow.Challenge {
	return &pow.Challenge{
		ID:          c.ID,
		Nonce:       c.Nonce,
		Difficulty:  c.Difficulty,
		ExpiresAt:   c.ExpiresAt,
		Algorithm:   pow.Algorithm,
		PayloadHash: c.PayloadHash,
		Used:        c.Used,
	}
}
