// Package challenges persists issued PoW challenges.
package challenges

import (
	"context"
	"time"

	"github.com/dmitrijs2005/timevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, c *models.Challenge) error
	Get(ctx context.Context, id string) (*models.Challenge, error)

	// MarkUsed flips is_used on a challenge that is unused and unexpired at
	// now. A lost race reports common.ErrChallengeConsumed.
	MarkUsed(ctx context.Context, id string, now time.Time) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
