// Package secrets persists time-locked secrets. Every state change is a
// single conditional update, so concurrent retrievals, edits and sweeps of
// the same row cannot both succeed.
package secrets

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/timevault/internal/server/models"
)

// ErrNoTransition means a conditional update matched no row: the secret is
// missing or no longer in the state the transition requires. Callers
// re-read the row to find out which.
var ErrNoTransition = errors.New("secret not in required state")

type Repository interface {
	Create(ctx context.Context, s *models.Secret) error
	Get(ctx context.Context, id string) (*models.Secret, error)

	// Find* return every secret whose token prefix matches, cleared ones
	// included; the caller verifies the full token against each hash.
	FindByDecryptPrefix(ctx context.Context, prefix string) ([]*models.Secret, error)
	FindByEditPrefix(ctx context.Context, prefix string) ([]*models.Secret, error)

	// Claim atomically moves an available secret to retrieved, clears its
	// content and returns the content that was there.
	Claim(ctx context.Context, id string, now time.Time) (*models.ClaimedSecret, error)

	// Reschedule sets new times on a secret that is still pending at now and
	// whose current unlock time is earlier than unlockAt.
	Reschedule(ctx context.Context, id string, unlockAt, expiresAt, now time.Time) error

	// ClearExpired clears up to limit secrets with expires_at <= now.
	ClearExpired(ctx context.Context, now time.Time, limit int) ([]models.ClearedSecret, error)

	// ClearExpiredByID applies the ClearExpired transition to a single row.
	ClearExpiredByID(ctx context.Context, id string, now time.Time) (*models.ClearedSecret, error)

	// PurgeCleared deletes metadata of secrets cleared before the cutoff.
	PurgeCleared(ctx context.Context, before time.Time) (int64, error)
}
