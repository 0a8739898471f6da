// Package captokens persists capability tokens.
package captokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/timevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.CapabilityToken) error
	FindByPrefix(ctx context.Context, prefix string) ([]*models.CapabilityToken, error)

	// Consume marks an unconsumed, unexpired token as used by secretID. A
	// lost race reports common.ErrAdmissionDenied.
	Consume(ctx context.Context, id, secretID string, now time.Time) error
}
