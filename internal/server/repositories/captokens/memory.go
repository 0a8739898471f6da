package captokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

type MemoryRepository struct {
	mu   sync.Locker
	rows map[string]models.CapabilityToken
}

func NewMemoryRepository(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: make(map[string]models.CapabilityToken)}
}

func (r *MemoryRepository) WithLocker(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: r.rows}
}

// Snapshot must be called, and its restore func run, with the store lock held.
func (r *MemoryRepository) Snapshot() (restore func()) {
	saved := make(map[string]models.CapabilityToken, len(r.rows))
	for id, t := range r.rows {
		saved[id] = t
	}
	return func() {
		clear(r.rows)
		for id, t := range saved {
			r.rows[id] = t
		}
	}
}

func (r *MemoryRepository) Create(_ context.Context, t *models.CapabilityToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[t.ID]; ok {
		return fmt.Errorf("db error: duplicate capability token id %s", t.ID)
	}
	r.rows[t.ID] = *t
	return nil
}

func (r *MemoryRepository) FindByPrefix(_ context.Context, prefix string) ([]*models.CapabilityToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.CapabilityToken
	for _, t := range r.rows {
		if t.TokenPrefix == prefix {
			c := t
			result = append(result, &c)
		}
	}
	return result, nil
}

func (r *MemoryRepository) Consume(_ context.Context, id, secretID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.rows[id]
	if !ok || t.ConsumedAt != nil || !now.Before(t.ExpiresAt) {
		return fmt.Errorf("%w: capability token already consumed", common.ErrAdmissionDenied)
	}
	at := now
	t.ConsumedAt = &at
	t.ConsumedBySecretID = secretID
	r.rows[id] = t
	return nil
}
