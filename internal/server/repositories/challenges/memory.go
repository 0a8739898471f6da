package challenges

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
	rows map[string]models.Challenge
}

func NewMemoryRepository(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: make(map[string]models.Challenge)}
}

func (r *MemoryRepository) WithLocker(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: r.rows}
}

// Snapshot must be called, and its restore func run, with the store lock held.
func (r *MemoryRepository) Snapshot() (restore func()) {
	saved := make(map[string]models.Challenge, len(r.rows))
	for id, c := range r.rows {
		saved[id] = c
	}
	return func() {
		clear(r.rows)
		for id, c := range saved {
			r.rows[id] = c
		}
	}
}

func (r *MemoryRepository) Create(_ context.Context, c *models.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[c.ID]; ok {
		return fmt.Errorf("db error: duplicate challenge id %s", c.ID)
	}
	r.rows[c.ID] = *c
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) MarkUsed(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.rows[id]
	if !ok || c.Used || now.After(c.ExpiresAt) {
		return common.ErrChallengeConsumed
	}
	c.Used = true
	r.rows[id] = c
	return nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, c := range r.rows {
		if c.ExpiresAt.Before(now) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
