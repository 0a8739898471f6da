package secrets

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

// MemoryRepository keeps secrets in a map guarded by mu. Every method runs
// under the lock, which gives the same at-most-once guarantees as the
// conditional updates of the Postgres implementation. Values are copied in
// and out so callers never share state with the store.
type MemoryRepository struct {
	mu   sync.Locker
	rows map[string]*models.Secret
}

func NewMemoryRepository(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: make(map[string]*models.Secret)}
}

// WithLocker returns a view over the same rows that uses mu instead.
func (r *MemoryRepository) WithLocker(mu sync.Locker) *MemoryRepository {
	return &MemoryRepository{mu: mu, rows: r.rows}
}

// Snapshot copies the current rows and returns a function restoring them.
// The caller must hold the store lock for both calls.
func (r *MemoryRepository) Snapshot() (restore func()) {
	saved := make(map[string]*models.Secret, len(r.rows))
	for id, s := range r.rows {
		saved[id] = clone(s)
	}
	return func() {
		clear(r.rows)
		for id, s := range saved {
			r.rows[id] = s
		}
	}
}

func clone(s *models.Secret) *models.Secret {
	c := *s
	c.Ciphertext = cloneBytes(s.Ciphertext)
	c.IV = cloneBytes(s.IV)
	c.AuthTag = cloneBytes(s.AuthTag)
	if s.RetrievedAt != nil {
		t := *s.RetrievedAt
		c.RetrievedAt = &t
	}
	if s.ClearedAt != nil {
		t := *s.ClearedAt
		c.ClearedAt = &t
	}
	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *MemoryRepository) Create(_ context.Context, s *models.Secret) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[s.ID]; ok {
		return fmt.Errorf("db error: duplicate secret id %s", s.ID)
	}
	r.rows[s.ID] = clone(s)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.Secret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(s), nil
}

func (r *MemoryRepository) FindByDecryptPrefix(_ context.Context, prefix string) ([]*models.Secret, error) {
	return r.findBy(func(s *models.Secret) bool { return s.DecryptTokenPrefix == prefix }), nil
}

func (r *MemoryRepository) FindByEditPrefix(_ context.Context, prefix string) ([]*models.Secret, error) {
	return r.findBy(func(s *models.Secret) bool { return s.EditTokenPrefix == prefix }), nil
}

func (r *MemoryRepository) findBy(match func(*models.Secret) bool) []*models.Secret {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.Secret
	for _, s := range r.rows {
		if match(s) {
			result = append(result, clone(s))
		}
	}
	return result
}

func claimable(s *models.Secret, now time.Time) bool {
	return s.Status == models.StatusPending && s.ClearedAt == nil &&
		!now.Before(s.UnlockAt) && now.Before(s.ExpiresAt)
}

func clearContent(s *models.Secret, status models.Status, now time.Time) {
	s.Ciphertext, s.IV, s.AuthTag, s.StorageKey = nil, nil, nil, ""
	s.Status = status
	t := now
	s.ClearedAt = &t
}

func (r *MemoryRepository) Claim(_ context.Context, id string, now time.Time) (*models.ClaimedSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok || !claimable(s, now) {
		return nil, ErrNoTransition
	}

	c := &models.ClaimedSecret{
		ID:          s.ID,
		Ciphertext:  s.Ciphertext,
		IV:          s.IV,
		AuthTag:     s.AuthTag,
		StorageKey:  s.StorageKey,
		UnlockAt:    s.UnlockAt,
		ExpiresAt:   s.ExpiresAt,
		RetrievedAt: now,
	}
	clearContent(s, models.StatusRetrieved, now)
	t := now
	s.RetrievedAt = &t
	return c, nil
}

func (r *MemoryRepository) Reschedule(_ context.Context, id string, unlockAt, expiresAt, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok || s.Status != models.StatusPending || s.ClearedAt != nil ||
		!now.Before(s.UnlockAt) || !now.Before(s.ExpiresAt) || !unlockAt.After(s.UnlockAt) {
		return ErrNoTransition
	}
	s.UnlockAt = unlockAt
	s.ExpiresAt = expiresAt
	return nil
}

func (r *MemoryRepository) ClearExpired(_ context.Context, now time.Time, limit int) ([]models.ClearedSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []*models.Secret
	for _, s := range r.rows {
		if s.Status == models.StatusPending && s.ClearedAt == nil && !now.Before(s.ExpiresAt) {
			due = append(due, s)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	result := make([]models.ClearedSecret, 0, len(due))
	for _, s := range due {
		result = append(result, models.ClearedSecret{ID: s.ID, StorageKey: s.StorageKey})
		clearContent(s, models.StatusExpired, now)
	}
	return result, nil
}

func (r *MemoryRepository) ClearExpiredByID(_ context.Context, id string, now time.Time) (*models.ClearedSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.rows[id]
	if !ok || s.Status != models.StatusPending || s.ClearedAt != nil || now.Before(s.ExpiresAt) {
		return nil, ErrNoTransition
	}
	c := &models.ClearedSecret{ID: s.ID, StorageKey: s.StorageKey}
	clearContent(s, models.StatusExpired, now)
	return c, nil
}

func (r *MemoryRepository) PurgeCleared(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.rows {
		if s.ClearedAt != nil && s.ClearedAt.Before(before) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}
