package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/timevault/internal/dbx"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/captokens"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/secrets"
)

// MemoryRepositoryManager keeps all data in process memory. Every
// repository shares one mutex, so a transaction simply holds it for the
// duration of fn and restores snapshots on failure.
type MemoryRepositoryManager struct {
	mu         sync.Mutex
	secrets    *secrets.MemoryRepository
	challenges *challenges.MemoryRepository
	captokens  *captokens.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	m := &MemoryRepositoryManager{}
	m.secrets = secrets.NewMemoryRepository(&m.mu)
	m.challenges = challenges.NewMemoryRepository(&m.mu)
	m.captokens = captokens.NewMemoryRepository(&m.mu)
	return m
}

func (m *MemoryRepositoryManager) Repos() Repositories {
	return Repositories{
		Secrets:          m.secrets,
		Challenges:       m.challenges,
		CapabilityTokens: m.captokens,
	}
}

func (m *MemoryRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	restores := []func(){m.secrets.Snapshot(), m.challenges.Snapshot(), m.captokens.Snapshot()}
	rollback := func() {
		for _, r := range restores {
			r()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()

	nop := dbx.NopLocker{}
	return fn(ctx, Repositories{
		Secrets:          m.secrets.WithLocker(nop),
		Challenges:       m.challenges.WithLocker(nop),
		CapabilityTokens: m.captokens.WithLocker(nop),
	})
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *MemoryRepositoryManager) Close() error                        { return nil }
