package repomanager

import (
	"context"

	"github.com/dmitrijs2005/timevault/internal/server/repositories/captokens"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/challenges"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/secrets"
)

// Repositories is a set of repositories bound to one handle: either the
// shared pool or a single transaction.
type Repositories struct {
	Secrets          secrets.Repository
	Challenges       challenges.Repository
	CapabilityTokens captokens.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error

	// Repos returns repositories outside of any transaction.
	Repos() Repositories

	// InTx runs fn atomically. If fn returns an error, none of its writes
	// are visible afterwards.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error

	Ping(ctx context.Context) error
	Close() error
}
