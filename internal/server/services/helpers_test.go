package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/cryptox"
	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/pow"
	"github.com/dmitrijs2005/timevault/internal/server/blobstore"
	"github.com/dmitrijs2005/timevault/internal/server/config"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/repomanager"
)

var t0 = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	cfg        *config.Config
	clock      *fakeClock
	rm         *repomanager.MemoryRepositoryManager
	blobs      *blobstore.MemoryStore
	secrets    *SecretService
	challenges *ChallengeService
	captokens  *CapabilityTokenService
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Storage = config.StorageMemory
	cfg.PowBaseDifficulty = 4
	cfg.SweepBatchSize = 2
	cfg.Argon2 = cryptox.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}
	cfg.CapabilityTiers = map[string]config.CapabilityTier{
		"basic": {MaxCiphertextBytes: 2_000_000, MaxExpiry: 48 * time.Hour},
		"tiny":  {MaxCiphertextBytes: 8, MaxExpiry: 48 * time.Hour},
	}
	return cfg
}

func newEnv(t *testing.T, mutate ...func(*config.Config)) *env {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	e := &env{
		cfg:   cfg,
		clock: &fakeClock{t: t0},
		rm:    repomanager.NewMemoryRepositoryManager(),
		blobs: blobstore.NewMemoryStore(),
	}
	var blobs blobstore.Store
	if cfg.ObjectStorageEnabled {
		blobs = e.blobs
	}
	log := logging.Nop()
	e.secrets = NewSecretService(e.rm, blobs, cfg, log).WithClock(e.clock)
	e.challenges = NewChallengeService(e.rm, cfg, log).WithClock(e.clock)
	e.captokens = NewCapabilityTokenService(e.rm, cfg, log).WithClock(e.clock)
	return e
}

func newSecret(t *testing.T, plaintext string) *cryptox.GeneratedSecret {
	t.Helper()
	gs, err := cryptox.GenerateSecret([]byte(plaintext))
	require.NoError(t, err)
	return gs
}

// solve issues a challenge for gs and solves it.
func (e *env) solve(t *testing.T, gs *cryptox.GeneratedSecret, claimedSize int) *pow.Proof {
	t.Helper()
	c, err := e.challenges.Issue(context.Background(), gs.PayloadHash, claimedSize)
	require.NoError(t, err)

	proof, err := pow.NewSolver().Solve(context.Background(), *c, gs.PayloadHash, nil)
	require.NoError(t, err)
	return proof
}

func preset(name string) TimeSpec { return TimeSpec{Preset: name} }

func at(t time.Time) TimeSpec { return TimeSpec{At: &t} }

func (e *env) createRequest(gs *cryptox.GeneratedSecret, unlock, expiry TimeSpec) CreateRequest {
	return CreateRequest{
		Encrypted:    gs.Encrypted,
		Unlock:       unlock,
		Expiry:       expiry,
		EditToken:    gs.EditToken,
		DecryptToken: gs.DecryptToken,
	}
}

// create stores gs with PoW admission.
func (e *env) create(t *testing.T, gs *cryptox.GeneratedSecret, unlock, expiry TimeSpec) *CreateResult {
	t.Helper()
	req := e.createRequest(gs, unlock, expiry)
	req.Proof = e.solve(t, gs, decodedLen(t, gs))
	res, err := e.secrets.Create(context.Background(), req)
	require.NoError(t, err)
	return res
}

func decodedLen(t *testing.T, gs *cryptox.GeneratedSecret) int {
	t.Helper()
	p, err := decodePayload(gs.Encrypted)
	require.NoError(t, err)
	return len(p.ciphertext)
}
