package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/services"
)

type fakeSecrets struct {
	calls     atomic.Int32
	sweepErr  error
	purgeErr  error
	cleared   int
	objFailed int
}

func (f *fakeSecrets) SweepExpired(context.Context) (services.SweepResult, error) {
	f.calls.Add(1)
	return services.SweepResult{Cleared: f.cleared, ObjectsFailed: f.objFailed}, f.sweepErr
}

func (f *fakeSecrets) PurgeMetadata(context.Context) (int64, error) {
	return 3, f.purgeErr
}

type fakeChallenges struct{ err error }

func (f fakeChallenges) DeleteExpired(context.Context) (int64, error) { return 7, f.err }

type recordingAlerter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAlerter) Alert(_ context.Context, event, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestRunOnce_Success(t *testing.T) {
	al := &recordingAlerter{}
	s := New(&fakeSecrets{cleared: 2}, fakeChallenges{}, al, logging.Nop(), time.Minute)

	rep, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.SecretsCleared)
	assert.EqualValues(t, 7, rep.ChallengesDeleted)
	assert.EqualValues(t, 3, rep.MetadataPurged)
	assert.Empty(t, al.events)
}

func TestRunOnce_JoinsErrorsAndAlerts(t *testing.T) {
	al := &recordingAlerter{}
	sweepErr := errors.New("db down")
	chErr := errors.New("challenges down")
	s := New(&fakeSecrets{sweepErr: sweepErr}, fakeChallenges{err: chErr}, al, logging.Nop(), time.Minute)

	rep, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, sweepErr)
	assert.ErrorIs(t, err, chErr)
	assert.EqualValues(t, 3, rep.MetadataPurged, "later steps still run")
	assert.Equal(t, []string{"sweep_failed"}, al.events)
}

func TestRunOnce_AlertsOnObjectFailures(t *testing.T) {
	al := &recordingAlerter{}
	s := New(&fakeSecrets{cleared: 1, objFailed: 1}, fakeChallenges{}, al, logging.Nop(), time.Minute)

	_, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"object_cleanup_failed"}, al.events)
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	fs := &fakeSecrets{}
	s := New(fs, fakeChallenges{}, nil, logging.Nop(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return fs.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
