// Package sweeper runs the periodic maintenance of the server: clearing
// expired secrets, dropping stale challenges and purging old metadata.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/alerts"
	"github.com/dmitrijs2005/timevault/internal/server/services"
)

type SecretSweeper interface {
	SweepExpired(ctx context.Context) (services.SweepResult, error)
	PurgeMetadata(ctx context.Context) (int64, error)
}

type ChallengeCleaner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Report is the outcome of one pass.
type Report struct {
	SecretsCleared    int
	ObjectsFailed     int
	ChallengesDeleted int64
	MetadataPurged    int64
	Duration          time.Duration
}

type Sweeper struct {
	secrets    SecretSweeper
	challenges ChallengeCleaner
	alerter    alerts.Alerter
	log        logging.Logger
	interval   time.Duration

	// mu keeps scheduled and admin-triggered passes from overlapping.
	mu sync.Mutex
}

func New(secrets SecretSweeper, challenges ChallengeCleaner, alerter alerts.Alerter, log logging.Logger, interval time.Duration) *Sweeper {
	if alerter == nil {
		alerter = alerts.Nop()
	}
	return &Sweeper{
		secrets:    secrets,
		challenges: challenges,
		alerter:    alerter,
		log:        log.With("module", "sweeper"),
		interval:   interval,
	}
}

// RunOnce performs a full pass. Each step runs even if an earlier one
// failed; the errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	var (
		rep  Report
		errs []error
	)

	res, err := s.secrets.SweepExpired(ctx)
	rep.SecretsCleared, rep.ObjectsFailed = res.Cleared, res.ObjectsFailed
	if err != nil {
		errs = append(errs, err)
	}
	if rep.ChallengesDeleted, err = s.challenges.DeleteExpired(ctx); err != nil {
		errs = append(errs, fmt.Errorf("error deleting expired challenges: %w", err))
	}
	if rep.MetadataPurged, err = s.secrets.PurgeMetadata(ctx); err != nil {
		errs = append(errs, err)
	}
	rep.Duration = time.Since(start)

	err = errors.Join(errs...)
	switch {
	case err != nil:
		s.log.Error(ctx, "sweep failed", "error", err)
		s.alert(ctx, "sweep_failed", err.Error())
	case rep.ObjectsFailed > 0:
		s.alert(ctx, "object_cleanup_failed", fmt.Sprintf("%d objects could not be deleted", rep.ObjectsFailed))
	}

	s.log.Debug(ctx, "sweep finished",
		"secrets_cleared", rep.SecretsCleared,
		"challenges_deleted", rep.ChallengesDeleted,
		"metadata_purged", rep.MetadataPurged,
		"duration", rep.Duration)
	return rep, err
}

func (s *Sweeper) alert(ctx context.Context, event, msg string) {
	if err := s.alerter.Alert(ctx, event, msg); err != nil {
		s.log.Warn(ctx, "alert delivery failed", "event", event, "error", err)
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info(ctx, "Starting sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		_, _ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info(ctx, "Stopping sweeper...")
			return nil
		case <-ticker.C:
		}
	}
}
