// Package server wires the timevault server together: storage, object
// storage, services, the public HTTP API, the admin gRPC API and the
// background sweeper. It also handles graceful shutdown on signals.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/alerts"
	"github.com/dmitrijs2005/timevault/internal/server/blobstore"
	"github.com/dmitrijs2005/timevault/internal/server/config"
	"github.com/dmitrijs2005/timevault/internal/server/httpapi"
	"github.com/dmitrijs2005/timevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/timevault/internal/server/services"
	"github.com/dmitrijs2005/timevault/internal/server/sweeper"

	gs "github.com/dmitrijs2005/timevault/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	http    *httpapi.Server
	admin   *gs.GRPCServer
	sweeper *sweeper.Sweeper
}

// newRepositoryManager is swapped in tests.
var newRepositoryManager = func(c *config.Config) (repomanager.RepositoryManager, error) {
	if c.Storage == config.StorageMemory {
		return repomanager.NewMemoryRepositoryManager(), nil
	}
	return repomanager.NewPostgresRepositoryManager(c.DatabaseDSN)
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	rm, err := newRepositoryManager(c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var blobs blobstore.Store
	if c.ObjectStorageEnabled {
		s3, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			rm.Close()
			return nil, fmt.Errorf("object storage init error: %w", err)
		}
		blobs = s3
	}

	secrets := services.NewSecretService(rm, blobs, c, logger)
	challenges := services.NewChallengeService(rm, c, logger)
	captokens := services.NewCapabilityTokenService(rm, c, logger)

	alerter := alerts.Nop()
	if c.AlertWebhookURL != "" {
		alerter = alerts.NewWebhook(c.AlertWebhookURL, "timevault-server")
	}
	sw := sweeper.New(secrets, challenges, alerter, logger, c.SweepInterval)

	handler := httpapi.NewHandler(secrets, challenges, captokens, rm.Ping, logger, largestCiphertext(c)).
		WithFeedback(services.NewFeedbackService(alerter, logger))

	app := &App{
		config:  c,
		logger:  logger,
		repos:   rm,
		http:    httpapi.NewServer(c.HTTPAddr, handler.Routes(), logger, c.ShutdownTimeout),
		sweeper: sw,
	}
	if c.AdminGRPCAddr != "" {
		if c.AdminSecretKey == "" {
			logger.Warn(ctx, "admin secret key is empty, every admin call will be rejected")
		}
		app.admin = gs.NewGRPCServer(c.AdminGRPCAddr, logger, captokens, sw, rm.Ping, c.AdminSecretKey)
	}
	return app, nil
}

// largestCiphertext is the biggest ciphertext any admission path accepts.
func largestCiphertext(c *config.Config) int64 {
	n := int64(c.MaxCiphertextBytes)
	for _, t := range c.CapabilityTiers {
		n = max(n, t.MaxCiphertextBytes)
	}
	return n
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts every component and blocks until ctx is cancelled, a signal
// arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.sweeper.Run(gctx) })
	if app.admin != nil {
		g.Go(func() error { return app.admin.Run(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := app.repos.Close(); cerr != nil {
		app.logger.Error(ctx, "closing storage", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
