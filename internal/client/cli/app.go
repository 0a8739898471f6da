package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dmitrijs2005/timevault/internal/client/api"
	"github.com/dmitrijs2005/timevault/internal/client/config"
	"github.com/dmitrijs2005/timevault/internal/client/history"
	"github.com/dmitrijs2005/timevault/internal/client/services"
	"github.com/dmitrijs2005/timevault/internal/client/ui"
	"github.com/dmitrijs2005/timevault/internal/logging"
)

type App struct {
	config   *config.Config
	logLevel string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	logger  logging.Logger
	client  *api.Client
	store   *history.Store
	secrets *services.SecretService

	serviceOpts []services.Option
	dialAdmin   func(addr string) (*grpc.ClientConn, error)
	now         func() time.Time
}

type Option func(*App)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) {
		a.in, a.out, a.errOut = in, out, errOut
	}
}

// WithServiceOptions passes options to the client flows, e.g. a cheaper
// PoW solver in tests.
func WithServiceOptions(opts ...services.Option) Option {
	return func(a *App) { a.serviceOpts = append(a.serviceOpts, opts...) }
}

// WithAdminDialer replaces how the admin gRPC connection is made.
func WithAdminDialer(dial func(addr string) (*grpc.ClientConn, error)) Option {
	return func(a *App) { a.dialAdmin = dial }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func NewApp(cfg *config.Config, opts ...Option) *App {
	a := &App{
		config:   cfg,
		logLevel: "warn",
		in:       os.Stdin,
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   logging.Nop(),
		dialAdmin: func(addr string) (*grpc.ClientConn, error) {
			return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		},
		now: time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run executes the command line in args (without the program name). Errors
// are reported on stderr and returned.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.close()

	root := a.newRootCommand()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(a.errOut, ui.Error.Sprint("✗")+" "+describe(err, a.now()))
	}
	return err
}

// setup builds the logger, the API client and the flows once flags have
// been parsed.
func (a *App) setup(ctx context.Context) error {
	if err := a.config.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewWithWriter(a.errOut, a.logLevel, "text")
	if err != nil {
		return err
	}
	a.logger = logger

	client, err := api.New(a.config.ServerURL,
		api.WithRetries(a.config.Retries),
		api.WithTimeout(a.config.RequestTimeout))
	if err != nil {
		return err
	}
	a.client = client

	var hist history.Repository
	if a.config.HistoryPath != "" {
		store, err := history.Open(ctx, a.config.HistoryPath)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		a.store = store
		hist = store
	}

	a.secrets = services.NewSecretService(client, hist, a.config.LinkBase(), logger, a.serviceOpts...)
	return nil
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn(context.Background(), "closing history", "error", err)
		}
		a.store = nil
	}
}
