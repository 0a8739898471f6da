// Package grpc serves the operator admin API: health, capability token
// issuance and on-demand sweeps. Every method except Ping needs an admin JWT.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/timevault/internal/logging"
	"github.com/dmitrijs2005/timevault/internal/server/services"
	"github.com/dmitrijs2005/timevault/internal/server/sweeper"
)

type TokenIssuer interface {
	Issue(ctx context.Context, tier, note string) (*services.IssuedCapabilityToken, error)
}

type SweepRunner interface {
	RunOnce(ctx context.Context) (sweeper.Report, error)
}

type GRPCServer struct {
	address   string
	tokens    TokenIssuer
	sweeps    SweepRunner
	ping      func(context.Context) error
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, tokens TokenIssuer, sweeps SweepRunner, ping func(context.Context) error, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		tokens:    tokens,
		sweeps:    sweeps,
		ping:      ping,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds the grpc.Server with the admin service and the token
// interceptor registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.adminTokenInterceptor))
	RegisterAdminServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
