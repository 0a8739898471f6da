package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/timevault/internal/common"
)

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.ping != nil {
		if err := s.ping(ctx); err != nil {
			s.logger.Warn(ctx, "storage ping failed", "error", err)
			return nil, status.Error(codes.Unavailable, "storage unavailable")
		}
	}
	return structpb.NewStruct(map[string]any{"status": "OK"})
}

func (s *GRPCServer) IssueCapabilityToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	tier := fields["tier"].GetStringValue()
	note := fields["note"].GetStringValue()

	tok, err := s.tokens.Issue(ctx, tier, note)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRequest) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.logger.Error(ctx, "issuing capability token", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "capability token issued", "operator", OperatorFromContext(ctx), "token_id", tok.ID, "tier", tok.Tier)

	return structpb.NewStruct(map[string]any{
		"id":                   tok.ID,
		"token":                tok.Token,
		"tier":                 tok.Tier,
		"max_ciphertext_bytes": tok.MaxCiphertextBytes,
		"max_expiry":           tok.MaxExpiry.String(),
		"expires_at":           tok.ExpiresAt.Format(time.RFC3339),
	})
}

func (s *GRPCServer) RunSweep(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rep, err := s.sweeps.RunOnce(ctx)

	out, serr := structpb.NewStruct(map[string]any{
		"secrets_cleared":    int64(rep.SecretsCleared),
		"objects_failed":     int64(rep.ObjectsFailed),
		"challenges_deleted": rep.ChallengesDeleted,
		"metadata_purged":    rep.MetadataPurged,
		"duration":           rep.Duration.String(),
	})
	if serr != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	if err != nil {
		s.logger.Error(ctx, "admin sweep failed", "operator", OperatorFromContext(ctx), "error", err)
		out.Fields["error"] = structpb.NewStringValue("sweep finished with errors")
	}
	return out, nil
}
