package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
	"github.com/dmitrijs2005/timevault/internal/common"
	gs "github.com/dmitrijs2005/timevault/internal/server/grpc"
)

func (a *App) newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands over the admin gRPC API",
		Long: `Talks to the server's admin API at --admin-addr. Everything except ping
needs an admin token (--admin-token or TIMEVAULT_ADMIN_TOKEN), minted on the
server host with the admintoken tool.`,
		// The admin commands need neither the HTTP client nor the history.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if a.config.AdminAddr == "" {
				return errors.New("admin address is not configured")
			}
			return nil
		},
	}

	cmd.AddCommand(a.newAdminPingCommand(), a.newAdminIssueTokenCommand(), a.newAdminSweepCommand())
	return cmd
}

// withAdmin dials the admin API and runs fn with an authorized context.
func (a *App) withAdmin(ctx context.Context, fn func(context.Context, *gs.AdminClient) error) error {
	conn, err := a.dialAdmin(a.config.AdminAddr)
	if err != nil {
		return fmt.Errorf("connect admin api: %w", err)
	}
	defer conn.Close()

	if a.config.AdminToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AdminTokenMetadataKey, "Bearer "+a.config.AdminToken)
	}
	if err := fn(ctx, gs.NewAdminClient(conn)); err != nil {
		if s, ok := status.FromError(err); ok {
			return fmt.Errorf("admin api: %s (%s)", s.Message(), s.Code())
		}
		return err
	}
	return nil
}

func (a *App) newAdminPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the admin API and storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAdmin(cmd.Context(), func(ctx context.Context, c *gs.AdminClient) error {
				resp, err := c.Ping(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ui.Success.Sprint("✓"), field(resp, "status"))
				return nil
			})
		},
	}
}

func (a *App) newAdminIssueTokenCommand() *cobra.Command {
	var tier, note string

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a single-use capability token",
		Long: `Issues a capability token that lets one secret skip the proof of work,
within the limits of its tier. The token is shown once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAdmin(cmd.Context(), func(ctx context.Context, c *gs.AdminClient) error {
				req, err := structpb.NewStruct(map[string]any{"tier": tier, "note": note})
				if err != nil {
					return err
				}
				resp, err := c.IssueCapabilityToken(ctx, req)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Token:      %s\n", field(resp, "token"))
				fmt.Fprintf(out, "ID:         %s\n", field(resp, "id"))
				fmt.Fprintf(out, "Tier:       %s\n", field(resp, "tier"))
				fmt.Fprintf(out, "Max size:   %s\n", humanBytes(int64(resp.GetFields()["max_ciphertext_bytes"].GetNumberValue())))
				fmt.Fprintf(out, "Max expiry: %s\n", field(resp, "max_expiry"))
				fmt.Fprintf(out, "Valid till: %s\n", field(resp, "expires_at"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "basic", "capability tier")
	cmd.Flags().StringVar(&note, "note", "", "operator note stored with the token")
	return cmd
}

func (a *App) newAdminSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run a cleanup sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withAdmin(cmd.Context(), func(ctx context.Context, c *gs.AdminClient) error {
				resp, err := c.RunSweep(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, k := range []string{"secrets_cleared", "objects_failed", "challenges_deleted", "metadata_purged", "duration"} {
					fmt.Fprintf(out, "%-19s %s\n", strings.ReplaceAll(k, "_", " ")+":", field(resp, k))
				}
				if msg := field(resp, "error"); msg != "" {
					return errors.New(msg)
				}
				return nil
			})
		},
	}
}

// field renders one value of a structpb response.
func field(s *structpb.Struct, key string) string {
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return fmt.Sprintf("%.0f", k.NumberValue)
	case *structpb.Value_BoolValue:
		return fmt.Sprint(k.BoolValue)
	default:
		return v.String()
	}
}
