package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Capability token commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [token]",
		Short: "Show what a capability token allows",
		Long: `Asks the server whether a capability token is valid. Without an argument
the configured --capability-token is checked. Checking does not use up the
token.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := a.config.CapabilityToken
			if len(args) == 1 {
				token = args[0]
			}
			if token == "" {
				return errors.New("no capability token given")
			}

			info, err := a.secrets.CheckCapabilityToken(cmd.Context(), token)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !info.Valid {
				reason := info.Error
				if info.Consumed {
					reason = "already used"
				}
				if reason == "" {
					reason = "unknown token"
				}
				fmt.Fprintf(out, "%s Token is not valid %s\n", ui.Error.Sprint("✗"), ui.Muted.Sprint(reason))
				return nil
			}

			fmt.Fprintf(out, "%s Token is valid\n", ui.Success.Sprint("✓"))
			fmt.Fprintf(out, "Tier:     %s\n", info.Tier)
			fmt.Fprintf(out, "Max size: %s\n", humanBytes(info.MaxCiphertextBytes))
			if info.ExpiresAt != nil {
				fmt.Fprintf(out, "Expires:  %s\n", when(*info.ExpiresAt, a.now()))
			}
			return nil
		},
	})
	return cmd
}
