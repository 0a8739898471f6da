package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newEditCommand() *cobra.Command {
	var sched scheduleFlags

	cmd := &cobra.Command{
		Use:   "edit <edit-link>",
		Short: "Postpone the unlock time of a pending secret",
		Long: `Sets a new unlock and expiry time through the edit link. The unlock time
can only move later, and only while the secret is still locked.

Example:
  timevault edit "https://vault.example/edit#e=..." --unlock 7d --expiry 30d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := sched.schedule()
			if err != nil {
				return err
			}
			resp, err := a.secrets.Edit(cmd.Context(), args[0], schedule)
			if err != nil {
				return err
			}

			now := a.now()
			out := cmd.OutOrStdout()
			fmt.Fprintln(a.errOut, ui.Success.Sprint("✓")+" Schedule updated")
			fmt.Fprintf(out, "Unlocks: %s\n", when(resp.UnlockAt, now))
			fmt.Fprintf(out, "Expires: %s\n", when(resp.ExpiresAt, now))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&sched.unlock, "unlock", "", "unlock preset: now, 1h, 6h, 1d, 3d, 7d, 30d, 90d, 180d, 1y")
	f.StringVar(&sched.unlockAt, "unlock-at", "", "absolute unlock time")
	f.StringVar(&sched.expiry, "expiry", "7d", "expiry preset after unlock: 1d, 7d, 30d, 90d, 1y")
	f.StringVar(&sched.expiresAt, "expires-at", "", "absolute expiry time")
	cmd.MarkFlagsMutuallyExclusive("unlock", "unlock-at")
	cmd.MarkFlagsOneRequired("unlock", "unlock-at")
	cmd.MarkFlagsMutuallyExclusive("expiry", "expires-at")
	return cmd
}
