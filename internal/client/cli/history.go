package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newHistoryCommand() *cobra.Command {
	var refresh, showLinks bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List secrets created from this machine",
		Long: `Lists the secrets recorded in the local history database. With --refresh
the status of every secret that is not yet retrieved or expired is asked
from the server first; this never consumes a secret.

The history holds the share links, and with them the keys. Pass
--history "" to create secrets without recording them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := a.now()
			records, err := a.secrets.History(cmd.Context(), refresh, now)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No secrets recorded yet. Create one with "+ui.Code.Sprint("timevault create"))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tLABEL\tSTATUS\tUNLOCKS\tEXPIRES\tID")
			for _, r := range records {
				status := r.LastStatus
				if status == "" {
					status = "-"
				}
				label := r.Label
				if label == "" {
					label = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.Local().Format(timeFormat), label, status,
					r.UnlockAt.Local().Format(timeFormat), r.ExpiresAt.Local().Format(timeFormat), r.SecretID)
				if showLinks {
					fmt.Fprintf(w, "\tshare: %s\n\tedit:  %s\n", r.ShareLink, r.EditLink)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "check the current status with the server")
	cmd.Flags().BoolVar(&showLinks, "links", false, "print the share and edit links")
	return cmd
}
