package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/api"
	"github.com/dmitrijs2005/timevault/internal/client/links"
	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <share-or-edit-link>",
		Short: "Check a secret without opening it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.linkStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !st.Exists {
				fmt.Fprintf(out, "Status:  %s\n", ui.Status("not_found"))
				return nil
			}
			now := a.now()
			fmt.Fprintf(out, "Status:  %s\n", ui.Status(st.Status))
			if st.UnlockAt != nil {
				fmt.Fprintf(out, "Unlocks: %s\n", when(*st.UnlockAt, now))
			}
			if st.ExpiresAt != nil {
				fmt.Fprintf(out, "Expires: %s\n", when(*st.ExpiresAt, now))
			}
			return nil
		},
	}
}

// linkStatus accepts either kind of link.
func (a *App) linkStatus(ctx context.Context, link string) (*api.StatusResponse, error) {
	st, err := a.secrets.Status(ctx, link)
	if errors.Is(err, links.ErrMalformedLink) {
		if est, eerr := a.secrets.EditStatus(ctx, link); !errors.Is(eerr, links.ErrMalformedLink) {
			return est, eerr
		}
	}
	return st, err
}
