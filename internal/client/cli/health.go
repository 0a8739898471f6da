package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server and its storage are up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Health(cmd.Context()); err != nil {
				return fmt.Errorf("server %s is unhealthy: %w", a.config.ServerURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Server %s is healthy\n", ui.Success.Sprint("✓"), a.config.ServerURL)
			return nil
		},
	}
}
