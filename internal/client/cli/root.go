package cli

import (
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/config"
)

func (a *App) newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "timevault",
		Short: "Send messages that cannot be read before a chosen time",
		Long: `timevault encrypts a message on this machine and stores only the
ciphertext on the server. The share link carries the key in its fragment;
the server refuses to hand out the ciphertext before the unlock time and
hands it out exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
	}

	config.AddFlags(root.PersistentFlags(), a.config)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		a.newCreateCommand(),
		a.newViewCommand(),
		a.newStatusCommand(),
		a.newEditCommand(),
		a.newHistoryCommand(),
		a.newTokenCommand(),
		a.newHealthCommand(),
		a.newAdminCommand(),
	)
	return root
}
