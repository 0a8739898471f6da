package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/services"
	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

func (a *App) newCreateCommand() *cobra.Command {
	var (
		message string
		files   []string
		label   string
		sched   scheduleFlags
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypt a message into a time-locked secret",
		Long: `Encrypts a message and optional files on this machine and uploads the
ciphertext. Prints a share link for the recipient and an edit link for you.
Keep both: nobody, including the server, can recover them.

The message comes from --message, from stdin when piped, or from a prompt.

Without a capability token the server asks for a proof of work, which may
take a few seconds.

Examples:
  timevault create -m "the code is 4711" --unlock 1d --expiry 7d
  timevault create --unlock-at 2030-01-01T00:00:00Z -f will.pdf < letter.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schedule, err := sched.schedule()
			if err != nil {
				return err
			}
			text, err := a.readMessage(message, cmd.Flags().Changed("message"), len(files) > 0)
			if err != nil {
				return err
			}
			atts, err := readAttachments(files)
			if err != nil {
				return err
			}

			onProgress, stop := a.startProgress("Creating secret")
			created, err := a.secrets.Create(cmd.Context(), services.CreateInput{
				Text:            text,
				Attachments:     atts,
				Schedule:        schedule,
				CapabilityToken: a.config.CapabilityToken,
				Label:           label,
			}, onProgress)
			if err != nil {
				stop("")
				return err
			}
			stop(ui.Success.Sprint("✓") + " Secret created")

			now := a.now()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Share link: %s\n", ui.Link.Sprint(created.ShareLink))
			fmt.Fprintf(out, "Edit link:  %s\n", ui.Link.Sprint(created.EditLink))
			fmt.Fprintf(out, "Unlocks:    %s\n", when(created.UnlockAt, now))
			fmt.Fprintf(out, "Expires:    %s\n", when(created.ExpiresAt, now))
			fmt.Fprintf(out, "ID:         %s\n", created.SecretID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&message, "message", "m", "", "message text")
	f.StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	f.StringVar(&label, "label", "", "note kept in the local history only")
	f.StringVar(&sched.unlock, "unlock", "1d", "unlock preset: now, 1h, 6h, 1d, 3d, 7d, 30d, 90d, 180d, 1y")
	f.StringVar(&sched.unlockAt, "unlock-at", "", "absolute unlock time")
	f.StringVar(&sched.expiry, "expiry", "7d", "expiry preset after unlock: 1d, 7d, 30d, 90d, 1y")
	f.StringVar(&sched.expiresAt, "expires-at", "", "absolute expiry time")
	cmd.MarkFlagsMutuallyExclusive("unlock", "unlock-at")
	cmd.MarkFlagsMutuallyExclusive("expiry", "expires-at")
	return cmd
}
