package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/timevault/internal/client/ui"
	"github.com/dmitrijs2005/timevault/internal/filex"
)

func (a *App) newViewCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "view <share-link>",
		Short: "Open an unlocked secret",
		Long: `Fetches and decrypts the secret behind a share link. A secret can be
viewed only once: afterwards the server has deleted the ciphertext.

The message is printed on stdout. Attachments are written to --out and
never overwrite existing files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewed, err := a.secrets.View(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if viewed.Payload.Text != "" {
				fmt.Fprint(out, ui.EnsureNewline(viewed.Payload.Text))
			}

			var failed error
			for _, att := range viewed.Payload.Attachments {
				path, err := filex.SaveUnique(outDir, att.Name, att.Data)
				if err != nil {
					fmt.Fprintln(a.errOut, ui.Error.Sprint("✗")+" "+err.Error())
					failed = err
					continue
				}
				fmt.Fprintf(a.errOut, "%s Saved %s %s\n", ui.Success.Sprint("✓"),
					ui.Path.Sprint(path), ui.Muted.Sprint(humanBytes(int64(len(att.Data)))))
			}
			if failed != nil {
				return fmt.Errorf("some attachments could not be saved: %w", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory for attachments")
	return cmd
}
