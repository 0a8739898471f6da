package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"github.com/dmitrijs2005/timevault/internal/client/services"
	"github.com/dmitrijs2005/timevault/internal/client/ui"
)

// startProgress shows a spinner on stderr while proof of work runs. The
// returned stop prints final (if any) in place of the spinner. Without a
// terminal only the final line is written.
func (a *App) startProgress(message string) (func(services.SolveProgress), func(final string)) {
	f, ok := a.errOut.(*os.File)
	if !ok || !isTerminal(f) {
		return nil, func(final string) {
			if final != "" {
				fmt.Fprint(a.errOut, ui.EnsureNewline(final))
			}
		}
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriterFile(f))
	s.Suffix = " " + message
	_ = s.Color("cyan")
	s.Start()

	progress := func(p services.SolveProgress) {
		s.Lock()
		s.Suffix = fmt.Sprintf(" %s %s", message,
			ui.Muted.Sprintf("difficulty %d, attempt %d, %d hashes", p.Difficulty, p.Attempt, p.Iterations))
		s.Unlock()
	}
	stop := func(final string) {
		if final != "" {
			s.FinalMSG = ui.EnsureNewline(final)
		}
		s.Stop()
	}
	return progress, stop
}
