package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/timevault/internal/envelope"
)

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// readMessage returns the message text: the --message flag if given, else
// an interactive prompt on a terminal, else whatever is piped on stdin.
// With attachments and an interactive stdin the text may stay empty.
func (a *App) readMessage(message string, set, hasFiles bool) (string, error) {
	if set {
		return message, nil
	}
	if isTerminal(a.in) {
		if hasFiles {
			return "", nil
		}
		return promptMultiline(bufio.NewReader(a.in), a.errOut, "Enter the secret message")
	}

	b, err := io.ReadAll(a.in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSuffix(strings.TrimSuffix(string(b), "\n"), "\r"), nil
}

// promptMultiline prints prompt to w and reads lines until an empty line
// or EOF. Lines are joined with '\n'.
func promptMultiline(r *bufio.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n(press Enter on an empty line to finish)\n"); err != nil {
		return "", err
	}

	var lines []string
	for {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if line == "" || err != nil {
			if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}

// readAttachments loads files for the envelope. The MIME type is guessed
// from the extension.
func readAttachments(paths []string) ([]envelope.Attachment, error) {
	atts := make([]envelope.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read attachment: %w", err)
		}
		typ := mime.TypeByExtension(filepath.Ext(p))
		if typ == "" {
			typ = "application/octet-stream"
		}
		atts = append(atts, envelope.Attachment{Name: filepath.Base(p), Type: typ, Data: data})
	}
	return atts, nil
}
