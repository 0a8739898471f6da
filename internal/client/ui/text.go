// Package ui formats CLI output. Colors are dropped when NO_COLOR is set or
// the output is not a terminal.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f Formatter) Sprint(a ...any) string {
	text := fmt.Sprint(a...)
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

func (f Formatter) Sprintf(format string, a ...any) string {
	return f.Sprint(fmt.Sprintf(format, a...))
}

// EnsureNewline appends a newline to s unless it already ends with one.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

func noColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return color.NoColor
}

var (
	// Code marks commands and flags. `backticks` without color.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path marks files written to disk.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}

	// Link marks share and edit links. Never decorated, so a copied link
	// stays valid.
	Link = Formatter{color.New(color.FgCyan, color.Underline), "", ""}

	// Muted marks secondary details. (parentheses) without color.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}
)

// Status colors a secret status by how actionable it is.
func Status(s string) string {
	switch s {
	case "available":
		return Success.Sprint(s)
	case "pending":
		return Info.Sprint(s)
	case "retrieved", "expired", "not_found":
		return Muted.Sprint(s)
	default:
		return s
	}
}
