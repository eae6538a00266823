package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	mint     = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#89F0CB"}
	fainted  = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}
	errorish = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}

	keyword = lipgloss.NewStyle().
		Foreground(mint).
		Render

	subtle = lipgloss.NewStyle().
		Foreground(fainted).
		Render

	errLabel = lipgloss.NewStyle().
			Foreground(errorish).
			Render
)

// paragraph wraps and indents help-style prose to a comfortable reading
// width.
func paragraph(s string) string {
	return indent.String(wordwrap.String(s, 76), 2)
}

// setupColor disables styling when stdout is not a terminal so piped
// output stays plain.
func setupColor() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
