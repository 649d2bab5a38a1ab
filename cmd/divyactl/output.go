package main

import (
	"encoding/json"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

// printer writes command output. Colors are used only on a terminal so
// piped output stays plain.
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter() printer {
	return printer{w: os.Stdout, color: term.IsTerminal(os.Stdout.Fd())}
}

func (p printer) paint(c lipgloss.Color, s string) string {
	if !p.color {
		return s
	}
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func (p printer) bold(s string) string {
	if !p.color {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Render(s)
}

func (p printer) table() *tabwriter.Writer {
	return tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate shortens a string to max runes, appending "..." if truncated.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
