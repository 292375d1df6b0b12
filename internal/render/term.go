package render

import (
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/livetemplate/walkthrough"
	"golang.org/x/term"
)

// Terminal renders a document for a terminal, wrapping at width (0 = no wrap).
func Terminal(doc *walkthrough.Document, width int) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithEmoji(),
	}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := r.Render(Markdown(doc))
	if err != nil {
		return "", fmt.Errorf("failed to render for terminal: %w", err)
	}
	return out, nil
}

// TerminalWidth returns the width of f when it is a terminal, else 80.
func TerminalWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
