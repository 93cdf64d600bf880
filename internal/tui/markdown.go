package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"bibedit-cli/internal/docs"
)

type helpKey struct {
	topic string
	width int
	dark  bool
}

// helpPages caches rendered help topics. Only the bubbletea goroutine reads
// or writes it.
var helpPages = map[helpKey]string{}

// helpPage renders a docs topic for the help overlay.
func helpPage(topic string, width int) string {
	if width < 10 {
		width = 10
	}
	k := helpKey{topic: topic, width: width, dark: lipgloss.HasDarkBackground()}
	if out, ok := helpPages[k]; ok {
		return out
	}
	md, ok := docs.Get(topic)
	if !ok {
		return fmt.Sprintf("no help topic %q", topic)
	}
	out := renderMarkdown(md, width, k.dark)
	helpPages[k] = out
	return out
}

// renderMarkdown falls back to the raw text when glamour fails. The style is
// fixed because WithAutoStyle queries the terminal.
func renderMarkdown(md string, width int, dark bool) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	style := "light"
	if dark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
