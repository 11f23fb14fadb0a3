package display

import (
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultTermWidth is the wrap width for terminal markdown.
const DefaultTermWidth = 100

// RenderMarkdown renders markdown for terminal display.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// Markdown writes content rendered for the terminal, or verbatim when the
// printer is not attached to one.
func (p *Printer) Markdown(content string) error {
	if !p.styled {
		_, err := io.WriteString(p.w, content)
		return err
	}
	rendered, err := RenderMarkdown(content, DefaultTermWidth)
	if err != nil {
		return err
	}
	_, err = io.WriteString(p.w, rendered)
	return err
}
