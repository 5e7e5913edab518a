package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"rolerag/internal/service"
)

// RenderMarkdown renders md for a terminal of the given width. On renderer
// failure the raw markdown is returned.
func RenderMarkdown(md string, width int) string {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// ResponseMarkdown lays out an answer and its sources as markdown.
func ResponseMarkdown(resp service.Response) string {
	var b strings.Builder
	b.WriteString(resp.Answer)
	b.WriteString("\n\n")
	if resp.Reason != "" && resp.Kind == "fallback" {
		b.WriteString("_Extractive answer: ")
		b.WriteString(resp.Reason)
		b.WriteString("_\n\n")
	}
	if len(resp.Sources) > 0 {
		b.WriteString("**Sources**\n\n")
		for _, s := range resp.Sources {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}
