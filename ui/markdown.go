package ui

import (
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
)

// renderMarkdown renders content for a terminal width. Links are reduced
// to their URL so terminals can detect them, and inline code is drawn in
// red instead of the renderer's blue background.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	doc := p.Parse([]byte(content))
	rendered := string(gomarkdown.Render(doc, markdown.NewRenderer(width, 0)))

	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	return strings.TrimRight(rendered, "\n")
}

// renderMarkdownAsync renders off the update loop.
func renderMarkdownAsync(id int64, source string, width int) tea.Cmd {
	return func() tea.Msg {
		return markdownRenderedMsg{
			MessageID: id,
			Source:    source,
			Width:     width,
			Rendered:  renderMarkdown(source, width),
		}
	}
}
