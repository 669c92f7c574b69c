package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"seekchat/model"
)

const streamCursor = "▋"

// renderOptions carries what a message needs from the view.
type renderOptions struct {
	Width   int
	Spinner string
	// Markdown is the rendered content block, empty when not ready.
	Markdown string
}

// renderMessage formats one stored message for the viewport.
func renderMessage(m model.StoredMessage, opts renderOptions) string {
	timestamp := DimStyle.Render(m.CreatedAt.Format("[15:04]"))
	blocks := m.Blocks()

	if m.Role == model.RoleUser {
		return formatUserMessage(timestamp, UserStyle.Render("You"), wrap(blocks.Text(), opts.Width-2))
	}

	var b strings.Builder
	header := fmt.Sprintf("%s %s", timestamp, AssistantStyle.Render("Assistant"))
	if m.ModelID != "" {
		header += " " + DimStyle.Render(truncate(m.ProviderID+"/"+m.ModelID, max(opts.Width-20, 10)))
	}
	b.WriteString(header + "\n")

	if r, ok := blocks.Get(model.BlockReasoning); ok && r.Text != "" {
		b.WriteString(ReasoningStyle.Render(wrap("Thinking: "+r.Text, opts.Width)))
		b.WriteString("\n")
	}

	if tc, ok := blocks.Get(model.BlockToolCalls); ok {
		for _, call := range tc.ToolCalls {
			b.WriteString(formatToolCall(call, opts.Width))
			b.WriteString("\n")
		}
	}

	content, _ := blocks.Get(model.BlockContent)
	switch m.Status {
	case model.StatusError:
		b.WriteString(ErrorStyle.Render(wrap(content.Text, opts.Width)))
	case model.StatusSuccess:
		if opts.Markdown != "" {
			b.WriteString(opts.Markdown)
		} else {
			b.WriteString(wrap(content.Text, opts.Width))
		}
	default:
		if content.Text == "" {
			b.WriteString(opts.Spinner + " " + DimStyle.Render("Waiting for response..."))
		} else {
			b.WriteString(wrap(content.Text, opts.Width) + streamCursor)
		}
	}
	b.WriteString("\n\n")
	return b.String()
}

// formatToolCall renders one tool call as a status line.
func formatToolCall(call model.ToolCallResult, width int) string {
	name := call.ToolName
	if call.ServerName != "" {
		name = call.ServerName + " · " + name
	}
	var status string
	switch call.Status {
	case model.ToolCallSuccess:
		status = lipgloss.NewStyle().Foreground(successColor).Render("✓")
	case model.ToolCallError:
		status = ErrorStyle.Render("✗")
	default:
		status = DimStyle.Render("…")
	}
	line := fmt.Sprintf("%s %s %s", ToolStyle.Render("🔧"), truncate(name, max(width-6, 10)), status)
	if call.Status == model.ToolCallError && call.Error != "" {
		line += "\n   " + ErrorStyle.Render(truncate(call.Error, max(width-4, 10)))
	}
	return line
}

// formatUserMessage draws a user message behind a green bar.
func formatUserMessage(timestamp, role, content string) string {
	bar := UserStyle.Render("┃")
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", bar, timestamp, role)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(lipgloss.NewStyle().Width(width).Render(s), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.Join(lines, "\n")
}
