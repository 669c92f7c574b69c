package ui

import (
	"fmt"
	"strconv"
	"strings"

	"seekchat/model"
)

// command is a parsed slash command.
type command struct {
	Name string
	Args []string
}

// commandHelp lists the slash commands in display order.
var commandHelp = [][2]string{
	{"/new [name]", "start a new session"},
	{"/sessions", "list sessions"},
	{"/open <id>", "switch to a session"},
	{"/model [provider/model]", "pick the model"},
	{"/temp <0-2>", "set the session temperature"},
	{"/context <n|all>", "set how many messages are sent"},
	{"/tools", "list tools from active MCP servers"},
	{"/ping", "check the current provider"},
	{"/copy", "copy the last reply"},
	{"/quit", "exit"},
}

// parseCommand splits "/name arg..." input. ok is false for plain text.
func parseCommand(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || strings.HasPrefix(input, "//") {
		return command{}, false
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return command{}, false
	}
	return command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

// parseTemperature accepts values between 0 and 2.
func parseTemperature(arg string) (float64, error) {
	t, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("temperature must be a number: %q", arg)
	}
	if t < 0 || t > 2 {
		return 0, fmt.Errorf("temperature must be between 0 and 2")
	}
	return t, nil
}

// parseContextLength accepts a positive count or "all".
func parseContextLength(arg string) (int, error) {
	switch strings.ToLower(arg) {
	case "all", "unlimited", "-1":
		return model.UnlimitedContext, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("context length must be a positive number or \"all\"")
	}
	return n, nil
}

// parseModelRef splits "provider/model". Model ids may contain slashes
// themselves, as in "deepseek-ai/DeepSeek-R1".
func parseModelRef(ref string) (providerID, modelID string, err error) {
	providerID, modelID, ok := strings.Cut(ref, "/")
	if !ok || providerID == "" || modelID == "" {
		return "", "", fmt.Errorf("expected provider/model, got %q", ref)
	}
	return providerID, modelID, nil
}

func helpText() string {
	var b strings.Builder
	for _, h := range commandHelp {
		b.WriteString(padRight(h[0], 26))
		b.WriteString(DimStyle.Render(h[1]))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(FormatFooter("Enter", "Send", "Alt+Enter", "Newline", "Esc", "Stop", "Ctrl+Y", "Copy", "Ctrl+C", "Quit"))
	return b.String()
}
