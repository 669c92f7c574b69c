package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/model"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  command
		ok    bool
	}{
		{"/new", command{Name: "new", Args: []string{}}, true},
		{"  /Model openai/gpt-4o ", command{Name: "model", Args: []string{"openai/gpt-4o"}}, true},
		{"/new my session", command{Name: "new", Args: []string{"my", "session"}}, true},
		{"hello", command{}, false},
		{"//not a command", command{}, false},
		{"/", command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTemperature(t *testing.T) {
	v, err := parseTemperature("1.2")
	require.NoError(t, err)
	assert.InDelta(t, 1.2, v, 1e-9)

	_, err = parseTemperature("2.5")
	assert.Error(t, err)
	_, err = parseTemperature("warm")
	assert.Error(t, err)
}

func TestParseContextLength(t *testing.T) {
	for _, in := range []string{"all", "ALL", "unlimited", "-1"} {
		n, err := parseContextLength(in)
		require.NoError(t, err, in)
		assert.Equal(t, model.UnlimitedContext, n)
	}

	n, err := parseContextLength("4")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = parseContextLength("0")
	assert.Error(t, err)
	_, err = parseContextLength("many")
	assert.Error(t, err)
}

func TestParseModelRef(t *testing.T) {
	p, m, err := parseModelRef("siliconflow/deepseek-ai/DeepSeek-R1")
	require.NoError(t, err)
	assert.Equal(t, "siliconflow", p)
	assert.Equal(t, "deepseek-ai/DeepSeek-R1", m)

	_, _, err = parseModelRef("gpt-4o")
	assert.Error(t, err)
	_, _, err = parseModelRef("openai/")
	assert.Error(t, err)
}

func TestHelpTextListsCommands(t *testing.T) {
	help := helpText()
	for _, h := range commandHelp {
		assert.Contains(t, help, h[0])
	}
}
