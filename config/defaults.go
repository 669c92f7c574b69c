package config

import "seekchat/model"

// DefaultSystemConfig returns the settings.toml defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/seekchat",
	}
}

// DefaultProviders returns the providers known out of the box. Only Ollama
// is enabled since it needs no API key.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID: "deepseek", Name: "DeepSeek", BaseURL: "https://api.deepseek.com/v1",
			Models: []ModelConfig{
				{ID: "deepseek-chat", Name: "DeepSeek Chat", Enabled: true},
				{ID: "deepseek-reasoner", Name: "DeepSeek Reasoner", Enabled: true},
			},
		},
		{
			ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1",
			Models: []ModelConfig{
				{ID: "gpt-4o", Name: "GPT-4o", Enabled: true},
				{ID: "gpt-4o-mini", Name: "GPT-4o-mini", Enabled: true},
			},
		},
		{
			ID: "anthropic", Name: "Anthropic", BaseURL: "https://api.anthropic.com",
			Models: []ModelConfig{
				{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", Enabled: true},
				{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", Enabled: true},
			},
		},
		{
			ID: "gemini", Name: "Gemini", BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Models: []ModelConfig{
				{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Enabled: true},
			},
		},
		{
			ID: "ollama", Name: "Ollama", BaseURL: "http://localhost:11434", Enabled: true,
			Models: []ModelConfig{
				{ID: "llama3.1:latest", Name: "llama3.1:latest", Enabled: true},
			},
		},
	}
}

// DefaultUserConfig returns the config.toml defaults.
func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		DefaultProvider: "ollama",
		DefaultModel:    "llama3.1:latest",
		Session: SessionDefaults{
			Temperature:   model.DefaultTemperature,
			ContextLength: model.DefaultContextLength,
		},
		Tools:     ToolsConfig{MaxRounds: 1},
		Security:  SecurityConfig{CredentialStorage: string(SecurityPlainText)},
		Providers: DefaultProviders(),
	}
}

func GenerateSystemConfigTemplate() string {
	return `# SeekChat System Configuration
# Location: ~/.config/seekchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where sessions, credentials and config.toml are stored
data_directory = "~/.local/share/seekchat"
`
}

func GenerateUserConfigTemplate() string {
	return `# SeekChat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# Provider and model selected for new conversations
default_provider = "ollama"
default_model = "llama3.1:latest"

[session]
# Defaults written into new sessions
temperature = 0.7
# Messages sent as context; -1 sends the whole history
context_length = 10

[tools]
# Tool call round trips per reply
max_rounds = 1

[security]
# "plaintext" (credentials.toml) or "ssh_key" (credentials.enc)
credential_storage = "plaintext"
# ssh_key_path = "~/.ssh/seekchat_ed25519"

# API keys are set with SEEKCHAT_<ID>_API_KEY or stored in the credential store.

[[providers]]
id = "deepseek"
name = "DeepSeek"
base_url = "https://api.deepseek.com/v1"
enabled = false

  [[providers.models]]
  id = "deepseek-chat"
  name = "DeepSeek Chat"
  enabled = true

  [[providers.models]]
  id = "deepseek-reasoner"
  name = "DeepSeek Reasoner"
  enabled = true

[[providers]]
id = "openai"
name = "OpenAI"
base_url = "https://api.openai.com/v1"
enabled = false

  [[providers.models]]
  id = "gpt-4o"
  name = "GPT-4o"
  enabled = true

  [[providers.models]]
  id = "gpt-4o-mini"
  name = "GPT-4o-mini"
  enabled = true

[[providers]]
id = "anthropic"
name = "Anthropic"
base_url = "https://api.anthropic.com"
enabled = false

  [[providers.models]]
  id = "claude-3-5-sonnet-latest"
  name = "Claude 3.5 Sonnet"
  enabled = true

  [[providers.models]]
  id = "claude-3-5-haiku-latest"
  name = "Claude 3.5 Haiku"
  enabled = true

[[providers]]
id = "gemini"
name = "Gemini"
base_url = "https://generativelanguage.googleapis.com/v1beta"
enabled = false

  [[providers.models]]
  id = "gemini-2.0-flash"
  name = "Gemini 2.0 Flash"
  enabled = true

[[providers]]
id = "ollama"
name = "Ollama"
base_url = "http://localhost:11434"
enabled = true

  [[providers.models]]
  id = "llama3.1:latest"
  name = "llama3.1:latest"
  enabled = true

# MCP servers provide the tools offered to models.
# [[mcp_servers]]
# id = "filesystem"
# name = "Filesystem"
# type = "stdio"            # stdio | sse | streamable-http
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "/tmp"]
# active = true
`
}
