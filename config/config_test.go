package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seekchat/model"
)

// isolate points every config location at a temporary home.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("SEEKCHAT_DATA_DIR", "")
	t.Setenv("SEEKCHAT_PROVIDER", "")
	t.Setenv("SEEKCHAT_MODEL", "")
	t.Setenv("SEEKCHAT_DEBUG", "")
	t.Setenv("SEEKCHAT_SSH_PASSPHRASE", "")
	return home
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	dataDir := filepath.Join(home, ".local", "share", "seekchat")
	assert.Equal(t, dataDir, cfg.DataDir())
	assert.FileExists(t, filepath.Join(home, ".config", "seekchat", "settings.toml"))
	assert.FileExists(t, filepath.Join(dataDir, "config.toml"))

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	assert.Equal(t, "ollama", cfg.DefaultProvider)
	assert.Equal(t, "llama3.1:latest", cfg.DefaultModel)
	assert.Equal(t, SessionDefaults{Temperature: 0.7, ContextLength: 10}, cfg.Session)
	assert.Equal(t, 1, cfg.MaxToolRounds())
	assert.Len(t, cfg.Providers, 5)
	require.NotNil(t, cfg.CredentialStore)
	assert.Equal(t, SecurityPlainText, cfg.CredentialStore.GetMethod())
}

func TestTemplateMatchesDefaults(t *testing.T) {
	var decoded UserConfig
	_, err := toml.Decode(GenerateUserConfigTemplate(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserConfig(), &decoded)

	var system SystemConfig
	_, err = toml.Decode(GenerateSystemConfigTemplate(), &system)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemConfig(), &system)
}

func TestLoadReadsUserConfig(t *testing.T) {
	home := isolate(t)
	dataDir := filepath.Join(home, ".local", "share", "seekchat")
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(UserConfigPath(dataDir), []byte(`
default_provider = "deepseek"
default_model = "deepseek-chat"

[session]
temperature = 0.2
context_length = -1

[tools]
max_rounds = 3

[[providers]]
id = "deepseek"
name = "DeepSeek"
base_url = "https://api.deepseek.com/v1"
enabled = true

[[mcp_servers]]
id = "weather"
name = "Weather"
type = "stdio"
command = "weather-server"
args = ["--units", "metric"]
active = true
`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "deepseek", cfg.DefaultProvider)
	assert.Equal(t, SessionDefaults{Temperature: 0.2, ContextLength: -1}, cfg.Session)
	assert.Equal(t, 3, cfg.MaxToolRounds())
	require.Len(t, cfg.Providers, 1)
	assert.True(t, cfg.Providers[0].Enabled)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "weather-server", cfg.MCPServers[0].Command)
	assert.Equal(t, []string{"--units", "metric"}, cfg.MCPServers[0].Args)
	assert.True(t, cfg.MCPServers[0].Active)
}

func TestLoadEnvOverrides(t *testing.T) {
	home := isolate(t)
	custom := filepath.Join(home, "custom")
	t.Setenv("SEEKCHAT_DATA_DIR", custom)
	t.Setenv("SEEKCHAT_PROVIDER", "openai")
	t.Setenv("SEEKCHAT_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, custom, cfg.DataDir())
	assert.FileExists(t, UserConfigPath(custom))
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
}

func TestLoadDotEnvFromDataDir(t *testing.T) {
	home := isolate(t)
	dataDir := filepath.Join(home, ".local", "share", "seekchat")
	require.NoError(t, EnsureDir(dataDir))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".env"), []byte("SEEKCHAT_OPENAI_API_KEY=from-dotenv\n"), 0600))

	// Registered so the value godotenv sets is removed after the test.
	t.Setenv("SEEKCHAT_OPENAI_API_KEY", "")
	require.NoError(t, os.Unsetenv("SEEKCHAT_OPENAI_API_KEY"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.APIKey("openai"))
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dataDir := t.TempDir()
	store := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, store.Set("openai", "stored-key"))
	return &Config{
		DataDirectory: dataDir,
		Providers: []ProviderConfig{
			{ID: "openai", Name: "OpenAI", BaseURL: "https://api.openai.com/v1", Enabled: true, Models: []ModelConfig{
				{ID: "gpt-4o", Name: "GPT-4o", Enabled: true},
				{ID: "gpt-3.5-turbo", Enabled: false},
			}},
			{ID: "anthropic", Name: "Anthropic", BaseURL: "https://api.anthropic.com"},
		},
		CredentialStore: store,
	}
}

func TestResolveProvider(t *testing.T) {
	t.Setenv("SEEKCHAT_OPENAI_API_KEY", "")
	cfg := testConfig(t)

	p, m, err := cfg.ResolveProvider("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.ID)
	assert.Equal(t, "https://api.openai.com/v1", p.BaseURL)
	assert.Equal(t, "stored-key", p.APIKey)
	assert.Len(t, p.Models, 2)
	assert.Equal(t, model.ModelConfig{ID: "gpt-4o", Name: "GPT-4o", Enabled: true}, m)

	_, m, err = cfg.ResolveProvider("openai", "o3-mini")
	require.NoError(t, err)
	assert.Equal(t, model.ModelConfig{ID: "o3-mini", Name: "o3-mini", Enabled: true}, m)

	errorCases := []struct {
		name, provider, model, msg string
	}{
		{"no provider", "", "gpt-4o", "no provider selected"},
		{"no model", "openai", "", "no model selected"},
		{"unknown provider", "mistral", "m", "unknown provider"},
		{"disabled provider", "anthropic", "claude", "is disabled"},
		{"disabled model", "openai", "gpt-3.5-turbo", "model gpt-3.5-turbo is disabled"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := cfg.ResolveProvider(tt.provider, tt.model)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAPIKeyEnvironmentWins(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv("SEEKCHAT_OPENAI_API_KEY", "env-key")
	assert.Equal(t, "env-key", cfg.APIKey("openai"))

	t.Setenv("SEEKCHAT_MY_PROXY_API_KEY", "proxy-key")
	assert.Equal(t, "proxy-key", cfg.APIKey("my-proxy"))
}

func TestUpdateProviderField(t *testing.T) {
	cfg := testConfig(t)
	dataDir := cfg.DataDir()

	require.NoError(t, cfg.UpdateProviderField("anthropic", "enabled", "true"))
	require.NoError(t, cfg.UpdateProviderField("anthropic", "base_url", "https://proxy.example.com"))

	saved, err := LoadUserConfig(dataDir)
	require.NoError(t, err)
	var anthropic ProviderConfig
	for _, p := range saved.Providers {
		if p.ID == "anthropic" {
			anthropic = p
		}
	}
	assert.True(t, anthropic.Enabled)
	assert.Equal(t, "https://proxy.example.com", anthropic.BaseURL)

	p, ok := cfg.Provider("anthropic")
	require.True(t, ok)
	assert.True(t, p.Enabled)

	require.NoError(t, cfg.UpdateProviderField("groq", "enabled", "true"))
	p, ok = cfg.Provider("groq")
	require.True(t, ok)
	assert.Equal(t, "groq", p.Name)

	assert.Error(t, cfg.UpdateProviderField("anthropic", "enabled", "maybe"))
	assert.Error(t, cfg.UpdateProviderField("anthropic", "colour", "red"))
}

func TestUpdateProviderAPIKey(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.UpdateProviderField("anthropic", "apikey", "sk-ant"))

	reloaded := NewCredentialStore(SecurityPlainText, "")
	require.NoError(t, reloaded.Load(cfg.DataDir()))
	assert.Equal(t, "sk-ant", reloaded.Get("anthropic"))
	assert.Equal(t, []string{"anthropic", "openai"}, reloaded.Providers())

	require.NoError(t, cfg.SetAPIKey("anthropic", ""))
	require.NoError(t, reloaded.Load(cfg.DataDir()))
	assert.Empty(t, reloaded.Get("anthropic"))
}

func TestSetDefaultModel(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.SetDefaultModel("openai", "gpt-4o"))
	assert.Equal(t, "openai", cfg.DefaultProvider)

	saved, err := LoadUserConfig(cfg.DataDir())
	require.NoError(t, err)
	assert.Equal(t, "openai", saved.DefaultProvider)
	assert.Equal(t, "gpt-4o", saved.DefaultModel)
}

func TestMergeModels(t *testing.T) {
	cfg := testConfig(t)
	added, err := cfg.MergeModels("ollama", []model.ModelInfo{
		{ID: "llama3.1:latest", Name: "llama3.1:latest", Provider: "ollama"},
		{ID: "qwen2.5:7b", Name: "qwen2.5:7b", Provider: "ollama"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	p, ok := cfg.Provider("ollama")
	require.True(t, ok)
	ids := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"llama3.1:latest", "qwen2.5:7b"}, ids)
}

func TestSessionDefaultsMetadata(t *testing.T) {
	meta := SessionDefaults{Temperature: 0.3, ContextLength: 4}.Metadata()
	got := model.ParseSessionSettings(meta)
	assert.Equal(t, 0.3, got.Temperature)
	assert.Equal(t, 4, got.ContextLength)
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)
	t.Setenv("SEEKCHAT_TEST_DIR", "/srv/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "notes"), ExpandPath("~/notes"))
	assert.Equal(t, "/srv/data/seekchat", ExpandPath("$SEEKCHAT_TEST_DIR/seekchat/"))
}

func TestXDGDirectories(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG directories are not used on Windows")
	}
	isolate(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(xdg, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(xdg, "data"))

	assert.Equal(t, filepath.Join(xdg, "config", "seekchat", "settings.toml"), GetSettingsFilePath())
	assert.Equal(t, filepath.Join(xdg, "data", "seekchat"), GetDefaultDataDir())
}
