package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"seekchat/mcp"
	"seekchat/model"
)

// SystemConfig is ~/.config/seekchat/settings.toml.
type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

// ModelConfig is one [[providers.models]] entry.
type ModelConfig struct {
	ID      string `toml:"id"`
	Name    string `toml:"name,omitempty"`
	Enabled bool   `toml:"enabled"`
}

// ProviderConfig is one [[providers]] entry. API keys are never stored here.
type ProviderConfig struct {
	ID      string        `toml:"id"`
	Name    string        `toml:"name"`
	BaseURL string        `toml:"base_url"`
	Enabled bool          `toml:"enabled"`
	Models  []ModelConfig `toml:"models,omitempty"`
}

// SessionDefaults seed the metadata of newly created sessions.
type SessionDefaults struct {
	Temperature   float64 `toml:"temperature"`
	ContextLength int     `toml:"context_length"`
}

// ToolsConfig controls tool orchestration.
type ToolsConfig struct {
	MaxRounds int `toml:"max_rounds"`
}

// SecurityConfig selects where API keys are kept.
type SecurityConfig struct {
	CredentialStorage string `toml:"credential_storage"`
	SSHKeyPath        string `toml:"ssh_key_path,omitempty"`
}

// UserConfig is <data_dir>/config.toml.
type UserConfig struct {
	DefaultProvider string             `toml:"default_provider"`
	DefaultModel    string             `toml:"default_model"`
	Session         SessionDefaults    `toml:"session"`
	Tools           ToolsConfig        `toml:"tools"`
	Security        SecurityConfig     `toml:"security"`
	Providers       []ProviderConfig   `toml:"providers"`
	MCPServers      []mcp.ServerConfig `toml:"mcp_servers"`
}

// Config is the merged runtime configuration.
type Config struct {
	DataDirectory   string
	DefaultProvider string
	DefaultModel    string
	Session         SessionDefaults
	Tools           ToolsConfig
	Security        SecurityConfig
	Providers       []ProviderConfig
	MCPServers      []mcp.ServerConfig
	CredentialStore *CredentialStore
}

// Debug reports whether SEEKCHAT_DEBUG enabled the debug log.
var Debug = false

// DebugLog is the application logger. It discards everything until
// InitDebugLog opens the debug file.
var DebugLog = slog.New(slog.DiscardHandler)

// DataDir returns the expanded data directory.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// MaxToolRounds returns the configured tool round limit, at least one.
func (c *Config) MaxToolRounds() int {
	if c.Tools.MaxRounds < 1 {
		return 1
	}
	return c.Tools.MaxRounds
}

// Provider returns the provider entry with the given id.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// EnabledProviders returns the providers switched on in config.toml.
func (c *Config) EnabledProviders() []ProviderConfig {
	var out []ProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// APIKey returns the key for a provider. SEEKCHAT_<ID>_API_KEY wins over
// the credential store.
func (c *Config) APIKey(providerID string) string {
	if key := os.Getenv(apiKeyEnv(providerID)); key != "" {
		return key
	}
	if c.CredentialStore != nil {
		return c.CredentialStore.Get(providerID)
	}
	return ""
}

// ResolveProvider builds the immutable provider and model records a send
// runs against. Models missing from config.toml are accepted as-is since
// providers add models faster than the file is edited.
func (c *Config) ResolveProvider(providerID, modelID string) (model.ProviderConfig, model.ModelConfig, error) {
	if providerID == "" {
		return model.ProviderConfig{}, model.ModelConfig{}, fmt.Errorf("no provider selected")
	}
	if modelID == "" {
		return model.ProviderConfig{}, model.ModelConfig{}, fmt.Errorf("no model selected for %s", providerID)
	}
	p, ok := c.Provider(providerID)
	if !ok {
		return model.ProviderConfig{}, model.ModelConfig{}, fmt.Errorf("unknown provider: %s", providerID)
	}
	if !p.Enabled {
		return model.ProviderConfig{}, model.ModelConfig{}, fmt.Errorf("provider %s is disabled", providerID)
	}

	resolved := model.ProviderConfig{
		ID:      p.ID,
		Name:    p.Name,
		BaseURL: p.BaseURL,
		APIKey:  c.APIKey(p.ID),
	}
	selected := model.ModelConfig{ID: modelID, Name: modelID, Enabled: true}
	for _, m := range p.Models {
		mc := model.ModelConfig{ID: m.ID, Name: m.Name, Enabled: m.Enabled}
		if mc.Name == "" {
			mc.Name = m.ID
		}
		resolved.Models = append(resolved.Models, mc)
		if m.ID == modelID {
			if !m.Enabled {
				return model.ProviderConfig{}, model.ModelConfig{}, fmt.Errorf("model %s is disabled for %s", modelID, providerID)
			}
			selected = mc
		}
	}
	return resolved, selected, nil
}

// Metadata renders the defaults as session metadata JSON.
func (s SessionDefaults) Metadata() string {
	data, _ := json.Marshal(map[string]any{
		"temperature":   s.Temperature,
		"contextLength": s.ContextLength,
	})
	return string(data)
}

func apiKeyEnv(providerID string) string {
	id := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(providerID))
	return "SEEKCHAT_" + id + "_API_KEY"
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("SEEKCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if p := os.Getenv("SEEKCHAT_PROVIDER"); p != "" {
		c.DefaultProvider = p
	}
	if m := os.Getenv("SEEKCHAT_MODEL"); m != "" {
		c.DefaultModel = m
	}
}

// CheckDebug reports whether SEEKCHAT_DEBUG is set to a true value.
func CheckDebug() bool {
	debug := os.Getenv("SEEKCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog points DebugLog at <dataDir>/debug.log when debugging is on.
// The returned closer must be called on exit.
func InitDebugLog(dataDir string) io.Closer {
	if !CheckDebug() {
		return io.NopCloser(nil)
	}

	logPath := filepath.Join(dataDir, "debug.log")
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open debug log at %s: %v\n", logPath, err)
		return io.NopCloser(nil)
	}

	Debug = true
	DebugLog = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}))
	DebugLog.Info("debug logging started", "path", logPath)
	return f
}

// loadEnvFiles reads .env from the working directory and the data
// directory. Variables already set in the environment are kept.
func loadEnvFiles(dataDir string) {
	for _, path := range []string{".env", filepath.Join(dataDir, ".env")} {
		if !FileExists(path) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", path, err)
		}
	}
}

// Load reads settings.toml and config.toml, creating commented defaults on
// first run, then applies .env files and SEEKCHAT_* overrides.
func Load() (*Config, error) {
	loadEnvFiles(GetDefaultDataDir())

	systemCfg, err := LoadSystemConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}

	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	if dataDir := os.Getenv("SEEKCHAT_DATA_DIR"); dataDir != "" {
		cfg.DataDirectory = dataDir
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}
	if dataDir != GetDefaultDataDir() {
		loadEnvFiles(dataDir)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.apply(userCfg)
	cfg.applyEnvOverrides()

	store, err := openCredentialStore(cfg.Security, dataDir)
	if err != nil {
		return nil, err
	}
	cfg.CredentialStore = store
	return cfg, nil
}

// apply copies user settings over the defaults.
func (c *Config) apply(u *UserConfig) {
	def := DefaultUserConfig()
	c.DefaultProvider = u.DefaultProvider
	c.DefaultModel = u.DefaultModel
	c.Session = u.Session
	if c.Session.Temperature == 0 && c.Session.ContextLength == 0 {
		c.Session = def.Session
	}
	c.Tools = u.Tools
	if c.Tools.MaxRounds < 1 {
		c.Tools.MaxRounds = def.Tools.MaxRounds
	}
	c.Security = u.Security
	if c.Security.CredentialStorage == "" {
		c.Security.CredentialStorage = string(SecurityPlainText)
	}
	c.Providers = u.Providers
	if len(c.Providers) == 0 {
		c.Providers = def.Providers
	}
	c.MCPServers = u.MCPServers
}

func openCredentialStore(sec SecurityConfig, dataDir string) (*CredentialStore, error) {
	method := SecurityMethod(sec.CredentialStorage)
	keyPath := ExpandPath(sec.SSHKeyPath)
	if method == SecuritySSHKey && keyPath == "" {
		keyPath = GetSeekChatKeyPath()
	}
	store := NewCredentialStore(method, keyPath)
	if pass := os.Getenv("SEEKCHAT_SSH_PASSPHRASE"); pass != "" {
		store.SetPassphrase(pass)
	}
	if err := store.Load(dataDir); err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	return store, nil
}
