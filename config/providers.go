package config

import (
	"fmt"
	"strconv"

	"seekchat/model"
)

// UpdateProviderField changes one provider setting and persists it.
//
// Fields:
//   - "base_url", "name", "enabled": written to config.toml
//   - "apikey": written to the credential store
func (c *Config) UpdateProviderField(providerID, fieldName, value string) error {
	if fieldName == "apikey" {
		return c.SetAPIKey(providerID, value)
	}

	return c.updateUserConfig(func(u *UserConfig) error {
		p := findOrAddProvider(u, providerID)
		switch fieldName {
		case "base_url":
			p.BaseURL = value
		case "name":
			p.Name = value
		case "enabled":
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid value for enabled: %q", value)
			}
			p.Enabled = enabled
		default:
			return fmt.Errorf("unknown field for %s: %s", providerID, fieldName)
		}
		return nil
	})
}

// SetAPIKey stores a provider key in the credential store.
func (c *Config) SetAPIKey(providerID, apiKey string) error {
	if c.CredentialStore == nil {
		return fmt.Errorf("credential store not loaded")
	}
	if apiKey == "" {
		_ = c.CredentialStore.Delete(providerID)
	} else if err := c.CredentialStore.Set(providerID, apiKey); err != nil {
		return fmt.Errorf("failed to set API key: %w", err)
	}
	if err := c.CredentialStore.Save(c.DataDir()); err != nil {
		return fmt.Errorf("failed to persist credentials: %w", err)
	}
	return nil
}

// SetDefaultModel records the provider and model new sessions start with.
func (c *Config) SetDefaultModel(providerID, modelID string) error {
	err := c.updateUserConfig(func(u *UserConfig) error {
		u.DefaultProvider = providerID
		u.DefaultModel = modelID
		return nil
	})
	if err != nil {
		return err
	}
	c.DefaultProvider = providerID
	c.DefaultModel = modelID
	return nil
}

// MergeModels adds discovered models that config.toml does not list yet.
// It returns how many were added.
func (c *Config) MergeModels(providerID string, discovered []model.ModelInfo) (int, error) {
	added := 0
	err := c.updateUserConfig(func(u *UserConfig) error {
		p := findOrAddProvider(u, providerID)
		known := make(map[string]bool, len(p.Models))
		for _, m := range p.Models {
			known[m.ID] = true
		}
		for _, info := range discovered {
			if known[info.ID] {
				continue
			}
			known[info.ID] = true
			p.Models = append(p.Models, ModelConfig{ID: info.ID, Name: info.Name, Enabled: true})
			added++
		}
		return nil
	})
	return added, err
}

// updateUserConfig applies fn to config.toml and mirrors the provider list
// in c.
func (c *Config) updateUserConfig(fn func(*UserConfig) error) error {
	dataDir := c.DataDir()
	u, err := LoadUserConfig(dataDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if len(u.Providers) == 0 {
		u.Providers = DefaultProviders()
	}
	if err := fn(u); err != nil {
		return err
	}
	if err := SaveUserConfig(u, dataDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	c.Providers = u.Providers
	return nil
}

func findOrAddProvider(u *UserConfig, providerID string) *ProviderConfig {
	for i := range u.Providers {
		if u.Providers[i].ID == providerID {
			return &u.Providers[i]
		}
	}
	u.Providers = append(u.Providers, ProviderConfig{
		ID:      providerID,
		Name:    providerDisplayName(providerID),
		BaseURL: providerDefaultBaseURL(providerID),
	})
	return &u.Providers[len(u.Providers)-1]
}

func providerDisplayName(providerID string) string {
	for _, p := range DefaultProviders() {
		if p.ID == providerID {
			return p.Name
		}
	}
	return providerID
}

func providerDefaultBaseURL(providerID string) string {
	for _, p := range DefaultProviders() {
		if p.ID == providerID {
			return p.BaseURL
		}
	}
	return ""
}
