package provider

import (
	"strings"

	"seekchat/model"
)

// NewProvider creates the adapter for a family. Unknown families get the
// OpenAI-compatible adapter.
func NewProvider(family Family, opts ...Option) model.Provider {
	switch family {
	case FamilyAnthropic:
		return NewAnthropicAdapter(opts...)
	case FamilyGemini:
		return NewGeminiAdapter(opts...)
	case FamilyOllama:
		return NewOllamaAdapter(opts...)
	default:
		return NewOpenAICompatAdapter(opts...)
	}
}

// MapProviderIDToFamily converts a configured provider id to its family.
//
// Mappings:
//   - "anthropic" → FamilyAnthropic
//   - "gemini" → FamilyGemini
//   - "ollama" → FamilyOllama
//   - anything else, including "openai" and "deepseek" → FamilyOpenAI
func MapProviderIDToFamily(id string) Family {
	switch strings.ToLower(strings.TrimSpace(id)) {
	case "anthropic":
		return FamilyAnthropic
	case "gemini":
		return FamilyGemini
	case "ollama":
		return FamilyOllama
	default:
		return FamilyOpenAI
	}
}

// Registry holds one adapter per family and resolves provider ids to them.
type Registry struct {
	adapters map[Family]model.Provider
}

// NewRegistry builds a registry with every family sharing opts.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{adapters: make(map[Family]model.Provider)}
	for _, f := range []Family{FamilyOpenAI, FamilyAnthropic, FamilyGemini, FamilyOllama} {
		r.adapters[f] = NewProvider(f, opts...)
	}
	return r
}

// Register replaces the adapter used for a family.
func (r *Registry) Register(f Family, p model.Provider) {
	r.adapters[f] = p
}

// For returns the adapter serving providerID.
func (r *Registry) For(providerID string) model.Provider {
	if p, ok := r.adapters[MapProviderIDToFamily(providerID)]; ok {
		return p
	}
	return r.adapters[FamilyOpenAI]
}
