package provider

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"google.golang.org/genai"

	"seekchat/model"
	"seekchat/ollama"
)

// ListModels asks the provider which models it serves. Model discovery goes
// through each vendor's SDK; chat traffic does not.
func ListModels(ctx context.Context, p model.ProviderConfig, opts ...Option) ([]model.ModelInfo, error) {
	o := newOptions(opts)
	switch MapProviderIDToFamily(p.ID) {
	case FamilyAnthropic:
		return listAnthropicModels(ctx, p, o)
	case FamilyGemini:
		return listGeminiModels(ctx, p, o)
	case FamilyOllama:
		client, err := ollama.NewClient(p.BaseURL, o.client)
		if err != nil {
			return nil, err
		}
		return client.ListModels(ctx)
	default:
		return listOpenAIModels(ctx, p, o)
	}
}

// Ping checks that the provider is reachable with the configured
// credentials.
func Ping(ctx context.Context, p model.ProviderConfig, opts ...Option) error {
	if MapProviderIDToFamily(p.ID) == FamilyOllama {
		client, err := ollama.NewClient(p.BaseURL, newOptions(opts).client)
		if err != nil {
			return err
		}
		return client.Ping(ctx)
	}
	if _, err := ListModels(ctx, p, opts...); err != nil {
		return fmt.Errorf("%s ping failed: %w", providerName(p), err)
	}
	return nil
}

func listOpenAIModels(ctx context.Context, p model.ProviderConfig, o options) ([]model.ModelInfo, error) {
	client := openai.NewClient(
		openaioption.WithBaseURL(p.BaseURL),
		openaioption.WithAPIKey(p.APIKey),
		openaioption.WithHTTPClient(o.client),
	)
	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", providerName(p), err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		result = append(result, model.ModelInfo{ID: m.ID, Name: m.ID, Provider: p.ID})
	}
	return result, nil
}

func listAnthropicModels(ctx context.Context, p model.ProviderConfig, o options) ([]model.ModelInfo, error) {
	client := anthropic.NewClient(
		anthropicoption.WithBaseURL(p.BaseURL),
		anthropicoption.WithAPIKey(p.APIKey),
		anthropicoption.WithHTTPClient(o.client),
	)
	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		name := m.DisplayName
		if name == "" {
			name = m.ID
		}
		result = append(result, model.ModelInfo{ID: m.ID, Name: name, Provider: p.ID})
	}
	return result, nil
}

func listGeminiModels(ctx context.Context, p model.ProviderConfig, o options) ([]model.ModelInfo, error) {
	cfg := &genai.ClientConfig{
		APIKey:     p.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.client,
	}
	if base, version, ok := splitGeminiBase(p.BaseURL); ok {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base, APIVersion: version}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	page, err := client.Models.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	result := make([]model.ModelInfo, 0, len(page.Items))
	for _, m := range page.Items {
		id := strings.TrimPrefix(m.Name, "models/")
		name := m.DisplayName
		if name == "" {
			name = id
		}
		result = append(result, model.ModelInfo{ID: id, Name: name, Provider: p.ID})
	}
	return result, nil
}

// splitGeminiBase turns "https://host/v1beta" into the SDK's separate base
// URL and API version.
func splitGeminiBase(raw string) (base, version string, ok bool) {
	if raw == "" {
		return "", "", false
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	version = path.Base(u.Path)
	if version == "." || version == "/" {
		version = ""
	}
	return u.Scheme + "://" + u.Host + "/", version, true
}
