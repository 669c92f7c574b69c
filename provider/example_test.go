package provider_test

import (
	"fmt"

	"seekchat/provider"
)

// ExampleMapProviderIDToFamily shows how provider ids select an adapter.
func ExampleMapProviderIDToFamily() {
	for _, id := range []string{"openai", "deepseek", "anthropic", "gemini", "ollama", "my-proxy"} {
		fmt.Printf("%s -> %s\n", id, provider.MapProviderIDToFamily(id))
	}
	// Output:
	// openai -> openai
	// deepseek -> openai
	// anthropic -> anthropic
	// gemini -> gemini
	// ollama -> ollama
	// my-proxy -> openai
}

// ExampleNewRegistry demonstrates resolving the adapter for a provider id.
func ExampleNewRegistry() {
	registry := provider.NewRegistry()
	fmt.Printf("%T\n", registry.For("anthropic"))
	fmt.Printf("%T\n", registry.For("groq"))
	// Output:
	// *provider.AnthropicAdapter
	// *provider.OpenAICompatAdapter
}
