package llm

import (
	"fmt"
	"strings"
)

// ProviderKind identifies which of the canonical wire families a configured
// provider speaks (§4.1).
type ProviderKind string

const (
	ProviderOpenAI       ProviderKind = "openai"
	ProviderOpenAIReason ProviderKind = "openai_responses" // reasoning models (o1/o3/gpt-5 family)
	ProviderAnthropic    ProviderKind = "anthropic"
	ProviderAzure        ProviderKind = "azure"
	ProviderBedrock      ProviderKind = "bedrock"
	ProviderOllama       ProviderKind = "ollama"
	ProviderOpenRouter   ProviderKind = "openrouter"
	ProviderCopilot      ProviderKind = "copilot"
)

// ProviderConfig is the subset of connection settings every provider kind
// draws from; fields unused by a given kind are ignored.
type ProviderConfig struct {
	Kind ProviderKind

	APIKey string

	// Azure
	AzureEndpoint   string
	AzureAPIVersion string

	// Bedrock
	AWSRegion string

	// Ollama
	OllamaBaseURL string

	// OpenRouter
	AppName string
	SiteURL string

	// Copilot proxy
	ProxyURL string
}

// reasoningModelPrefixes lists the OpenAI model name prefixes that only the
// Responses API serves (§4.1): requests for these always route to the
// Responses adapter even when ProviderConfig.Kind says "openai".
var reasoningModelPrefixes = []string{"o1", "o3", "o4", "gpt-5"}

// isReasoningModel reports whether model belongs to a family only reachable
// through the Responses API.
func isReasoningModel(model string) bool {
	for _, prefix := range reasoningModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// NewAdapter is the family dispatcher: it resolves (provider, model) to a
// concrete Adapter instance, routing reasoning-family OpenAI models to the
// Responses adapter regardless of the configured kind.
func NewAdapter(cfg ProviderConfig, model string) (Adapter, error) {
	kind := cfg.Kind
	if kind == ProviderOpenAI && isReasoningModel(model) {
		kind = ProviderOpenAIReason
	}

	switch kind {
	case ProviderOpenAI:
		return NewOpenAIAdapter(cfg.APIKey), nil
	case ProviderOpenAIReason:
		return NewResponsesAdapter(cfg.APIKey), nil
	case ProviderAnthropic:
		return NewAnthropicAdapter(cfg.APIKey), nil
	case ProviderAzure:
		return NewAzureAdapter(cfg.AzureEndpoint, cfg.AzureAPIVersion, cfg.APIKey), nil
	case ProviderOllama:
		return NewOllamaAdapter(cfg.OllamaBaseURL), nil
	case ProviderOpenRouter:
		return NewOpenRouterAdapter(cfg.APIKey, cfg.AppName, cfg.SiteURL), nil
	case ProviderCopilot:
		return NewCopilotProxyAdapter(cfg.ProxyURL, cfg.APIKey), nil
	case ProviderBedrock:
		return nil, fmt.Errorf("llm: bedrock adapter requires a context, use NewBedrockAdapter directly")
	default:
		return nil, fmt.Errorf("llm: unknown provider kind %q", cfg.Kind)
	}
}
