package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompletionsConfig configures one instance of the generic
// OpenAI-compatible adapter. OpenAI, Azure OpenAI, Ollama, OpenRouter and
// the Copilot proxy all speak this wire shape; they differ only in base
// URL, auth header, and a handful of extra headers, so they share this one
// adapter implementation (the §4.1 "family dispatcher" resolves which
// Config to build from (provider, model)).
type ChatCompletionsConfig struct {
	ProviderName string
	APIKey       string
	BaseURL      string // empty uses the SDK's OpenAI default
	ExtraHeaders map[string]string
}

// ChatCompletionsAdapter implements Adapter for the generic Chat
// Completions wire shape (§4.1): roles map 1-1, tool calls appear on the
// assistant message, tool responses are separate "tool" messages carrying
// the tool_call_id.
type ChatCompletionsAdapter struct {
	name   string
	client *openai.Client
}

// NewChatCompletionsAdapter builds the adapter for the given config.
func NewChatCompletionsAdapter(cfg ChatCompletionsConfig) *ChatCompletionsAdapter {
	occfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		occfg.BaseURL = cfg.BaseURL
	}
	occfg.HTTPClient = newHTTPClient()
	if len(cfg.ExtraHeaders) > 0 {
		headers := cfg.ExtraHeaders
		base := occfg.HTTPClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		occfg.HTTPClient.Transport = headerTransport{base: base, headers: headers}
	}
	return &ChatCompletionsAdapter{
		name:   cfg.ProviderName,
		client: openai.NewClientWithConfig(occfg),
	}
}

// NewOpenAIAdapter builds the adapter pointed at OpenAI's own Chat Completions API.
func NewOpenAIAdapter(apiKey string) *ChatCompletionsAdapter {
	return NewChatCompletionsAdapter(ChatCompletionsConfig{ProviderName: "openai", APIKey: apiKey})
}

// NewAzureAdapter builds the adapter pointed at an Azure OpenAI deployment.
func NewAzureAdapter(endpoint, apiVersion, apiKey string) *ChatCompletionsAdapter {
	base := strings.TrimRight(endpoint, "/") + "/openai/deployments"
	return NewChatCompletionsAdapter(ChatCompletionsConfig{
		ProviderName: "azure",
		APIKey:       apiKey,
		BaseURL:      base,
		ExtraHeaders: map[string]string{"api-key": apiKey, "api-version": apiVersion},
	})
}

// NewOllamaAdapter builds the adapter pointed at a local Ollama server.
func NewOllamaAdapter(baseURL string) *ChatCompletionsAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return NewChatCompletionsAdapter(ChatCompletionsConfig{ProviderName: "ollama", APIKey: "ollama", BaseURL: baseURL})
}

// NewOpenRouterAdapter builds the adapter pointed at OpenRouter's unified API.
func NewOpenRouterAdapter(apiKey, appName, siteURL string) *ChatCompletionsAdapter {
	headers := map[string]string{}
	if appName != "" {
		headers["X-Title"] = appName
	}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	return NewChatCompletionsAdapter(ChatCompletionsConfig{
		ProviderName: "openrouter",
		APIKey:       apiKey,
		BaseURL:      "https://openrouter.ai/api/v1",
		ExtraHeaders: headers,
	})
}

// NewCopilotProxyAdapter builds the adapter pointed at a GitHub Copilot
// chat-completions proxy, which re-exposes Copilot's models behind the
// same Chat Completions wire shape.
func NewCopilotProxyAdapter(proxyURL, token string) *ChatCompletionsAdapter {
	return NewChatCompletionsAdapter(ChatCompletionsConfig{
		ProviderName: "copilot",
		APIKey:       token,
		BaseURL:      proxyURL,
		ExtraHeaders: map[string]string{"Editor-Version": "nocodo-manager/1.0"},
	})
}

func (a *ChatCompletionsAdapter) Name() string { return a.name }

func (a *ChatCompletionsAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if a.client == nil {
		return nil, &ProviderError{Kind: KindInvalidRequest, Provider: a.name, Message: "adapter not configured"}
	}

	messages, err := toWireMessages(req.Messages)
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidRequest, Provider: a.name, Message: err.Error()}
	}

	wireReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		TopP:        float32(req.TopP),
	}
	if len(req.Tools) > 0 {
		wireReq.Tools = toWireTools(req.Tools)
	}
	if choice := toWireToolChoice(req.ToolChoice); choice != nil {
		wireReq.ToolChoice = choice
	}

	resp, err := a.client.CreateChatCompletion(ctx, wireReq)
	if err != nil {
		return nil, classifyOpenAIError(a.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Kind: KindAPIError, Provider: a.name, Message: "no choices returned"}
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		Content: choice.Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: mapFinishReason(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

func toWireMessages(msgs []Message) ([]openai.ChatCompletionMessage, error) {
	wire := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				return nil, errors.New("tool message missing tool_call_id")
			}
			wm.ToolCallID = m.ToolCallID
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		wire = append(wire, wm)
	}
	return wire, nil
}

func toWireTools(tools []ToolDefinition) []openai.Tool {
	wire := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params any
		if len(t.Parameters) > 0 {
			_ = json.Unmarshal(t.Parameters, &params)
		}
		wire = append(wire, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return wire
}

func toWireToolChoice(tc ToolChoice) any {
	switch tc.Mode {
	case ToolChoiceNone:
		return "none"
	case ToolChoiceRequired:
		return "required"
	case ToolChoiceSpecific:
		return openai.ToolChoice{Type: openai.ToolTypeFunction, Function: openai.ToolFunction{Name: tc.Name}}
	case ToolChoiceAuto:
		return "auto"
	default:
		return nil
	}
}

func mapFinishReason(r openai.FinishReason) FinishReason {
	switch r {
	case openai.FinishReasonLength:
		return FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return FinishToolCalls
	default:
		return FinishStop
	}
}

// classifyOpenAIError converts the SDK's error shape into our ProviderError
// taxonomy (§7). The SDK does not surface a parsed retry-after value, so
// rate-limited errors carry RetryAfterSeconds == nil.
func classifyOpenAIError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyStatus(provider, apiErr.HTTPStatusCode, apiErr.Message, nil)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewNetworkError(provider, reqErr)
	}
	return NewNetworkError(provider, err)
}

// headerTransport injects static headers into every outbound request,
// used to carry provider-specific auth/version headers that the SDK's
// config does not expose directly (Azure's api-key, OpenRouter's X-Title).
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (h headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range h.headers {
		clone.Header.Set(k, v)
	}
	return h.base.RoundTrip(clone)
}
