package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"
)

// bedrockAnthropicBody is the Anthropic Messages wire shape as Bedrock's
// InvokeModel expects it for anthropic.* model IDs: identical to the
// public Anthropic Messages API payload plus a fixed anthropic_version tag.
type bedrockAnthropicBody struct {
	AnthropicVersion string             `json:"anthropic_version"`
	System           string             `json:"system,omitempty"`
	Messages         []bedrockMessage   `json:"messages"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature,omitempty"`
	TopP             float64            `json:"top_p,omitempty"`
	Tools            []bedrockToolDef   `json:"tools,omitempty"`
	ToolChoice       *bedrockToolChoice `json:"tool_choice,omitempty"`
}

type bedrockMessage struct {
	Role    string             `json:"role"`
	Content []bedrockContent   `json:"content"`
}

type bedrockContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type bedrockToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type bedrockToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type bedrockResponse struct {
	Content    []bedrockContent `json:"content"`
	StopReason string           `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockAdapter implements Adapter for Anthropic models served through AWS
// Bedrock: same Messages wire shape as AnthropicAdapter, transported over
// bedrockruntime.InvokeModel instead of a direct HTTPS call to Anthropic.
type BedrockAdapter struct {
	client    *bedrockruntime.Client
	modelID   string
	anthropicVersion string
}

// NewBedrockAdapter builds the adapter from the process's default AWS
// credential chain (env vars, shared config, instance role) for the given
// region. modelID is the Bedrock model identifier, e.g.
// "anthropic.claude-3-5-sonnet-20241022-v2:0".
func NewBedrockAdapter(ctx context.Context, region, modelID string) (*BedrockAdapter, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, NewNetworkError("bedrock", err)
	}
	return &BedrockAdapter{
		client:           bedrockruntime.NewFromConfig(cfg),
		modelID:          modelID,
		anthropicVersion: "bedrock-2023-05-31",
	}, nil
}

func (a *BedrockAdapter) Name() string { return "bedrock" }

func (a *BedrockAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	body, err := a.buildBody(req)
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidRequest, Provider: a.Name(), Message: err.Error()}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidRequest, Provider: a.Name(), Message: err.Error()}
	}

	out, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, classifyBedrockError(a.Name(), err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, &ProviderError{Kind: KindAPIError, Provider: a.Name(), Message: "malformed response body: " + err.Error()}
	}

	result := &CompletionResponse{
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: mapAnthropicStopReason(resp.StopReason),
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}
	if len(result.ToolCalls) > 0 {
		result.FinishReason = FinishToolCalls
	}
	return result, nil
}

func (a *BedrockAdapter) buildBody(req *CompletionRequest) (*bedrockAnthropicBody, error) {
	var system string
	messages := make([]bedrockMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleUser:
			messages = append(messages, bedrockMessage{Role: "user", Content: []bedrockContent{{Type: "text", Text: m.Content}}})
		case RoleAssistant:
			var blocks []bedrockContent
			if m.Content != "" {
				blocks = append(blocks, bedrockContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, bedrockContent{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
			}
			messages = append(messages, bedrockMessage{Role: "assistant", Content: blocks})
		case RoleTool:
			if m.ToolCallID == "" {
				return nil, errInvalidToolMessage
			}
			messages = append(messages, bedrockMessage{Role: "user", Content: []bedrockContent{{
				Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content,
			}}})
		}
	}

	body := &bedrockAnthropicBody{
		AnthropicVersion: a.anthropicVersion,
		System:           system,
		Messages:         messages,
		MaxTokens:        maxTokensOrDefault(req.MaxTokens),
		Temperature:      req.Temperature,
		TopP:             req.TopP,
	}
	for _, t := range req.Tools {
		schema := t.Parameters
		if len(schema) == 0 {
			schema = json.RawMessage(`{}`)
		}
		body.Tools = append(body.Tools, bedrockToolDef{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	switch req.ToolChoice.Mode {
	case ToolChoiceRequired:
		body.ToolChoice = &bedrockToolChoice{Type: "any"}
	case ToolChoiceSpecific:
		body.ToolChoice = &bedrockToolChoice{Type: "tool", Name: req.ToolChoice.Name}
	case ToolChoiceAuto:
		body.ToolChoice = &bedrockToolChoice{Type: "auto"}
	}
	return body, nil
}

var errInvalidToolMessage = &ProviderError{Kind: KindInvalidRequest, Message: "tool message missing tool_call_id"}

func classifyBedrockError(provider string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 0
		switch apiErr.ErrorCode() {
		case "ThrottlingException":
			status = 429
		case "AccessDeniedException", "UnauthorizedException":
			status = 401
		case "ValidationException":
			status = 400
		}
		if status != 0 {
			return ClassifyStatus(provider, status, apiErr.ErrorMessage(), nil)
		}
		return &ProviderError{Kind: KindAPIError, Provider: provider, Message: apiErr.ErrorMessage()}
	}
	return NewNetworkError(provider, err)
}
