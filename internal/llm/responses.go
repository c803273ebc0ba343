package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// ResponsesAdapter implements Adapter for the OpenAI Responses API wire
// shape (§4.1): the whole conversation is flattened into one ordered
// `input` item list instead of a `messages` array, tool calls are separate
// item types (function_call / function_call_output) rather than fields on
// an assistant message, and instructions replace the system role.
type ResponsesAdapter struct {
	client openai.Client
}

// NewResponsesAdapter builds the adapter against OpenAI's Responses API.
func NewResponsesAdapter(apiKey string) *ResponsesAdapter {
	return &ResponsesAdapter{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(newHTTPClient()),
		),
	}
}

func (a *ResponsesAdapter) Name() string { return "openai-responses" }

func (a *ResponsesAdapter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var instructions string
	items := make(responses.ResponseInputParam, 0, len(req.Messages))

	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if instructions != "" {
				instructions += "\n\n"
			}
			instructions += m.Content
		case RoleUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleUser))
		case RoleAssistant:
			if m.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(m.Content, responses.EasyInputMessageRoleAssistant))
			}
			for _, tc := range m.ToolCalls {
				items = append(items, responses.ResponseInputItemParamOfFunctionCall(string(tc.Arguments), tc.ID, tc.Name))
			}
		case RoleTool:
			if m.ToolCallID == "" {
				return nil, &ProviderError{Kind: KindInvalidRequest, Provider: a.Name(), Message: "tool message missing tool_call_id"}
			}
			items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(m.ToolCallID, m.Content))
		}
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	if req.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if len(req.Tools) > 0 {
		params.Tools = toResponsesTools(req.Tools)
	}
	if choice := toResponsesToolChoice(req.ToolChoice); choice != nil {
		params.ToolChoice = *choice
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, classifyResponsesError(a.Name(), err)
	}

	out := &CompletionResponse{
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: FinishStop,
	}
	for _, item := range resp.Output {
		switch variant := item.AsAny().(type) {
		case responses.ResponseOutputMessage:
			for _, c := range variant.Content {
				if text, ok := c.AsAny().(responses.ResponseOutputText); ok {
					out.Content += text.Text
				}
			}
		case responses.ResponseFunctionToolCall:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        variant.CallID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.Arguments),
			})
		}
	}
	if len(out.ToolCalls) > 0 {
		out.FinishReason = FinishToolCalls
	}
	return out, nil
}

func toResponsesTools(tools []ToolDefinition) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var schema map[string]any
		if len(t.Parameters) > 0 {
			_ = json.Unmarshal(t.Parameters, &schema)
		}
		out = append(out, responses.ToolParamOfFunction(t.Name, schema, false))
	}
	return out
}

func toResponsesToolChoice(tc ToolChoice) *responses.ResponseNewParamsToolChoiceUnion {
	switch tc.Mode {
	case ToolChoiceRequired:
		return &responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: openai.F(responses.ToolChoiceOptionsRequired)}
	case ToolChoiceSpecific:
		return &responses.ResponseNewParamsToolChoiceUnion{
			OfFunctionTool: &responses.ToolChoiceFunctionParam{Name: tc.Name},
		}
	case ToolChoiceAuto:
		return &responses.ResponseNewParamsToolChoiceUnion{OfToolChoiceMode: openai.F(responses.ToolChoiceOptionsAuto)}
	default:
		return nil
	}
}

func classifyResponsesError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ClassifyStatus(provider, apiErr.StatusCode, apiErr.Message, nil)
	}
	return NewNetworkError(provider, err)
}
