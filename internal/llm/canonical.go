// Package llm implements the LLM Provider Abstraction: one canonical
// completion/tool-call contract presented over heterogeneous provider wire
// protocols (OpenAI Chat Completions, OpenAI Responses API and Anthropic
// Messages). Azure, Ollama, OpenRouter and the Copilot proxy go through
// the Chat Completions adapter; Bedrock uses the Anthropic Messages shape.
package llm

import "encoding/json"

// Role is the canonical message author. It maps 1-1 to each wire shape's
// own role enum except where a shape has no direct equivalent (Anthropic
// has no top-level "system" message; Responses API flattens roles into an
// input sequence).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single (id, name, arguments) request made by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one canonical chat turn.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // only populated on assistant messages
	ToolCallID string     // only populated on tool-result messages
}

// ToolChoice selects how the model should use tools.
type ToolChoice struct {
	Mode ToolChoiceMode
	Name string // only meaningful when Mode == ToolChoiceSpecific
}

type ToolChoiceMode string

const (
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceSpecific ToolChoiceMode = "specific"
)

// ToolDefinition describes one callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON schema
}

// CompletionRequest is the adapter-independent shape of an LLM request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	ToolChoice  ToolChoice
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stream      bool
}

// FinishReason is the canonical reason a completion stopped.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
)

// Usage reports token accounting, preserved modulo provider naming.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionResponse is the adapter-independent shape of an LLM response.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        Usage
	FinishReason FinishReason
}

// HTTPTimeout is the floor request timeout every adapter's HTTP client uses (§4.1).
const HTTPTimeout = 120 // seconds
