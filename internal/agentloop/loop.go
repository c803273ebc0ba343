// Package agentloop implements the Agent Execution Loop (§4.2): a bounded
// reason-tool-observe cycle that turns a user prompt into an answer by
// repeatedly calling an LLM adapter, dispatching any tool calls it asks
// for through the Tool Executor, and feeding results back until the model
// stops calling tools, a clarification is needed, or the iteration cap is
// reached. It is grounded on the shape of the teacher's agent loop
// (phases, message-building, tool-result formatting) but is intentionally
// narrower: no streaming, no branching, no steering queue, no async jobs.
package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nocodo/manager/internal/llm"
	"github.com/nocodo/manager/internal/sessionstore"
	"github.com/nocodo/manager/internal/tools"
	"github.com/nocodo/manager/pkg/models"
)

// MaxIterations caps the number of reason-tool-observe cycles a Loop will
// run before failing the session (§4.2 Termination). Code-like agents get
// the larger budget; clarification/settings agents, which exist mainly to
// ask one or two questions, get the smaller one.
const (
	MaxIterationsCode          = 30
	MaxIterationsClarification = 10
)

// ErrMaxIterations is recorded as the session error when the iteration cap
// is exhausted without the model reaching a natural answer.
const ErrMaxIterations = "Maximum iteration limit reached"

// Config parameterizes one Loop at construction (§4.2 Inputs): the
// adapter to call, the closed tool set this agent kind may use, the
// system prompt, and the iteration cap.
type Config struct {
	Adapter       llm.Adapter
	Model         string
	Tools         []llm.ToolDefinition
	Executor      *tools.Executor
	Store         sessionstore.Store
	SystemPrompt  string
	MaxIterations int
	MaxTokens     int
}

// Loop runs the Agent Execution Loop for one agent kind. It is stateless
// across sessions: all state lives in the configured Store.
type Loop struct {
	cfg Config
}

// New builds a Loop from cfg, applying defaults for unset fields.
func New(cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = MaxIterationsCode
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Loop{cfg: cfg}
}

// Outcome is what Execute returns on every exit path: a natural answer, a
// suspension for user input, or a terminal failure.
type Outcome struct {
	Text             string
	WaitingForUser   bool
	QuestionToolCall string // correlation id of the ask_user call, set iff WaitingForUser
}

// Execute runs the loop for sessionID, which must already have been
// created by the caller with the user's prompt not yet appended (§4.2
// step 1 appends it here, on entry, exactly once).
func (l *Loop) Execute(ctx context.Context, sessionID, userPrompt string) (Outcome, error) {
	if err := l.cfg.Store.AppendMessage(ctx, &models.SessionMessage{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   userPrompt,
		CreatedAt: time.Now(),
	}); err != nil {
		return Outcome{}, fmt.Errorf("agentloop: append user message: %w", err)
	}

	for iteration := 0; iteration < l.cfg.MaxIterations; iteration++ {
		outcome, done, err := l.step(ctx, sessionID)
		if err != nil {
			return Outcome{}, err
		}
		if done {
			return outcome, nil
		}
	}

	now := time.Now()
	session, err := l.cfg.Store.GetSession(ctx, sessionID)
	if err == nil {
		session.MarkFailed(ErrMaxIterations, now)
		_ = l.cfg.Store.UpdateSession(ctx, session)
	}
	return Outcome{}, fmt.Errorf("agentloop: %s", ErrMaxIterations)
}

// step runs one iteration (§4.2 steps 2-9) and reports whether the loop
// should terminate (with the Outcome to return) or continue.
func (l *Loop) step(ctx context.Context, sessionID string) (Outcome, bool, error) {
	history, err := l.cfg.Store.GetMessages(ctx, sessionID)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: load history: %w", err)
	}

	req := &llm.CompletionRequest{
		Model:      l.cfg.Model,
		Messages:   toCanonicalMessages(l.cfg.SystemPrompt, history),
		Tools:      l.cfg.Tools,
		ToolChoice: llm.ToolChoice{Mode: llm.ToolChoiceAuto},
		MaxTokens:  l.cfg.MaxTokens,
	}

	resp, err := l.cfg.Adapter.Complete(ctx, req)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: adapter call: %w", err)
	}

	assistantContent := resp.Content
	if assistantContent == "" && len(resp.ToolCalls) > 0 {
		assistantContent = models.UsingToolsSentinel
	}
	assistantMsgID := uuid.NewString()
	if err := l.cfg.Store.AppendMessage(ctx, &models.SessionMessage{
		ID:        assistantMsgID,
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   assistantContent,
		CreatedAt: time.Now(),
	}); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: append assistant message: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		now := time.Now()
		session, err := l.cfg.Store.GetSession(ctx, sessionID)
		if err != nil {
			return Outcome{}, false, fmt.Errorf("agentloop: load session: %w", err)
		}
		session.MarkCompleted(resp.Content, now)
		if err := l.cfg.Store.UpdateSession(ctx, session); err != nil {
			return Outcome{}, false, fmt.Errorf("agentloop: update session: %w", err)
		}
		return Outcome{Text: resp.Content}, true, nil
	}

	for _, call := range resp.ToolCalls {
		outcome, suspend, err := l.dispatchToolCall(ctx, sessionID, assistantMsgID, call)
		if err != nil {
			return Outcome{}, false, err
		}
		if suspend {
			return outcome, true, nil
		}
	}
	return Outcome{}, false, nil
}

// dispatchToolCall runs §4.2 step 7 (and the ask_user special-case of
// step 8) for a single tool call returned by the model.
func (l *Loop) dispatchToolCall(ctx context.Context, sessionID, assistantMsgID string, call llm.ToolCall) (Outcome, bool, error) {
	record := &models.ToolCallRecord{
		SessionID:      sessionID,
		AssistantMsgID: assistantMsgID,
		CorrelationID:  call.ID,
		ToolName:       call.Name,
		RequestPayload: call.Arguments,
		Status:         models.ToolCallPending,
		CreatedAt:      time.Now(),
	}
	if err := l.cfg.Store.CreateToolCall(ctx, record); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: create tool call record: %w", err)
	}

	start := time.Now()
	result := l.cfg.Executor.Dispatch(ctx, tools.Call{
		CorrelationID: call.ID,
		Name:          tools.Name(call.Name),
		Arguments:     call.Arguments,
	})
	elapsed := time.Since(start)

	if result.Err == tools.ErrAskUser {
		return l.suspendForUser(ctx, sessionID, record)
	}

	now := time.Now()
	if result.Err != nil {
		record.MarkFailed(result.Err.Error(), elapsed, now)
		if err := l.cfg.Store.UpdateToolCall(ctx, record); err != nil {
			return Outcome{}, false, fmt.Errorf("agentloop: update failed tool call: %w", err)
		}
		content := fmt.Sprintf("Tool %s failed: %s", call.Name, result.Err.Error())
		if err := l.appendToolMessage(ctx, sessionID, content); err != nil {
			return Outcome{}, false, err
		}
		return Outcome{}, false, nil
	}

	record.MarkCompleted(result.Payload, elapsed, now)
	if err := l.cfg.Store.UpdateToolCall(ctx, record); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: update completed tool call: %w", err)
	}
	content := fmt.Sprintf("Tool %s result:\n%s", call.Name, string(result.Payload))
	if err := l.appendToolMessage(ctx, sessionID, content); err != nil {
		return Outcome{}, false, err
	}
	return Outcome{}, false, nil
}

// suspendForUser implements §4.2 step 8: the ask_user questions are
// persisted, the session transitions to waiting_for_user_input, and the
// loop returns immediately without executing anything locally.
func (l *Loop) suspendForUser(ctx context.Context, sessionID string, record *models.ToolCallRecord) (Outcome, bool, error) {
	var args tools.AskUserArgs
	if err := unmarshalAskUserArgs(record.RequestPayload, &args); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: parse ask_user arguments: %w", err)
	}

	now := time.Now()
	record.Status = models.ToolCallCompleted
	record.CompletedAt = &now
	if err := l.cfg.Store.UpdateToolCall(ctx, record); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: update suspended tool call: %w", err)
	}
	if err := l.cfg.Store.StoreQuestions(ctx, record.CorrelationID, args.Questions); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: store questions: %w", err)
	}

	session, err := l.cfg.Store.GetSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: load session: %w", err)
	}
	session.MarkWaitingForUser()
	if err := l.cfg.Store.UpdateSession(ctx, session); err != nil {
		return Outcome{}, false, fmt.Errorf("agentloop: update session: %w", err)
	}

	placeholder := fmt.Sprintf("Waiting for user to answer %d clarification questions", len(args.Questions))
	return Outcome{Text: placeholder, WaitingForUser: true, QuestionToolCall: record.CorrelationID}, true, nil
}

func (l *Loop) appendToolMessage(ctx context.Context, sessionID, content string) error {
	return l.cfg.Store.AppendMessage(ctx, &models.SessionMessage{
		SessionID: sessionID,
		Role:      models.RoleTool,
		Content:   content,
		CreatedAt: time.Now(),
	})
}

// toCanonicalMessages translates persisted history into the canonical
// message shape the adapter expects, prefixing the configured system
// prompt when present.
func toCanonicalMessages(systemPrompt string, history []*models.SessionMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	return out
}
