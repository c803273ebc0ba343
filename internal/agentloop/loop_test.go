package agentloop

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nocodo/manager/internal/llm"
	"github.com/nocodo/manager/internal/sessionstore"
	"github.com/nocodo/manager/internal/tools"
	"github.com/nocodo/manager/pkg/models"
)

// scriptedAdapter returns one canned CompletionResponse per call, in
// order, so a test can script a whole multi-iteration conversation.
type scriptedAdapter struct {
	responses []*llm.CompletionResponse
	calls     int
}

func (a *scriptedAdapter) Name() string { return "scripted" }

func (a *scriptedAdapter) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if a.calls >= len(a.responses) {
		return &llm.CompletionResponse{Content: "ran out of script"}, nil
	}
	resp := a.responses[a.calls]
	a.calls++
	return resp, nil
}

func newSession(t *testing.T, store sessionstore.Store) string {
	t.Helper()
	s := &models.Session{Tool: "test_agent", Status: models.SessionRunning, StartedAt: time.Now()}
	if err := store.CreateSession(context.Background(), s); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s.ID
}

func TestExecute_NaturalAnswerNoToolCalls(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	sessionID := newSession(t, store)
	adapter := &scriptedAdapter{responses: []*llm.CompletionResponse{
		{Content: "the answer is 42"},
	}}
	loop := New(Config{Adapter: adapter, Executor: tools.NewExecutor(), Store: store})

	outcome, err := loop.Execute(context.Background(), sessionID, "what is the answer?")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Text != "the answer is 42" {
		t.Errorf("Text = %q, want %q", outcome.Text, "the answer is 42")
	}
	if outcome.WaitingForUser {
		t.Error("should not be waiting for user")
	}

	session, err := store.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != models.SessionCompleted {
		t.Errorf("status = %s, want completed", session.Status)
	}
}

func TestExecute_ToolCallThenAnswer(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	sessionID := newSession(t, store)
	adapter := &scriptedAdapter{responses: []*llm.CompletionResponse{
		{
			ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.txt"}`)}},
		},
		{Content: "file contents summarized"},
	}}
	exec := tools.NewExecutor()
	exec.Register(tools.ReadFile, tools.HandlerFunc(func(ctx context.Context, call tools.Call) tools.Result {
		return tools.Result{Payload: []byte(`{"content":"hello"}`)}
	}))
	loop := New(Config{Adapter: adapter, Executor: exec, Store: store})

	outcome, err := loop.Execute(context.Background(), sessionID, "summarize a.txt")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Text != "file contents summarized" {
		t.Errorf("Text = %q", outcome.Text)
	}

	messages, err := store.GetMessages(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	var sawToolResult bool
	for _, m := range messages {
		if m.Role == models.RoleTool && strings.Contains(m.Content, "Tool read_file result:") {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Error("expected a tool result message in history")
	}
}

func TestExecute_ToolFailureAppendsFailureMessage(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	sessionID := newSession(t, store)
	adapter := &scriptedAdapter{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "bash", Arguments: json.RawMessage(`{"command":"rm -rf /"}`)}}},
		{Content: "done"},
	}}
	exec := tools.NewExecutor()
	exec.Register(tools.Bash, tools.HandlerFunc(func(ctx context.Context, call tools.Call) tools.Result {
		return tools.Result{Err: errDenied}
	}))
	loop := New(Config{Adapter: adapter, Executor: exec, Store: store})

	if _, err := loop.Execute(context.Background(), sessionID, "clean up"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	messages, _ := store.GetMessages(context.Background(), sessionID)
	var sawFailure bool
	for _, m := range messages {
		if m.Role == models.RoleTool && strings.Contains(m.Content, "Tool bash failed:") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("expected a tool failure message in history")
	}
}

func TestExecute_AskUserSuspendsSession(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	sessionID := newSession(t, store)
	adapter := &scriptedAdapter{responses: []*llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call-1",
			Name:      string(tools.AskUser),
			Arguments: json.RawMessage(`{"questions":["what is your project name?"]}`),
		}}},
	}}
	loop := New(Config{Adapter: adapter, Executor: tools.NewExecutor(), Store: store})

	outcome, err := loop.Execute(context.Background(), sessionID, "set up my project")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !outcome.WaitingForUser {
		t.Error("expected WaitingForUser")
	}
	if !strings.Contains(outcome.Text, "1 clarification questions") {
		t.Errorf("unexpected placeholder text: %q", outcome.Text)
	}

	session, err := store.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != models.SessionWaitingForUserInput {
		t.Errorf("status = %s, want waiting_for_user_input", session.Status)
	}

	questions, err := store.GetQuestions(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if len(questions) != 1 || questions[0] != "what is your project name?" {
		t.Errorf("unexpected stored questions: %v", questions)
	}
}

func TestExecute_MaxIterationsFailsSession(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	sessionID := newSession(t, store)
	endless := &scriptedAdapter{}
	for i := 0; i < 5; i++ {
		endless.responses = append(endless.responses, &llm.CompletionResponse{
			ToolCalls: []llm.ToolCall{{ID: "call", Name: "read_file", Arguments: json.RawMessage(`{}`)}},
		})
	}
	exec := tools.NewExecutor()
	exec.Register(tools.ReadFile, tools.HandlerFunc(func(ctx context.Context, call tools.Call) tools.Result {
		return tools.Result{Payload: []byte(`{}`)}
	}))
	loop := New(Config{Adapter: endless, Executor: exec, Store: store, MaxIterations: 3})

	_, err := loop.Execute(context.Background(), sessionID, "loop forever")
	if err == nil {
		t.Fatal("expected max-iterations error")
	}

	session, getErr := store.GetSession(context.Background(), sessionID)
	if getErr != nil {
		t.Fatalf("get session: %v", getErr)
	}
	if session.Status != models.SessionFailed {
		t.Errorf("status = %s, want failed", session.Status)
	}
	if session.Error == nil || *session.Error != ErrMaxIterations {
		t.Errorf("error = %v, want %q", session.Error, ErrMaxIterations)
	}
}

var errDenied = denyError{}

type denyError struct{}

func (denyError) Error() string { return "shell sandbox: command denied" }
