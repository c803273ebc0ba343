// Package models defines the persisted entities shared across the agent
// orchestration core: sessions, messages, tool call records, and the
// authorization data model.
package models

import "time"

// SessionStatus is the lifecycle state of an agent Session.
type SessionStatus string

const (
	SessionRunning             SessionStatus = "running"
	SessionWaitingForUserInput SessionStatus = "waiting_for_user_input"
	SessionCompleted           SessionStatus = "completed"
	SessionFailed              SessionStatus = "failed"
)

// Terminal reports whether the status is one of the two terminal states.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Session is the persisted envelope of one agent execution.
type Session struct {
	ID        string
	WorkID    string // owning work/user id
	Tool      string // agent kind, e.g. "code_qa", "clarification"
	Provider  string
	Model     string
	System    string
	Status    SessionStatus
	StartedAt time.Time
	EndedAt   *time.Time
	Result    *string
	Error     *string
}

// MarkCompleted transitions the session to the completed terminal state.
// Callers must not call this on an already-terminal session.
func (s *Session) MarkCompleted(result string, now time.Time) {
	s.Status = SessionCompleted
	s.Result = &result
	s.EndedAt = &now
}

// MarkFailed transitions the session to the failed terminal state.
func (s *Session) MarkFailed(errMsg string, now time.Time) {
	s.Status = SessionFailed
	s.Error = &errMsg
	s.EndedAt = &now
}

// MarkWaitingForUser suspends the session pending clarification answers.
func (s *Session) MarkWaitingForUser() {
	s.Status = SessionWaitingForUserInput
}

// UsingToolsSentinel is the content stored for an assistant message that
// produced only tool calls and no text.
const UsingToolsSentinel = "[Using tools]"

// SessionMessage is one append-only entry in a Session's transcript. It
// reuses the channel-agnostic Role enum (message.go) since an agent-loop
// transcript entry and a channel message share the same author roles.
type SessionMessage struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}

// ToolCallStatus is the lifecycle state of a ToolCallRecord.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCallRecord is the persisted trace of one tool invocation made by a model.
type ToolCallRecord struct {
	ID                string
	SessionID         string
	AssistantMsgID    string
	CorrelationID     string // provider-supplied tool_call id, unique within a session
	ToolName          string
	RequestPayload    []byte // JSON
	ResponsePayload   []byte // JSON, nil until terminal
	Status            ToolCallStatus
	ExecutionTimeMS   *int64
	CreatedAt         time.Time
	CompletedAt       *time.Time
	ErrorDetails      *string
}

// MarkCompleted records a successful terminal outcome.
func (t *ToolCallRecord) MarkCompleted(response []byte, elapsed time.Duration, now time.Time) {
	t.Status = ToolCallCompleted
	t.ResponsePayload = response
	ms := elapsed.Milliseconds()
	t.ExecutionTimeMS = &ms
	t.CompletedAt = &now
}

// MarkFailed records a failed terminal outcome.
func (t *ToolCallRecord) MarkFailed(errMsg string, elapsed time.Duration, now time.Time) {
	t.Status = ToolCallFailed
	t.ErrorDetails = &errMsg
	ms := elapsed.Milliseconds()
	t.ExecutionTimeMS = &ms
	t.CompletedAt = &now
}
