// Package tools implements Tool Dispatch (§4.3): the closed set of typed
// tools the Agent Execution Loop may invoke, and the sandboxing rules that
// bound what each one can touch.
package tools

import "context"

// Name identifies one of the closed set of tool kinds.
type Name string

const (
	ListFiles      Name = "list_files"
	ReadFile       Name = "read_file"
	WriteFile      Name = "write_file"
	Grep           Name = "grep"
	Bash           Name = "bash"
	SQL            Name = "sql"
	PostgresReader Name = "postgres_reader"
	IMAPReader     Name = "imap_reader"
	AskUser        Name = "ask_user"
)

// AllNames lists every tool kind the Tool Dispatch layer recognizes. A
// call naming anything else is rejected before it reaches a handler.
var AllNames = []Name{ListFiles, ReadFile, WriteFile, Grep, Bash, SQL, PostgresReader, IMAPReader, AskUser}

// Call is one dispatch request: a tool name plus its raw JSON arguments,
// already associated with a session and correlation id by the caller.
type Call struct {
	CorrelationID string
	Name          Name
	Arguments     []byte
}

// Result is what a Handler returns: either a JSON-encodable payload or an
// error describing why the call failed.
type Result struct {
	Payload []byte
	Err     error
}

// Handler executes one tool kind. ask_user has no Handler: Dispatch
// intercepts it before reaching the handler registry (§4.3).
type Handler interface {
	Execute(ctx context.Context, call Call) Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, call Call) Result

func (f HandlerFunc) Execute(ctx context.Context, call Call) Result { return f(ctx, call) }
