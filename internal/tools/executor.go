package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrAskUser is returned by Dispatch when the call names ask_user: the
// caller (the Agent Loop) must suspend the session instead of treating
// this as a normal tool result (§4.3, §4.2).
var ErrAskUser = errors.New("tools: ask_user must be handled by the caller")

// AskUserArgs is the argument shape for the ask_user tool: one or more
// clarification questions for a human.
type AskUserArgs struct {
	Questions []string `json:"questions"`
}

// Executor dispatches Calls to registered Handlers.
type Executor struct {
	handlers map[Name]Handler
	schemas  map[Name]*jsonschema.Schema
}

// NewExecutor builds an Executor with no handlers registered. Register
// each tool kind the caller wants to expose with Register.
func NewExecutor() *Executor {
	return &Executor{handlers: make(map[Name]Handler), schemas: make(map[Name]*jsonschema.Schema)}
}

// Register binds a Handler to a tool Name. Registering ask_user is a
// programming error: ask_user is never dispatched to a handler.
func (e *Executor) Register(name Name, h Handler) {
	if name == AskUser {
		panic("tools: ask_user cannot be registered as a handler")
	}
	e.handlers[name] = h
}

// RegisterSchema attaches a JSON-schema document describing the
// arguments a tool accepts. When set, Dispatch validates call.Arguments
// against it before the call reaches the handler, rejecting malformed
// tool calls the model produced without spending a handler invocation.
func (e *Executor) RegisterSchema(name Name, schemaJSON string) error {
	schema, err := jsonschema.CompileString(string(name)+".schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %q: %w", name, err)
	}
	e.schemas[name] = schema
	return nil
}

// Dispatch routes one Call. It rejects names outside the closed set,
// validates arguments against any registered schema, intercepts ask_user
// by checking that its arguments carry at least one question and
// returning ErrAskUser (the questions are not part of the Result), and
// otherwise runs the registered Handler.
func (e *Executor) Dispatch(ctx context.Context, call Call) Result {
	if !isKnownName(call.Name) {
		return Result{Err: fmt.Errorf("tools: unknown tool %q", call.Name)}
	}
	if schema, ok := e.schemas[call.Name]; ok {
		var v any
		if err := json.Unmarshal(call.Arguments, &v); err != nil {
			return Result{Err: fmt.Errorf("tools: invalid JSON arguments for %q: %w", call.Name, err)}
		}
		if err := schema.Validate(v); err != nil {
			return Result{Err: fmt.Errorf("tools: arguments for %q failed schema validation: %w", call.Name, err)}
		}
	}
	if call.Name == AskUser {
		var args AskUserArgs
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return Result{Err: fmt.Errorf("tools: invalid ask_user arguments: %w", err)}
		}
		if len(args.Questions) == 0 {
			return Result{Err: errors.New("tools: ask_user requires at least one question")}
		}
		return Result{Err: ErrAskUser}
	}
	h, ok := e.handlers[call.Name]
	if !ok {
		return Result{Err: fmt.Errorf("tools: no handler registered for %q", call.Name)}
	}
	return h.Execute(ctx, call)
}

func isKnownName(n Name) bool {
	for _, known := range AllNames {
		if known == n {
			return true
		}
	}
	return false
}
