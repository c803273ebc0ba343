package tools

import (
	"encoding/json"

	"github.com/nocodo/manager/internal/llm"
)

// ArgumentSchemas maps each closed-set tool to a JSON-schema document
// describing the arguments the Agent Execution Loop may pass it.
// RegisterAllSchemas wires these onto an Executor so malformed tool
// calls a model produces are rejected by Dispatch before any handler
// runs, per SPEC_FULL.md §B's jsonschema/v5 wiring.
var ArgumentSchemas = map[Name]string{
	ListFiles: `{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"additionalProperties": false
	}`,
	ReadFile: `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"offset": {"type": "integer"},
			"max_bytes": {"type": "integer"}
		},
		"required": ["path"],
		"additionalProperties": false
	}`,
	WriteFile: `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"content": {"type": "string"},
			"append": {"type": "boolean"}
		},
		"required": ["path", "content"],
		"additionalProperties": false
	}`,
	Grep: `{
		"type": "object",
		"properties": {
			"pattern": {"type": "string"},
			"path": {"type": "string"},
			"case_sensitive": {"type": "boolean"},
			"include_pattern": {"type": "string"},
			"exclude_pattern": {"type": "string"},
			"recursive": {"type": "boolean"},
			"max_results": {"type": "integer"},
			"max_files_searched": {"type": "integer"},
			"include_line_numbers": {"type": "boolean"}
		},
		"required": ["pattern"],
		"additionalProperties": false
	}`,
	Bash: `{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"cwd": {"type": "string"},
			"env": {"type": "object", "additionalProperties": {"type": "string"}},
			"timeout_seconds": {"type": "integer"}
		},
		"required": ["command"],
		"additionalProperties": false
	}`,
	SQL: `{
		"type": "object",
		"properties": {
			"database": {"type": "string"},
			"query": {"type": "string"}
		},
		"required": ["query"],
		"additionalProperties": false
	}`,
	PostgresReader: `{
		"type": "object",
		"properties": {
			"connection_string": {"type": "string"},
			"query": {"type": "string"},
			"reflect": {"type": "string"},
			"schema": {"type": "string"},
			"table": {"type": "string"},
			"limit": {"type": "integer"}
		},
		"additionalProperties": false
	}`,
	IMAPReader: `{
		"type": "object",
		"properties": {
			"operation": {"type": "string"},
			"mailbox": {"type": "string"},
			"uids": {"type": "array", "items": {"type": "integer"}},
			"criteria": {"type": "object"},
			"limit": {"type": "integer"}
		},
		"required": ["operation"],
		"additionalProperties": false
	}`,
	AskUser: `{
		"type": "object",
		"properties": {
			"questions": {"type": "array", "items": {"type": "string"}, "minItems": 1}
		},
		"required": ["questions"],
		"additionalProperties": false
	}`,
}

// RegisterAllSchemas compiles and attaches ArgumentSchemas to e.
func RegisterAllSchemas(e *Executor) error {
	for name, schema := range ArgumentSchemas {
		if err := e.RegisterSchema(name, schema); err != nil {
			return err
		}
	}
	return nil
}

// toolDescriptions gives the model a one-line summary of each closed-set
// tool, used alongside ArgumentSchemas to build the ToolDefinition list
// a CompletionRequest advertises.
var toolDescriptions = map[Name]string{
	ListFiles:      "List files and directories under a path, non-recursively.",
	ReadFile:       "Read the contents of a file.",
	WriteFile:      "Write or append content to a file.",
	Grep:           "Search file contents for a regular expression pattern.",
	Bash:           "Run a shell command, subject to sandbox allow/deny rules.",
	SQL:            "Run a read-only SQL query against a configured SQLite database.",
	PostgresReader: "Run a read-only SQL query or schema reflection against a PostgreSQL database.",
	IMAPReader:     "Read email via IMAP: list mailboxes, search, or fetch messages.",
	AskUser:        "Ask the user one or more clarifying questions and wait for their answer.",
}

// ToolDefinitions returns the llm.ToolDefinition list for every closed-set
// tool, for advertising to a CompletionRequest's Tools field.
func ToolDefinitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(AllNames))
	for _, name := range AllNames {
		defs = append(defs, llm.ToolDefinition{
			Name:        string(name),
			Description: toolDescriptions[name],
			Parameters:  json.RawMessage(ArgumentSchemas[name]),
		})
	}
	return defs
}
