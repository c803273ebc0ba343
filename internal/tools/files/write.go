package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nocodo/manager/internal/tools"
)

// WriteHandler implements the write_file tool (§4.3).
type WriteHandler struct {
	resolver Resolver
}

// NewWriteHandler builds a write_file handler confined to cfg.BaseDir.
func NewWriteHandler(cfg Config) *WriteHandler {
	return &WriteHandler{resolver: Resolver{Root: cfg.BaseDir}}
}

func (h *WriteHandler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := json.Unmarshal(call.Arguments, &input); err != nil {
		return errResult(fmt.Errorf("invalid arguments: %w", err))
	}
	if strings.TrimSpace(input.Path) == "" {
		return errResult(fmt.Errorf("path is required"))
	}

	resolved, err := h.resolver.Resolve(input.Path)
	if err != nil {
		return errResult(err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return errResult(fmt.Errorf("create directory: %w", err))
	}

	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return errResult(fmt.Errorf("open file: %w", err))
	}
	defer file.Close()

	n, err := file.WriteString(input.Content)
	if err != nil {
		return errResult(fmt.Errorf("write file: %w", err))
	}

	payload, err := json.Marshal(map[string]any{
		"path":          input.Path,
		"bytes_written": n,
		"append":        input.Append,
	})
	if err != nil {
		return errResult(fmt.Errorf("encode result: %w", err))
	}
	return tools.Result{Payload: payload}
}
