package files

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nocodo/manager/internal/tools"
)

// Config controls the base directory and limits every file tool shares.
type Config struct {
	BaseDir      string
	MaxReadBytes int
}

// ReadHandler implements the read_file tool (§4.3).
type ReadHandler struct {
	resolver   Resolver
	maxReadLen int
}

// NewReadHandler builds a read_file handler confined to cfg.BaseDir.
func NewReadHandler(cfg Config) *ReadHandler {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadHandler{
		resolver:   Resolver{Root: cfg.BaseDir},
		maxReadLen: limit,
	}
}

func (h *ReadHandler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var input struct {
		Path     string `json:"path"`
		Offset   int64  `json:"offset"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(call.Arguments, &input); err != nil {
		return errResult(fmt.Errorf("invalid arguments: %w", err))
	}
	if strings.TrimSpace(input.Path) == "" {
		return errResult(fmt.Errorf("path is required"))
	}
	if input.Offset < 0 {
		return errResult(fmt.Errorf("offset must be >= 0"))
	}

	resolved, err := h.resolver.Resolve(input.Path)
	if err != nil {
		return errResult(err)
	}

	file, err := os.Open(resolved)
	if err != nil {
		return errResult(fmt.Errorf("open file: %w", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errResult(fmt.Errorf("stat file: %w", err))
	}

	if input.Offset > 0 {
		if _, err := file.Seek(input.Offset, io.SeekStart); err != nil {
			return errResult(fmt.Errorf("seek file: %w", err))
		}
	}

	limit := h.maxReadLen
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - input.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return errResult(fmt.Errorf("read file: %w", err))
	}

	truncated := info.Size() > 0 && input.Offset+int64(len(buf)) < info.Size()

	payload, err := json.Marshal(map[string]any{
		"path":      input.Path,
		"content":   string(buf),
		"offset":    input.Offset,
		"bytes":     len(buf),
		"truncated": truncated,
	})
	if err != nil {
		return errResult(fmt.Errorf("encode result: %w", err))
	}
	return tools.Result{Payload: payload}
}

func errResult(err error) tools.Result { return tools.Result{Err: err} }
