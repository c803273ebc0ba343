package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nocodo/manager/internal/tools"
)

const maxListEntries = 2000

// Entry is one directory listing row.
type Entry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// ListHandler implements the list_files tool (§4.3): a non-recursive
// directory listing confined to the same base directory as read_file and
// write_file.
type ListHandler struct {
	resolver Resolver
}

// NewListHandler builds a list_files handler confined to cfg.BaseDir.
func NewListHandler(cfg Config) *ListHandler {
	return &ListHandler{resolver: Resolver{Root: cfg.BaseDir}}
}

func (h *ListHandler) Execute(ctx context.Context, call tools.Call) tools.Result {
	var input struct {
		Path string `json:"path"`
	}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &input); err != nil {
			return errResult(fmt.Errorf("invalid arguments: %w", err))
		}
	}
	target := input.Path
	if strings.TrimSpace(target) == "" {
		target = "."
	}

	resolved, err := h.resolver.Resolve(target)
	if err != nil {
		return errResult(err)
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return errResult(fmt.Errorf("list directory: %w", err))
	}

	entries := make([]Entry, 0, len(dirEntries))
	truncated := false
	for _, de := range dirEntries {
		if len(entries) >= maxListEntries {
			truncated = true
			break
		}
		info, err := de.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		entries = append(entries, Entry{
			Path:  filepath.Join(target, de.Name()),
			IsDir: de.IsDir(),
			Size:  size,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	payload, err := json.Marshal(map[string]any{
		"path":      target,
		"entries":   entries,
		"truncated": truncated,
	})
	if err != nil {
		return errResult(fmt.Errorf("encode result: %w", err))
	}
	return tools.Result{Payload: payload}
}
