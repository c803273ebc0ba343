// Package workspace resolves the on-disk working directory a tool
// dispatch should run in, per spec.md §1's "resolve branch → working
// directory" opaque boundary and SPEC_FULL.md §C.1: the core consumes
// this as an interface, never performs git or worktree operations
// itself.
package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/nocodo/manager/pkg/models"
)

// ErrProjectNotFound is returned when the underlying store has no
// project with the requested id.
var ErrProjectNotFound = errors.New("workspace: project not found")

// Store is the persistence boundary a Resolver reads from. It is
// satisfied by whatever the daemon's project storage actually is;
// this package only consumes it.
type Store interface {
	// GetProject returns the project's base attributes (§3), including
	// its default working directory path.
	GetProject(ctx context.Context, projectID string) (*models.Project, error)

	// BranchWorkingDir returns a previously-resolved working directory
	// for (projectID, branch), if one exists. Resolution itself — git
	// worktree creation, checkout, cleanup — happens entirely outside
	// this package (§1's "Git repository initialization and worktree
	// resolution" non-goal); Store only remembers the answer.
	BranchWorkingDir(ctx context.Context, projectID, branch string) (path string, ok bool, err error)
}

// Resolver answers "what directory should this session's tool calls
// run in" given a project id and an optional branch, mirroring the
// original manager's per-command `working_directory` override and the
// git-branch-scoped session concept confirmed by
// project_commands.rs's `git_branch` execution column.
type Resolver struct {
	store Store
}

// NewResolver builds a Resolver over store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveWorkingDirectory returns the absolute path a session scoped to
// (projectID, branch) should use as its tool-call base directory. An
// empty branch resolves to the project's own path; a non-empty branch
// first checks for a recorded branch-specific working directory and
// falls back to the project path if none is recorded.
func (r *Resolver) ResolveWorkingDirectory(ctx context.Context, projectID, branch string) (string, error) {
	if branch != "" {
		path, ok, err := r.store.BranchWorkingDir(ctx, projectID, branch)
		if err != nil {
			return "", fmt.Errorf("workspace: resolve branch working dir: %w", err)
		}
		if ok {
			return path, nil
		}
	}

	project, err := r.store.GetProject(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("workspace: %w: %s", ErrProjectNotFound, projectID)
	}
	return project.Path, nil
}
