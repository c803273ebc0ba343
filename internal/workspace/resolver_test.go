package workspace

import (
	"context"
	"testing"

	"github.com/nocodo/manager/pkg/models"
)

type memStore struct {
	projects map[string]*models.Project
	branches map[string]string // projectID+"/"+branch -> path
}

func newMemStore() *memStore {
	return &memStore{projects: map[string]*models.Project{}, branches: map[string]string{}}
}

func (m *memStore) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

func (m *memStore) BranchWorkingDir(ctx context.Context, projectID, branch string) (string, bool, error) {
	path, ok := m.branches[projectID+"/"+branch]
	return path, ok, nil
}

func TestResolveWorkingDirectoryDefaultsToProjectPath(t *testing.T) {
	store := newMemStore()
	store.projects["proj-1"] = &models.Project{ID: "proj-1", Path: "/home/user/proj-1"}
	r := NewResolver(store)

	path, err := r.ResolveWorkingDirectory(context.Background(), "proj-1", "")
	if err != nil {
		t.Fatalf("ResolveWorkingDirectory: %v", err)
	}
	if path != "/home/user/proj-1" {
		t.Fatalf("expected project path, got %q", path)
	}
}

func TestResolveWorkingDirectoryUsesBranchOverride(t *testing.T) {
	store := newMemStore()
	store.projects["proj-1"] = &models.Project{ID: "proj-1", Path: "/home/user/proj-1"}
	store.branches["proj-1/feature-x"] = "/home/user/proj-1-worktrees/feature-x"
	r := NewResolver(store)

	path, err := r.ResolveWorkingDirectory(context.Background(), "proj-1", "feature-x")
	if err != nil {
		t.Fatalf("ResolveWorkingDirectory: %v", err)
	}
	if path != "/home/user/proj-1-worktrees/feature-x" {
		t.Fatalf("expected worktree path, got %q", path)
	}
}

func TestResolveWorkingDirectoryFallsBackWhenBranchUnrecorded(t *testing.T) {
	store := newMemStore()
	store.projects["proj-1"] = &models.Project{ID: "proj-1", Path: "/home/user/proj-1"}
	r := NewResolver(store)

	path, err := r.ResolveWorkingDirectory(context.Background(), "proj-1", "unknown-branch")
	if err != nil {
		t.Fatalf("ResolveWorkingDirectory: %v", err)
	}
	if path != "/home/user/proj-1" {
		t.Fatalf("expected fallback to project path, got %q", path)
	}
}

func TestResolveWorkingDirectoryUnknownProjectErrors(t *testing.T) {
	store := newMemStore()
	r := NewResolver(store)

	if _, err := r.ResolveWorkingDirectory(context.Background(), "missing", ""); err == nil {
		t.Fatal("expected error for unknown project")
	}
}
