// Package authz implements the Authorization Engine (§4.6):
// check_permission(user, resource_type, resource_id?, action) -> bool,
// evaluated in a fixed order with short-circuit on first allow.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/nocodo/manager/pkg/models"
)

// ErrNotFound is returned by a Store's Project lookup when the id does
// not exist.
var ErrNotFound = errors.New("authz: not found")

// maxProjectWalk bounds the parent_id chain walk for hierarchical project
// inheritance, independent of the cycle-protection visited-set, as a
// defense against a pathological chain in a store that failed to enforce
// acyclicity.
const maxProjectWalk = 10000

// Store is the read surface the Authorization Engine depends on. It never
// mutates anything; cascading deletes (team removal, resource removal)
// are the owning store's responsibility, not the engine's.
type Store interface {
	// IsOwner reports whether an ownership row (resourceType, resourceID,
	// userID) exists.
	IsOwner(ctx context.Context, resourceType models.ResourceType, resourceID, userID string) (bool, error)

	// TeamsForUser lists every team the user belongs to.
	TeamsForUser(ctx context.Context, userID string) ([]string, error)

	// TeamPermissions lists every permission row granted to teamID for
	// resourceType (both entity-level and resource-specific rows).
	TeamPermissions(ctx context.Context, teamID string, resourceType models.ResourceType) ([]models.Permission, error)

	// Project looks up a project's parent_id chain anchor. MemoryStore
	// returns ErrNotFound for an unknown id; Engine treats any lookup
	// error as "stop walking, do not grant".
	Project(ctx context.Context, projectID string) (*models.Project, error)
}

// Engine evaluates check_permission against a Store.
type Engine struct {
	store Store
}

// New builds an Engine backed by store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// CheckPermission implements §4.6's evaluation order:
//  1. Ownership grants {read, write, delete} (not admin) on that resource.
//  2. Direct team permissions, entity-level or resource-specific, under
//     the action-implication hierarchy.
//  3. For resourceType == project with a resourceID, walk the parent_id
//     chain applying rule 2 at each ancestor.
//  4. Deny.
func (e *Engine) CheckPermission(ctx context.Context, userID string, resourceType models.ResourceType, resourceID *string, action models.Action) (bool, error) {
	if userID == "" {
		return false, nil
	}

	if resourceID != nil {
		owns, err := e.store.IsOwner(ctx, resourceType, *resourceID, userID)
		if err != nil {
			return false, fmt.Errorf("authz: check ownership: %w", err)
		}
		if owns && ownershipGrants(action) {
			return true, nil
		}
	}

	teams, err := e.store.TeamsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("authz: load teams: %w", err)
	}

	allowed, err := e.teamsGrant(ctx, teams, resourceType, resourceID, action)
	if err != nil {
		return false, err
	}
	if allowed {
		return true, nil
	}

	if resourceType == models.ResourceProject && resourceID != nil {
		return e.walkProjectAncestors(ctx, teams, *resourceID, action)
	}

	return false, nil
}

// ownershipGrants reports whether ownership's implicit {read, write,
// delete} grant (never admin) covers the requested action.
func ownershipGrants(action models.Action) bool {
	switch action {
	case models.ActionRead, models.ActionWrite, models.ActionDelete:
		return true
	default:
		return false
	}
}

// teamsGrant reports whether any of teams holds a permission on
// resourceType/resourceID whose action implies the requested action. A
// permission with a nil ResourceID is entity-level and matches every
// resourceID; a permission with a non-nil ResourceID matches only that
// exact id.
func (e *Engine) teamsGrant(ctx context.Context, teams []string, resourceType models.ResourceType, resourceID *string, action models.Action) (bool, error) {
	for _, teamID := range teams {
		perms, err := e.store.TeamPermissions(ctx, teamID, resourceType)
		if err != nil {
			return false, fmt.Errorf("authz: load team permissions: %w", err)
		}
		for _, p := range perms {
			if !p.Action.Implies(action) {
				continue
			}
			if p.ResourceID == nil {
				return true, nil
			}
			if resourceID != nil && *p.ResourceID == *resourceID {
				return true, nil
			}
		}
	}
	return false, nil
}

// walkProjectAncestors implements rule 3: walk the parent_id chain from
// projectID, applying rule 2 at every ancestor. Cycle protection bounds
// the walk to the number of distinct projects visited; a revisited id
// stops the walk without granting.
func (e *Engine) walkProjectAncestors(ctx context.Context, teams []string, projectID string, action models.Action) (bool, error) {
	visited := make(map[string]bool, 16)
	current := projectID
	for i := 0; i < maxProjectWalk; i++ {
		project, err := e.store.Project(ctx, current)
		if err != nil {
			return false, nil
		}
		if project.ParentID == nil {
			return false, nil
		}
		parentID := *project.ParentID
		if visited[parentID] {
			return false, nil
		}
		visited[parentID] = true

		allowed, err := e.teamsGrant(ctx, teams, models.ResourceProject, &parentID, action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
		current = parentID
	}
	return false, nil
}
