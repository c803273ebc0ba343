package authz

import (
	"context"
	"sync"

	"github.com/nocodo/manager/pkg/models"
)

// MemoryStore is an in-process Store, useful for tests and for running
// without a configured database backend. It also implements the
// mutating operations (AddOwnership, AddTeamMember, Grant, DeleteTeam,
// RemoveOwnershipForResource, PutProject) a real store would expose alongside the read-only
// Store surface the Engine depends on.
type MemoryStore struct {
	mu         sync.RWMutex
	ownerships map[ownershipKey]string // (resourceType, resourceID) -> userID
	teamUsers  map[string][]string     // teamID -> []userID
	userTeams  map[string][]string     // userID -> []teamID
	perms      map[string][]models.Permission
	projects   map[string]*models.Project
}

type ownershipKey struct {
	resourceType models.ResourceType
	resourceID   string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ownerships: make(map[ownershipKey]string),
		teamUsers:  make(map[string][]string),
		userTeams:  make(map[string][]string),
		perms:      make(map[string][]models.Permission),
		projects:   make(map[string]*models.Project),
	}
}

func (m *MemoryStore) IsOwner(_ context.Context, resourceType models.ResourceType, resourceID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.ownerships[ownershipKey{resourceType, resourceID}]
	return ok && owner == userID, nil
}

func (m *MemoryStore) TeamsForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.userTeams[userID]))
	copy(out, m.userTeams[userID])
	return out, nil
}

func (m *MemoryStore) TeamPermissions(_ context.Context, teamID string, resourceType models.ResourceType) ([]models.Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Permission
	for _, p := range m.perms[teamID] {
		if p.ResourceType == resourceType {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryStore) Project(_ context.Context, projectID string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// AddOwnership records that userID owns (resourceType, resourceID).
func (m *MemoryStore) AddOwnership(resourceType models.ResourceType, resourceID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerships[ownershipKey{resourceType, resourceID}] = userID
}

// RemoveOwnershipForResource drops any ownership row for (resourceType,
// resourceID), modeling "deleting a resource removes its ownership rows".
func (m *MemoryStore) RemoveOwnershipForResource(resourceType models.ResourceType, resourceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ownerships, ownershipKey{resourceType, resourceID})
}

// AddTeamMember adds userID to teamID.
func (m *MemoryStore) AddTeamMember(teamID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !containsString(m.teamUsers[teamID], userID) {
		m.teamUsers[teamID] = append(m.teamUsers[teamID], userID)
	}
	if !containsString(m.userTeams[userID], teamID) {
		m.userTeams[userID] = append(m.userTeams[userID], teamID)
	}
}

// Grant appends a permission row for teamID.
func (m *MemoryStore) Grant(p models.Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[p.TeamID] = append(m.perms[p.TeamID], p)
}

// PutProject registers a project (used for hierarchical inheritance tests).
func (m *MemoryStore) PutProject(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := p
	m.projects[p.ID] = &cp
}

// DeleteTeam removes teamID's permissions and memberships atomically, per
// §4.6's cascade invariant.
func (m *MemoryStore) DeleteTeam(teamID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, userID := range m.teamUsers[teamID] {
		m.userTeams[userID] = removeString(m.userTeams[userID], teamID)
	}
	delete(m.teamUsers, teamID)
	delete(m.perms, teamID)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
