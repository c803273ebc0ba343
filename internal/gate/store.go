package gate

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/nocodo/manager/internal/authz"
	"github.com/nocodo/manager/pkg/models"
)

// ErrUserNotFound is returned by Store lookups for an unknown user.
var ErrUserNotFound = errors.New("gate: user not found")

// ErrUsernameTaken is returned by CreateUser when the username already
// has an account.
var ErrUsernameTaken = errors.New("gate: username already exists")

// Store is the persistence surface the gate depends on: the read-only
// permission evaluation from authz.Store, plus the user accounts and
// bootstrap-time team/permission writes §4.7 requires.
type Store interface {
	authz.Store

	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)

	// CreateSuperAdminTeam creates a "Super Admins" team containing
	// userID with an entity-level admin permission on every resource
	// type, per §4.7's bootstrap rule. Called exactly once, when
	// CountUsers was zero before CreateUser.
	CreateSuperAdminTeam(ctx context.Context, userID string) error
}

// MemoryStore is an in-process Store backed by authz.MemoryStore, adding
// user accounts on top of the same ownership/team/permission/project
// tables the Authorization Engine reads.
type MemoryStore struct {
	*authz.MemoryStore

	mu         sync.RWMutex
	users      map[string]*models.User // id -> user
	byUsername map[string]string       // username -> id
	nextID     int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		MemoryStore: authz.NewMemoryStore(),
		users:       make(map[string]*models.User),
		byUsername:  make(map[string]string),
	}
}

func (m *MemoryStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) CreateUser(_ context.Context, username, email, passwordHash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byUsername[username]; exists {
		return nil, ErrUsernameTaken
	}
	m.nextID++
	now := time.Now()
	user := &models.User{
		ID:           strconv.Itoa(m.nextID),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	m.byUsername[username] = user.ID
	return user, nil
}

func (m *MemoryStore) UserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateSuperAdminTeam implements the §4.7 bootstrap rule via the
// embedded authz.MemoryStore's mutating operations.
func (m *MemoryStore) CreateSuperAdminTeam(_ context.Context, userID string) error {
	const superAdminsTeam = "super-admins"
	m.MemoryStore.AddTeamMember(superAdminsTeam, userID)
	for _, rt := range models.AllResourceTypes {
		m.MemoryStore.Grant(models.Permission{
			TeamID:       superAdminsTeam,
			ResourceType: rt,
			ResourceID:   nil,
			Action:       models.ActionAdmin,
		})
	}
	return nil
}
