package models

import "time"

// User is an authenticated account. PasswordHash is the argon2id hash
// produced by internal/auth; it is never logged or serialized to clients.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Team groups users for permission grants.
type Team struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

// Membership is a (team, user) pair, optionally recording who granted it.
type Membership struct {
	TeamID    string
	UserID    string
	GrantedBy string
}

// ResourceType enumerates the kinds of resource the Authorization Engine
// reasons about.
type ResourceType string

const (
	ResourceProject   ResourceType = "project"
	ResourceWork      ResourceType = "work"
	ResourceSettings  ResourceType = "settings"
	ResourceUser      ResourceType = "user"
	ResourceTeam      ResourceType = "team"
	ResourceAISession ResourceType = "ai_session"
)

// AllResourceTypes lists every resource type, used by bootstrap to grant
// entity-level admin permissions on all of them.
var AllResourceTypes = []ResourceType{
	ResourceProject, ResourceWork, ResourceSettings, ResourceUser, ResourceTeam, ResourceAISession,
}

// Action is a permission verb. The zero value is invalid.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// Implies reports whether holding `a` also grants `other` under the action
// hierarchy: admin ⇒ {write, read, delete}; write ⇒ read; delete ⇒ read.
func (a Action) Implies(other Action) bool {
	if a == other {
		return true
	}
	switch a {
	case ActionAdmin:
		return other == ActionRead || other == ActionWrite || other == ActionDelete
	case ActionWrite, ActionDelete:
		return other == ActionRead
	default:
		return false
	}
}

// Permission is a (team, resource_type, resource_id?, action) grant.
// A nil ResourceID applies to every resource of ResourceType (entity-level).
type Permission struct {
	ID           string
	TeamID       string
	ResourceType ResourceType
	ResourceID   *string
	Action       Action
	GrantedBy    string
}

// Ownership is a (resource_type, resource_id, user) tuple. Establishing
// ownership implicitly grants {read, write, delete} (not admin) on that
// specific resource.
type Ownership struct {
	ResourceType ResourceType
	ResourceID   string
	UserID       string
}

// Project is the subset of project attributes the core consumes: its id
// and an optional parent forming a tree for permission inheritance (§4.6).
type Project struct {
	ID       string
	Path     string
	ParentID *string
}
