// Package sessionstore defines the narrow persistence boundary the Agent
// Execution Loop depends on (§4.4): sessions, their message history, and
// tool call records. The loop never touches a database directly.
package sessionstore

import (
	"context"
	"errors"

	"github.com/nocodo/manager/pkg/models"
)

// ErrNotFound is returned by Get-style lookups when the id does not exist.
var ErrNotFound = errors.New("sessionstore: not found")

// Store is the Session Store Interface (§4.4). Every method is scoped to a
// single session or a single tool call record; the loop composes them, it
// never reaches past this boundary for persistence.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, s *models.Session) error

	AppendMessage(ctx context.Context, m *models.SessionMessage) error
	GetMessages(ctx context.Context, sessionID string) ([]*models.SessionMessage, error)

	CreateToolCall(ctx context.Context, t *models.ToolCallRecord) error
	UpdateToolCall(ctx context.Context, t *models.ToolCallRecord) error
	GetToolCall(ctx context.Context, id string) (*models.ToolCallRecord, error)

	// StoreQuestions persists the set of clarification questions an
	// ask_user tool call raised, keyed by the tool call's correlation id,
	// so a later answer can be matched back to its question set.
	StoreQuestions(ctx context.Context, correlationID string, questions []string) error
	GetQuestions(ctx context.Context, correlationID string) ([]string, error)
}
