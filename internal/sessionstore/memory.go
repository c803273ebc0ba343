package sessionstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nocodo/manager/pkg/models"
)

// maxMessagesPerSession bounds the in-memory transcript kept per session;
// older messages are dropped once the cap is hit.
const maxMessagesPerSession = 1000

// MemoryStore is an in-process Store, useful for tests and for running the
// manager without a configured database backend.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*models.Session
	messages  map[string][]*models.SessionMessage
	toolCalls map[string]*models.ToolCallRecord
	questions map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*models.Session),
		messages:  make(map[string][]*models.SessionMessage),
		toolCalls: make(map[string]*models.ToolCallRecord),
		questions: make(map[string][]string),
	}
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) UpdateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg *models.SessionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	cp := *msg
	list := append(m.messages[msg.SessionID], &cp)
	if len(list) > maxMessagesPerSession {
		list = list[len(list)-maxMessagesPerSession:]
	}
	m.messages[msg.SessionID] = list
	return nil
}

func (m *MemoryStore) GetMessages(_ context.Context, sessionID string) ([]*models.SessionMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.messages[sessionID]
	out := make([]*models.SessionMessage, len(src))
	for i, msg := range src {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) CreateToolCall(_ context.Context, t *models.ToolCallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	m.toolCalls[t.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateToolCall(_ context.Context, t *models.ToolCallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.toolCalls[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.toolCalls[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetToolCall(_ context.Context, id string) (*models.ToolCallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.toolCalls[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) StoreQuestions(_ context.Context, correlationID string, questions []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]string, len(questions))
	copy(cp, questions)
	m.questions[correlationID] = cp
	return nil
}

func (m *MemoryStore) GetQuestions(_ context.Context, correlationID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	qs, ok := m.questions[correlationID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]string, len(qs))
	copy(cp, qs)
	return cp, nil
}
