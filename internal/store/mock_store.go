// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID

	// CreateErr, GetErr and AppendErr, when set, are returned by the
	// corresponding operations. Used to exercise failure paths.
	CreateErr error
	GetErr    error
	AppendErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
	}
}

// CreateConversation stores a new empty conversation.
func (m *MockStore) CreateConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Messages:  []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[conv.ID] = conv

	return copyConversation(conv), nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyConversation(conv), nil
}

// GetLatestBySession retrieves the most recently updated conversation for a session.
func (m *MockStore) GetLatestBySession(ctx context.Context, sessionID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}

	var latest *Conversation
	for _, conv := range m.conversations {
		if conv.SessionID != sessionID {
			continue
		}
		if latest == nil || conv.UpdatedAt.After(latest.UpdatedAt) {
			latest = conv
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return copyConversation(latest), nil
}

// AppendTurns extends a conversation's history in place.
func (m *MockStore) AppendTurns(ctx context.Context, id string, turns []Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return m.AppendErr
	}

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = append(conv.Messages, turns...)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// copyConversation returns a deep-enough copy so callers cannot mutate
// stored state through the returned value.
func copyConversation(conv *Conversation) *Conversation {
	c := *conv
	c.Messages = make([]Turn, len(conv.Messages))
	copy(c.Messages, conv.Messages)
	return &c
}
