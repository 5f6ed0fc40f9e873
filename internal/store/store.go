// ABOUTME: Store interface and data types for jarvis-gateway persistence
// ABOUTME: Defines Conversation, Turn structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Role identifies who produced a turn. Exactly two roles are persisted;
// system instructions are supplied to the backend out-of-band and never
// appear in a conversation's history.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is a single content fragment of a turn. Only text fragments exist
// today; the struct leaves room for other fragment kinds later.
type Part struct {
	Text string `json:"text"`
}

// Turn is one utterance in a conversation: a role plus its ordered content
// fragments. Turns are the atomic unit of history sent to the generation
// backend.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewTextTurn builds a turn with a single text fragment.
func NewTextTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Text: text}}}
}

// Text returns the concatenated text of all fragments in the turn.
func (t Turn) Text() string {
	if len(t.Parts) == 1 {
		return t.Parts[0].Text
	}
	var b strings.Builder
	for _, p := range t.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Validate checks that a turn decoded from storage is well-formed.
func (t Turn) Validate() error {
	if t.Role != RoleUser && t.Role != RoleModel {
		return fmt.Errorf("invalid role %q", t.Role)
	}
	if len(t.Parts) == 0 {
		return fmt.Errorf("turn has no parts")
	}
	return nil
}

// Conversation is the sole persisted entity: a session-owned, append-only
// sequence of turns. ID and SessionID are immutable after creation.
type Conversation struct {
	ID        string
	SessionID string
	Messages  []Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for conversation persistence
type Store interface {
	// CreateConversation creates a conversation with empty history owned
	// by the given session.
	CreateConversation(ctx context.Context, sessionID string) (*Conversation, error)

	// GetConversation retrieves a conversation by ID.
	// Returns ErrNotFound if it doesn't exist.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// GetLatestBySession retrieves the most recently updated conversation
	// owned by the given session. Returns ErrNotFound if the session has
	// no conversations.
	GetLatestBySession(ctx context.Context, sessionID string) (*Conversation, error)

	// AppendTurns atomically extends a conversation's history by the given
	// turns, preserving order, and persists the result. On failure nothing
	// is appended.
	AppendTurns(ctx context.Context, id string, turns []Turn) error

	// Close releases any resources held by the store
	Close() error
}
