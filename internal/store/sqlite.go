// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			messages TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_session
			ON conversations(session_id, updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation creates a new conversation with empty history owned
// by the given session.
func (s *SQLiteStore) CreateConversation(ctx context.Context, sessionID string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Messages:  []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `
		INSERT INTO conversations (id, session_id, messages, created_at, updated_at)
		VALUES (?, ?, '[]', ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.SessionID,
		conv.CreatedAt.Format(time.RFC3339Nano),
		conv.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "session_id", conv.SessionID)
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, session_id, messages, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`

	return s.scanConversation(s.db.QueryRowContext(ctx, query, id))
}

// GetLatestBySession retrieves the most recently updated conversation owned
// by the given session. Returns ErrNotFound if the session has none.
func (s *SQLiteStore) GetLatestBySession(ctx context.Context, sessionID string) (*Conversation, error) {
	query := `
		SELECT id, session_id, messages, created_at, updated_at
		FROM conversations
		WHERE session_id = ?
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`

	return s.scanConversation(s.db.QueryRowContext(ctx, query, sessionID))
}

// AppendTurns atomically extends a conversation's history and persists it.
// The read-modify-write runs in a single transaction so a failure leaves
// the stored history untouched.
func (s *SQLiteStore) AppendTurns(ctx context.Context, id string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT messages FROM conversations WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("querying messages: %w", err)
	}

	messages, err := decodeTurns(raw)
	if err != nil {
		return fmt.Errorf("decoding stored messages: %w", err)
	}

	messages = append(messages, turns...)
	encoded, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET messages = ?, updated_at = ? WHERE id = ?`,
		string(encoded),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating messages: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}

	s.logger.Debug("appended turns", "id", id, "count", len(turns), "total", len(messages))
	return nil
}

// scanConversation reads one conversation row and decodes its history.
func (s *SQLiteStore) scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var raw, createdAtStr, updatedAtStr string

	err := row.Scan(
		&conv.ID,
		&conv.SessionID,
		&raw,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	conv.Messages, err = decodeTurns(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}

	conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// decodeTurns unmarshals and validates a serialized history. Rows written
// by anything other than this store must not smuggle malformed turns into
// the orchestrator.
func decodeTurns(raw string) ([]Turn, error) {
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, err
	}
	for i, t := range turns {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("turn %d: %w", i, err)
		}
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}
