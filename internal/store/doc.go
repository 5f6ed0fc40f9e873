// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Model
//
// A Conversation is the sole persisted entity: a session-owned, append-only
// sequence of Turns plus timestamps. Each Turn carries a role (user or
// model) and ordered content fragments; only text fragments exist today.
// The history column is serialized JSON, validated on every read so a
// malformed row never reaches the orchestrator.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on startup. AppendTurns runs its
// read-modify-write inside a single transaction, which is the append
// atomicity the orchestrator relies on: a failed request leaves the stored
// history untouched.
//
// # Error Handling
//
//   - ErrNotFound: Requested conversation does not exist
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements Store in memory and can
// inject failures via CreateErr/GetErr/AppendErr. Use NewSQLiteStore with a
// t.TempDir() path for integration tests with real SQLite.
package store
