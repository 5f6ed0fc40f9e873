// ABOUTME: Service is the central layer for conversation identity and history
// ABOUTME: Resolves which conversation a request mutates and reconciles results

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jarvislabs/jarvis-gateway/internal/locks"
	"github.com/jarvislabs/jarvis-gateway/internal/store"
)

// ErrEmptyMessage is returned when a chat request carries no message text.
var ErrEmptyMessage = errors.New("message is required")

// ReplyNotSavedError reports that the backend produced a reply but the
// append to durable history failed. The reply is carried along so the
// caller can still deliver it for this single turn; history continuity is
// not guaranteed afterwards.
type ReplyNotSavedError struct {
	Reply          string
	ConversationID string
	Err            error
}

func (e *ReplyNotSavedError) Error() string {
	return fmt.Sprintf("reply generated but not persisted: %v", e.Err)
}

func (e *ReplyNotSavedError) Unwrap() error {
	return e.Err
}

// ConversationStore defines what the service needs from storage
type ConversationStore interface {
	CreateConversation(ctx context.Context, sessionID string) (*store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetLatestBySession(ctx context.Context, sessionID string) (*store.Conversation, error)
	AppendTurns(ctx context.Context, id string, turns []store.Turn) error
}

// Generator defines what the service needs from the generation backend
type Generator interface {
	Generate(ctx context.Context, history []store.Turn, message string) (string, error)
}

// idleLockTTL is how long an unused per-conversation lock survives before
// the registry evicts it.
const idleLockTTL = 10 * time.Minute

// Service owns the conversation resolution and reconciliation protocol:
// which stored conversation a request mutates, how racing requests on the
// same conversation are serialized, and how backend outcomes map onto
// durable history.
type Service struct {
	store     ConversationStore
	generator Generator
	locks     *locks.Registry
	logger    *slog.Logger
}

// New creates a new conversation Service
func New(convStore ConversationStore, generator Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     convStore,
		generator: generator,
		locks:     locks.New(idleLockTTL),
		logger:    logger.With("component", "conversation"),
	}
}

// Close releases the per-conversation lock registry.
func (s *Service) Close() {
	s.locks.Close()
}

// HistoryResult is the read-only view of a session's active conversation.
// A missing conversation is a valid state: empty history, empty id.
type HistoryResult struct {
	History        []store.Turn
	ConversationID string
}

// ChatResult is the outcome of a successful chat exchange.
type ChatResult struct {
	Reply          string
	ConversationID string
}

// History returns the transcript of the session's most recent conversation.
// Absence is not an error; only a store failure is.
func (s *Service) History(ctx context.Context, sessionID string) (*HistoryResult, error) {
	conv, err := s.store.GetLatestBySession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return &HistoryResult{History: []store.Turn{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &HistoryResult{
		History:        conv.Messages,
		ConversationID: conv.ID,
	}, nil
}

// Chat sends a user message through the conversation the request resolves
// to, and appends the [user, model] pair as one atomic save on success.
//
// Resolution rules, first match wins:
//  1. No conversation id: create a fresh conversation for the session.
//  2. Id present but unknown, or owned by another session: silently create
//     a fresh conversation. A stale or spoofed id must never leak another
//     session's transcript nor hard-fail the user.
//  3. Id present and owned by the caller: use it with history intact.
//
// A blocked or failed generation appends nothing, so history never gains a
// dangling user turn without its reply.
func (s *Service) Chat(ctx context.Context, sessionID, message, conversationID string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	conv, created, err := s.resolveConversation(ctx, sessionID, conversationID)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(conv.ID)
	defer release()

	// A request that held the lock before us may have appended turns
	// between our resolution read and now. Reload so the backend sees them.
	if !created {
		current, err := s.store.GetConversation(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading conversation: %w", err)
		}
		conv = current
	}

	reply, err := s.generator.Generate(ctx, conv.Messages, message)
	if err != nil {
		// Blocked and failed generations both leave history untouched.
		// The error shape is already classified by the adapter.
		s.logger.Warn("generation did not produce a reply",
			"conversation_id", conv.ID,
			"error", err)
		return nil, err
	}

	turns := []store.Turn{
		store.NewTextTurn(store.RoleUser, message),
		store.NewTextTurn(store.RoleModel, reply),
	}
	if err := s.store.AppendTurns(ctx, conv.ID, turns); err != nil {
		// The reply was produced and is billable; surface this distinctly
		// instead of folding it into a generic failure.
		s.logger.Error("reply generated but not persisted",
			"conversation_id", conv.ID,
			"error", err)
		return nil, &ReplyNotSavedError{
			Reply:          reply,
			ConversationID: conv.ID,
			Err:            err,
		}
	}

	s.logger.Debug("exchange persisted",
		"conversation_id", conv.ID,
		"history_len", len(conv.Messages)+len(turns))

	return &ChatResult{
		Reply:          reply,
		ConversationID: conv.ID,
	}, nil
}

// resolveConversation maps a request onto exactly one conversation record.
// created reports whether the record was made for this request.
func (s *Service) resolveConversation(ctx context.Context, sessionID, conversationID string) (conv *store.Conversation, created bool, err error) {
	if conversationID == "" {
		conv, err := s.store.CreateConversation(ctx, sessionID)
		if err != nil {
			return nil, false, fmt.Errorf("creating conversation: %w", err)
		}
		s.logger.Debug("conversation created", "conversation_id", conv.ID)
		return conv, true, nil
	}

	conv, err = s.store.GetConversation(ctx, conversationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("loading conversation: %w", err)
	}
	if err == nil && conv.SessionID == sessionID {
		return conv, false, nil
	}

	// Unknown id or one owned by another session. Degrade to a fresh
	// conversation rather than erroring or leaking a foreign transcript.
	if err == nil {
		s.logger.Debug("conversation owned by another session, starting fresh",
			"conversation_id", conversationID)
	} else {
		s.logger.Debug("conversation not found, starting fresh",
			"conversation_id", conversationID)
	}

	conv, err = s.store.CreateConversation(ctx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Debug("conversation created", "conversation_id", conv.ID)
	return conv, true, nil
}
