// ABOUTME: Tests for the conversation Service
// ABOUTME: Covers identity resolution, append atomicity and failure outcomes

package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jarvislabs/jarvis-gateway/internal/gemini"
	"github.com/jarvislabs/jarvis-gateway/internal/store"
)

// mockGenerator implements Generator for testing
type mockGenerator struct {
	mu          sync.Mutex
	reply       string
	err         error
	delay       time.Duration
	calls       int
	lastHistory []store.Turn
	lastMessage string
}

func (m *mockGenerator) Generate(ctx context.Context, history []store.Turn, message string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastHistory = history
	m.lastMessage = message
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestService(t *testing.T, gen Generator) (*Service, *store.MockStore) {
	t.Helper()
	mock := store.NewMockStore()
	svc := New(mock, gen, nil)
	t.Cleanup(svc.Close)
	return svc, mock
}

func createSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestService_Chat_CreatesConversation(t *testing.T) {
	gen := &mockGenerator{reply: "Hello! How can I help?"}
	s := createSQLiteStore(t)
	svc := New(s, gen, nil)
	defer svc.Close()

	ctx := context.Background()
	result, err := svc.Chat(ctx, "s1", "hello", "")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Hello! How can I help?", result.Reply)
	assert.NotEmpty(t, result.ConversationID)

	// The new conversation holds exactly the [user, model] pair
	conv, err := s.GetConversation(ctx, result.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, store.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "hello", conv.Messages[0].Text())
	assert.Equal(t, store.RoleModel, conv.Messages[1].Role)
	assert.Equal(t, "Hello! How can I help?", conv.Messages[1].Text())

	// Generation saw no prior history
	assert.Empty(t, gen.lastHistory)
	assert.Equal(t, "hello", gen.lastMessage)
}

func TestService_Chat_ContinuesConversation(t *testing.T) {
	gen := &mockGenerator{reply: "reply one"}
	s := createSQLiteStore(t)
	svc := New(s, gen, nil)
	defer svc.Close()

	ctx := context.Background()
	first, err := svc.Chat(ctx, "s1", "hello", "")
	require.NoError(t, err)

	gen.reply = "reply two"
	second, err := svc.Chat(ctx, "s1", "again", first.ConversationID)
	require.NoError(t, err)

	// Same conversation, prior turns unchanged and still first
	assert.Equal(t, first.ConversationID, second.ConversationID)

	conv, err := s.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	assert.Equal(t, "hello", conv.Messages[0].Text())
	assert.Equal(t, "reply one", conv.Messages[1].Text())
	assert.Equal(t, "again", conv.Messages[2].Text())
	assert.Equal(t, "reply two", conv.Messages[3].Text())

	// The second generation call received the first exchange as context
	require.Len(t, gen.lastHistory, 2)
	assert.Equal(t, "hello", gen.lastHistory[0].Text())
}

func TestService_Chat_ForeignConversationID(t *testing.T) {
	gen := &mockGenerator{reply: "hi"}
	s := createSQLiteStore(t)
	svc := New(s, gen, nil)
	defer svc.Close()

	ctx := context.Background()
	owned, err := svc.Chat(ctx, "s1", "hello", "")
	require.NoError(t, err)

	// Another session presents s1's conversation id
	foreign, err := svc.Chat(ctx, "s2", "hi there", owned.ConversationID)
	require.NoError(t, err)

	// s2 gets a fresh conversation, never s1's
	assert.NotEqual(t, owned.ConversationID, foreign.ConversationID)

	// s2's generation saw none of s1's history
	assert.Empty(t, gen.lastHistory)

	// s1's transcript is untouched
	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, owned.ConversationID, history.ConversationID)
	require.Len(t, history.History, 2)
	assert.Equal(t, "hello", history.History[0].Text())
}

func TestService_Chat_UnknownConversationID(t *testing.T) {
	gen := &mockGenerator{reply: "hi"}
	svc, _ := newTestService(t, gen)

	// A stale id degrades to a fresh conversation, not an error
	result, err := svc.Chat(context.Background(), "s1", "hello", "no-such-conversation")
	require.NoError(t, err)
	assert.NotEmpty(t, result.ConversationID)
	assert.NotEqual(t, "no-such-conversation", result.ConversationID)
}

func TestService_Chat_EmptyMessage(t *testing.T) {
	gen := &mockGenerator{reply: "hi"}
	svc, mock := newTestService(t, gen)
	ctx := context.Background()

	for _, message := range []string{"", "   ", "\n\t"} {
		_, err := svc.Chat(ctx, "s1", message, "")
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	// Rejected before any store or backend interaction
	assert.Equal(t, 0, gen.calls)
	_, err := mock.GetLatestBySession(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Chat_BlockedGeneration(t *testing.T) {
	gen := &mockGenerator{reply: "first"}
	svc, mock := newTestService(t, gen)
	ctx := context.Background()

	first, err := svc.Chat(ctx, "s1", "hello", "")
	require.NoError(t, err)

	// Backend blocks the next message
	gen.err = &gemini.BlockedError{Reason: "SAFETY"}
	_, err = svc.Chat(ctx, "s1", "something nasty", first.ConversationID)
	require.Error(t, err)

	var blocked *gemini.BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "SAFETY", blocked.Reason)

	// History gained neither a user turn nor a reply
	conv, err := mock.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestService_Chat_FailedGeneration(t *testing.T) {
	gen := &mockGenerator{err: errors.New("connection reset")}
	svc, mock := newTestService(t, gen)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "s1", "hello", "")
	require.Error(t, err)

	var blocked *gemini.BlockedError
	assert.False(t, errors.As(err, &blocked), "transport failure must not look like a block")

	// The created conversation stays empty
	conv, err := mock.GetLatestBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestService_Chat_PersistenceFailure(t *testing.T) {
	gen := &mockGenerator{reply: "a costly reply"}
	svc, mock := newTestService(t, gen)

	mock.AppendErr = errors.New("disk full")

	_, err := svc.Chat(context.Background(), "s1", "hello", "")
	require.Error(t, err)

	// Distinct outcome carrying the generated reply
	var notSaved *ReplyNotSavedError
	require.ErrorAs(t, err, &notSaved)
	assert.Equal(t, "a costly reply", notSaved.Reply)
	assert.NotEmpty(t, notSaved.ConversationID)
	assert.ErrorContains(t, notSaved, "disk full")
}

func TestService_History_EmptySession(t *testing.T) {
	gen := &mockGenerator{}
	svc, _ := newTestService(t, gen)

	result, err := svc.History(context.Background(), "fresh-session")
	require.NoError(t, err)
	assert.Empty(t, result.History)
	assert.Empty(t, result.ConversationID)
}

func TestService_History_Idempotent(t *testing.T) {
	gen := &mockGenerator{reply: "hi"}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	_, err := svc.Chat(ctx, "s1", "hello", "")
	require.NoError(t, err)

	first, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	second, err := svc.History(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_History_StoreFailure(t *testing.T) {
	gen := &mockGenerator{}
	svc, mock := newTestService(t, gen)

	mock.GetErr = errors.New("db locked")
	_, err := svc.History(context.Background(), "s1")
	assert.Error(t, err)
}

func TestService_Chat_RoundTrip(t *testing.T) {
	gen := &mockGenerator{reply: "the answer"}
	svc, _ := newTestService(t, gen)
	ctx := context.Background()

	result, err := svc.Chat(ctx, "s1", "the question", "")
	require.NoError(t, err)

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, result.ConversationID, history.ConversationID)
	require.Len(t, history.History, 2)
	assert.Equal(t, "the question", history.History[0].Text())
	assert.Equal(t, "the answer", history.History[1].Text())
}

func TestService_Chat_ConcurrentSameConversation(t *testing.T) {
	gen := &mockGenerator{reply: "ok", delay: 10 * time.Millisecond}
	svc, mock := newTestService(t, gen)
	ctx := context.Background()

	first, err := svc.Chat(ctx, "s1", "start", "")
	require.NoError(t, err)

	// Two requests race on the same conversation; the per-conversation
	// lock must serialize them so neither exchange is lost.
	var wg sync.WaitGroup
	for _, msg := range []string{"left", "right"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, err := svc.Chat(ctx, "s1", m, first.ConversationID)
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	conv, err := mock.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 6)
}

func TestService_Chat_TrimsMessage(t *testing.T) {
	gen := &mockGenerator{reply: "hi"}
	svc, mock := newTestService(t, gen)
	ctx := context.Background()

	result, err := svc.Chat(ctx, "s1", "  hello  ", "")
	require.NoError(t, err)

	conv, err := mock.GetConversation(ctx, result.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.Messages[0].Text())
	assert.Equal(t, "hello", gen.lastMessage)
}
