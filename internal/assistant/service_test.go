package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func setupService(t *testing.T, gen Generator) (*Service, storage.Store) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "eldflow.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Trips().Create(ctx, storage.Trip{ID: "trip-1", DriverID: "driver-a", CurrentLocation: "Amarillo, TX"}))

	return NewService(store, gen, 16, time.Hour, zerolog.Nop()), store
}

func TestServiceQuery(t *testing.T) {
	gen := &fakeGenerator{reply: "```html\n<p>Take I-40 east.</p>\n```"}
	svc, _ := setupService(t, gen)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "driver-a", "trip-1", "")
	require.NoError(t, err)
	assert.Equal(t, "Amarillo, TX", conv.Title)

	ex, err := svc.Query(ctx, "driver-a", conv.ID, "  Which way to Oklahoma City?  ")
	require.NoError(t, err)
	assert.Equal(t, storage.SenderDriver, ex.Question.Sender)
	assert.Equal(t, "Which way to Oklahoma City?", ex.Question.Content)
	assert.Equal(t, storage.SenderGemini, ex.Answer.Sender)
	assert.Equal(t, "<p>Take I-40 east.</p>", ex.Answer.Content)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Amarillo, TX")

	messages, err := svc.Messages(ctx, "driver-a", conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, storage.SenderDriver, messages[0].Sender)
	assert.Equal(t, storage.SenderGemini, messages[1].Sender)
}

func TestServiceQueryKeepsQuestionOnFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	svc, _ := setupService(t, gen)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "driver-a", "trip-1", "Fuel")
	require.NoError(t, err)

	_, err = svc.Query(ctx, "driver-a", conv.ID, "Where is diesel cheapest?")
	require.Error(t, err)

	messages, err := svc.Messages(ctx, "driver-a", conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, storage.SenderDriver, messages[0].Sender)
}

func TestServiceQueryValidation(t *testing.T) {
	gen := &fakeGenerator{reply: "```html```"}
	svc, _ := setupService(t, gen)
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx, "driver-a", "trip-1", "Chat")
	require.NoError(t, err)

	_, err = svc.Query(ctx, "driver-a", conv.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = svc.Query(ctx, "driver-a", conv.ID, "anything")
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	_, err = svc.Query(ctx, "driver-b", conv.ID, "anything")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestServiceOwnership(t *testing.T) {
	svc, _ := setupService(t, &fakeGenerator{reply: "ok"})
	ctx := context.Background()

	_, err := svc.CreateConversation(ctx, "driver-b", "trip-1", "mine now")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.ListConversations(ctx, "driver-b", "trip-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestServiceListConversationsCache(t *testing.T) {
	svc, _ := setupService(t, &fakeGenerator{reply: "ok"})
	ctx := context.Background()

	convs, err := svc.ListConversations(ctx, "driver-a", "trip-1")
	require.NoError(t, err)
	assert.Empty(t, convs)

	_, err = svc.CreateConversation(ctx, "driver-a", "trip-1", "First")
	require.NoError(t, err)

	convs, err = svc.ListConversations(ctx, "driver-a", "trip-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "First", convs[0].Title)
}

func TestServiceConversationCache(t *testing.T) {
	svc, store := setupService(t, &fakeGenerator{reply: "ok"})
	ctx := context.Background()

	_, err := svc.CreateConversation(ctx, "driver-a", "trip-1", "Route")
	require.NoError(t, err)

	convs, err := svc.ListConversations(ctx, "driver-a", "trip-1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	convs[0].Title = "changed by caller"

	cached, err := svc.ListConversations(ctx, "driver-a", "trip-1")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "Route", cached[0].Title)

	require.NoError(t, store.Trips().Delete(ctx, "trip-1"))
	svc.ForgetTrip("driver-a", "trip-1")

	_, err = svc.ListConversations(ctx, "driver-a", "trip-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
