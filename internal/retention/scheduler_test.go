package retention

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensass/eldflow/internal/clock"
	"github.com/opensass/eldflow/internal/config"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/opensass/eldflow/internal/storage/bolt"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "eldflow.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNextRun(t *testing.T) {
	s, err := NewScheduler(openStore(t), config.RetentionConfig{RunTime: "03:00"}, nil, zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before run time",
			now:  time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC),
			want: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at run time",
			now:  time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 2, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "after run time",
			now:  time.Date(2024, 12, 31, 22, 0, 0, 0, time.UTC),
			want: time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.NextRun(tt.now))
		})
	}
}

func TestNewSchedulerRejectsBadConfig(t *testing.T) {
	store := openStore(t)

	_, err := NewScheduler(store, config.RetentionConfig{RunTime: "3am"}, nil, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewScheduler(store, config.RetentionConfig{RunTime: "03:00", MessageDays: -1}, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Sessions().Put(ctx, storage.Session{ID: "old", DriverID: "d", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.Sessions().Put(ctx, storage.Session{ID: "new", DriverID: "d", ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, store.Conversations().Create(ctx, storage.Conversation{ID: "c1", DriverID: "d", TripID: "t"}))
	require.NoError(t, store.Conversations().AddMessage(ctx, storage.Message{ID: "m-old", ConversationID: "c1", Sender: storage.SenderDriver, Timestamp: now.AddDate(0, 0, -40)}))
	require.NoError(t, store.Conversations().AddMessage(ctx, storage.Message{ID: "m-new", ConversationID: "c1", Sender: storage.SenderGemini, Timestamp: now.AddDate(0, 0, -1)}))

	s, err := NewScheduler(store, config.RetentionConfig{RunTime: "03:00", MessageDays: 30}, clock.NewFixed(now), zerolog.Nop())
	require.NoError(t, err)

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Sessions: 1, Messages: 1}, res)

	messages, err := store.Conversations().ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m-new", messages[0].ID)
}

func TestRunOnceKeepsMessagesWhenDisabled(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Conversations().Create(ctx, storage.Conversation{ID: "c1", DriverID: "d", TripID: "t"}))
	require.NoError(t, store.Conversations().AddMessage(ctx, storage.Message{ID: "m", ConversationID: "c1", Timestamp: now.AddDate(-1, 0, 0)}))

	s, err := NewScheduler(store, config.RetentionConfig{RunTime: "03:00"}, clock.NewFixed(now), zerolog.Nop())
	require.NoError(t, err)

	res, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Messages)
}

func TestStartStop(t *testing.T) {
	s, err := NewScheduler(openStore(t), config.RetentionConfig{RunTime: "03:00"}, nil, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	s.Stop()
}
