package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
	now    func() time.Time

	put   *redis.Script
	touch *redis.Script
	purge *redis.Script
}

func newSessionStore(client *redis.Client) *sessionStore {
	return &sessionStore{
		client: client,
		now:    time.Now,
		put:    redis.NewScript(putSessionScript),
		touch:  redis.NewScript(touchSessionScript),
		purge:  redis.NewScript(purgeExpiredScript),
	}
}

// Put creates or replaces a session. The hash expires with the session.
func (s *sessionStore) Put(ctx context.Context, session storage.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())

	keys := []string{sessionKey(session.ID), sessionExpiryKey}
	args := []interface{}{
		session.ID,
		session.DriverID,
		session.Email,
		session.CreatedAt.Format(time.RFC3339Nano),
		session.LastActivity.Format(time.RFC3339Nano),
		session.ExpiresAt.Format(time.RFC3339Nano),
		session.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
	}

	return s.put.Run(ctx, s.client, keys, args...).Err()
}

// Get retrieves a session by ID
func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, err
	}
	session, err := parseSession(data)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

// Touch records activity on a live session
func (s *sessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	n, err := s.touch.Run(ctx, s.client, []string{sessionKey(id)}, at.Format(time.RFC3339Nano)).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a session by ID
func (s *sessionStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, sessionExpiryKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpired drops sessions whose expiry is before now. Redis TTLs
// already evict the hashes; this keeps the expiry index in step.
func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return s.purge.Run(ctx, s.client, []string{sessionExpiryKey}, sessionKeyPrefix, now.UnixMilli()).Int()
}

// Count returns the number of sessions that have not yet expired
func (s *sessionStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCount(ctx, sessionExpiryKey, "("+strconv.FormatInt(s.now().UnixMilli(), 10), "+inf").Result()
	return int(n), err
}
