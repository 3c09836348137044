package bolt

import (
	"context"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Put(ctx context.Context, session storage.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return putValue(tx, bucketSessions, session.ID, session)
	})
}

// Get returns a live session. Expired sessions are reported as missing.
func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	session, err := getBucketValue[storage.Session](ctx, s.db, bucketSessions, id)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

func (s *sessionStore) Touch(ctx context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketSessions))
		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrNotFound
		}
		var session storage.Session
		if err := unmarshal(data, &session); err != nil {
			return err
		}
		session.LastActivity = at
		return putValue(tx, bucketSessions, id, session)
	})
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketSessions))
		if bucket.Get([]byte(id)) == nil {
			return storage.ErrNotFound
		}
		return bucket.Delete([]byte(id))
	})
}

func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketSessions))
		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var session storage.Session
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			if session.IsExpired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (s *sessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketSessions)).Stats().KeyN
		return nil
	})
	return count, err
}
