package bolt

import (
	"context"
	"time"

	"github.com/opensass/eldflow/internal/storage"
	"go.etcd.io/bbolt"
)

type conversationStore struct {
	db *bbolt.DB
}

func (s *conversationStore) Create(ctx context.Context, conversation storage.Conversation) error {
	stamp(&conversation.CreatedAt, &conversation.UpdatedAt)
	return putIndexed(ctx, s.db, bucketConversations, conversation.ID, conversation,
		indexTripConversations, conversation.TripID, conversation.CreatedAt)
}

func (s *conversationStore) Get(ctx context.Context, id string) (*storage.Conversation, error) {
	return getBucketValue[storage.Conversation](ctx, s.db, bucketConversations, id)
}

func (s *conversationStore) ListByTrip(ctx context.Context, driverID, tripID string) ([]storage.Conversation, error) {
	all, err := listIndexed[storage.Conversation](ctx, s.db, bucketConversations, indexTripConversations, tripID)
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, c := range all {
		if c.DriverID == driverID {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *conversationStore) AddMessage(ctx context.Context, message storage.Message) error {
	stamp(&message.CreatedAt, &message.UpdatedAt)
	if message.Timestamp.IsZero() {
		message.Timestamp = message.CreatedAt
	}
	return putIndexed(ctx, s.db, bucketMessages, message.ID, message,
		indexConversationMsgs, message.ConversationID, message.Timestamp)
}

func (s *conversationStore) ListMessages(ctx context.Context, conversationID string) ([]storage.Message, error) {
	return listIndexed[storage.Message](ctx, s.db, bucketMessages, indexConversationMsgs, conversationID)
}

// DeleteMessagesBefore removes messages older than cutoff and their index entries.
func (s *conversationStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketMessages))
		if bucket == nil {
			return nil
		}
		var expired []storage.Message
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var msg storage.Message
			if err := unmarshal(v, &msg); err != nil {
				return err
			}
			if msg.Timestamp.Before(cutoff) {
				expired = append(expired, msg)
			}
		}
		for _, msg := range expired {
			if err := bucket.Delete([]byte(msg.ID)); err != nil {
				return err
			}
			if idx := indexBucket(tx, indexConversationMsgs, normalizeIndexKey(msg.ConversationID)); idx != nil {
				if err := idx.Delete(orderKey(msg.Timestamp, msg.ID)); err != nil {
					return err
				}
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
