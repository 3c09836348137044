// Package assistant answers driver questions about trips and keeps the chat
// history.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/opensass/eldflow/internal/storage"
	"github.com/rs/zerolog"
)

var (
	// ErrEmptyQuery is returned when the question is blank.
	ErrEmptyQuery = errors.New("assistant: query is empty")

	// ErrEmptyAnswer is returned when the model produced no text.
	ErrEmptyAnswer = errors.New("assistant: model returned an empty answer")
)

// Generator produces a completion for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Exchange is a stored question and its answer.
type Exchange struct {
	Question storage.Message `json:"question"`
	Answer   storage.Message `json:"answer"`
}

// Service runs trip conversations. Conversation lists are cached per
// driver and trip.
type Service struct {
	store  storage.Store
	model  Generator
	cache  *expirable.LRU[string, []storage.Conversation]
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a service that asks model for answers.
func NewService(store storage.Store, model Generator, cacheSize int, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		model:  model,
		cache:  expirable.NewLRU[string, []storage.Conversation](cacheSize, nil, cacheTTL),
		logger: logger.With().Str("component", "assistant").Logger(),
		now:    time.Now,
	}
}

func cacheKey(driverID, tripID string) string {
	return driverID + "/" + tripID
}

// ownedTrip loads a trip and hides trips of other drivers.
func (s *Service) ownedTrip(ctx context.Context, driverID, tripID string) (*storage.Trip, error) {
	trip, err := s.store.Trips().Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID != driverID {
		return nil, storage.ErrNotFound
	}
	return trip, nil
}

func (s *Service) ownedConversation(ctx context.Context, driverID, conversationID string) (*storage.Conversation, error) {
	conv, err := s.store.Conversations().Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.DriverID != driverID {
		return nil, storage.ErrNotFound
	}
	return conv, nil
}

// CreateConversation opens a new conversation on a trip.
func (s *Service) CreateConversation(ctx context.Context, driverID, tripID, title string) (*storage.Conversation, error) {
	trip, err := s.ownedTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = trip.CurrentLocation
	}

	now := s.now().UTC()
	conv := storage.Conversation{
		ID:        uuid.NewString(),
		DriverID:  driverID,
		TripID:    tripID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Conversations().Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.cache.Remove(cacheKey(driverID, tripID))
	return &conv, nil
}

// ListConversations returns a driver's conversations on a trip.
func (s *Service) ListConversations(ctx context.Context, driverID, tripID string) ([]storage.Conversation, error) {
	key := cacheKey(driverID, tripID)
	if cached, ok := s.cache.Get(key); ok {
		return slices.Clone(cached), nil
	}
	if _, err := s.ownedTrip(ctx, driverID, tripID); err != nil {
		return nil, err
	}

	convs, err := s.store.Conversations().ListByTrip(ctx, driverID, tripID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	s.cache.Add(key, slices.Clone(convs))
	return convs, nil
}

// ForgetTrip drops the cached conversation list of a trip.
func (s *Service) ForgetTrip(driverID, tripID string) {
	s.cache.Remove(cacheKey(driverID, tripID))
}

// Messages returns the messages of a conversation, oldest first.
func (s *Service) Messages(ctx context.Context, driverID, conversationID string) ([]storage.Message, error) {
	if _, err := s.ownedConversation(ctx, driverID, conversationID); err != nil {
		return nil, err
	}
	return s.store.Conversations().ListMessages(ctx, conversationID)
}

// Query stores the driver's question, asks the model and stores the answer.
// The question is kept even if the model fails.
func (s *Service) Query(ctx context.Context, driverID, conversationID, query string) (*Exchange, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	conv, err := s.ownedConversation(ctx, driverID, conversationID)
	if err != nil {
		return nil, err
	}
	trip, err := s.ownedTrip(ctx, driverID, conv.TripID)
	if err != nil {
		return nil, err
	}

	question := s.message(conversationID, storage.SenderDriver, query)
	if err := s.store.Conversations().AddMessage(ctx, question); err != nil {
		return nil, fmt.Errorf("store question: %w", err)
	}

	start := s.now()
	text, err := s.model.GenerateContent(ctx, BuildPrompt(trip.CurrentLocation, query))
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation", conversationID).Msg("Assistant request failed")
		return nil, err
	}
	answerText := CleanResponse(text)
	if answerText == "" {
		return nil, ErrEmptyAnswer
	}

	answer := s.message(conversationID, storage.SenderGemini, answerText)
	if err := s.store.Conversations().AddMessage(ctx, answer); err != nil {
		return nil, fmt.Errorf("store answer: %w", err)
	}

	s.logger.Debug().
		Str("conversation", conversationID).
		Dur("elapsed", s.now().Sub(start)).
		Int("answer_bytes", len(answerText)).
		Msg("Assistant answered")

	return &Exchange{Question: question, Answer: answer}, nil
}

func (s *Service) message(conversationID, sender, content string) storage.Message {
	now := s.now().UTC()
	return storage.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Timestamp:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
