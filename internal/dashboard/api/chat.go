package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opensass/eldflow/internal/assistant"
	"github.com/rs/zerolog"
)

// ChatHandler handles trip conversations with the assistant.
type ChatHandler struct {
	chat   *assistant.Service
	logger zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *assistant.Service, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger.With().Str("handler", "chat").Logger(),
	}
}

// ConversationRequest opens a conversation.
type ConversationRequest struct {
	Title string `json:"title"`
}

// QueryRequest is a driver question.
type QueryRequest struct {
	Query string `json:"query"`
}

// List returns the driver's conversations on a trip.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	convs, err := h.chat.ListConversations(r.Context(), id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": orEmpty(convs),
		"count":         len(convs),
	})
}

// Create opens a conversation on a trip.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req ConversationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	conv, err := h.chat.CreateConversation(r.Context(), id.DriverID, mux.Vars(r)["id"], req.Title)
	if err != nil {
		writeStoreError(w, h.logger, err, "conversation")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

// Messages returns the messages of a conversation.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	messages, err := h.chat.Messages(r.Context(), id.DriverID, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, h.logger, err, "conversation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"messages": orEmpty(messages),
		"count":    len(messages),
	})
}

// Query asks the assistant and returns both stored messages.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	exchange, err := h.chat.Query(r.Context(), id.DriverID, mux.Vars(r)["id"], req.Query)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	case errors.Is(err, assistant.ErrEmptyAnswer):
		writeError(w, http.StatusBadGateway, "The assistant returned an empty answer")
		return
	case err != nil:
		writeStoreError(w, h.logger, err, "conversation")
		return
	}

	writeJSON(w, http.StatusOK, exchange)
}
