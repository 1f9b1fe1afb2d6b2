package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starboard/internal/apperr"
	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/events"
	"github.com/dukerupert/starboard/internal/model"
	"github.com/dukerupert/starboard/internal/store"
)

type MessageHandler struct {
	messages *store.MessageStore
	clock    clock.Clock
	logger   *slog.Logger
}

func NewMessageHandler(ms *store.MessageStore, clk clock.Clock, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messages: ms, clock: clk, logger: logger}
}

type messageRequest struct {
	Text     string  `json:"text"`
	AuthorID *string `json:"author_id"`
	Pinned   bool    `json:"pinned"`
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, h.logger, "invalid message", apperr.Invalid("text", "is required"))
		return
	}

	msg, err := h.messages.Create(r.Context(), req.Text, req.AuthorID, req.Pinned, h.clock.Now())
	if err != nil {
		writeError(w, h.logger, "failed to create message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.List(r.Context())
	if err != nil {
		writeError(w, h.logger, "failed to list messages", err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	existing, err := h.messages.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to get message", err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, "message not found", apperr.NotFound(events.CollectionMessages, id))
		return
	}

	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		writeError(w, h.logger, "invalid message", apperr.Invalid("text", "is required"))
		return
	}

	msg, err := h.messages.Update(r.Context(), id, req.Text, req.Pinned, h.clock.Now())
	if err != nil {
		writeError(w, h.logger, "failed to update message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	existing, err := h.messages.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, "failed to get message", err)
		return
	}
	if existing == nil {
		writeError(w, h.logger, "message not found", apperr.NotFound(events.CollectionMessages, id))
		return
	}
	if err := h.messages.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "failed to delete message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
