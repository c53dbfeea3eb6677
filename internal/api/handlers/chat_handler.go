package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	middleware "github.com/rutzsco/custom-chat-copilot-go/internal/api/middlewares"
	"github.com/rutzsco/custom-chat-copilot-go/internal/core/orchestration"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/profile"
	"github.com/rutzsco/custom-chat-copilot-go/internal/services"
)

type ChatHandler struct {
	chat   *services.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *services.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

// Chat answers one turn in a single shot.
// POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.chat.Reply(r.Context(), user, &req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ChatStream answers one turn as newline-delimited JSON chunks. Each line
// is a ChatChunkResponse; the last line carries the final result. A body
// that ends without a final result means the stream failed or was
// cancelled.
// POST /api/chat/stream
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	chunks, err := h.chat.ReplyStream(r.Context(), user, &req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	enc := json.NewEncoder(w)
	for chunk := range chunks {
		if err := enc.Encode(chunk); err != nil {
			h.logger.Error("stream write failed", "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Rate attaches a rating to a previously answered turn.
// POST /api/chat/rating
func (h *ChatHandler) Rate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var rating models.ChatRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&rating); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.chat.Rate(r.Context(), user, &rating); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyHistory), errors.Is(err, models.ErrMissingChatID), errors.Is(err, orchestration.ErrUnknownApproach):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, profile.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, profile.ErrNotAuthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.logger.Error("chat failed", "error", err)
		http.Error(w, "chat failed", http.StatusInternalServerError)
	}
}
