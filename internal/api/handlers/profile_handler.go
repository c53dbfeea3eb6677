package handlers

import (
	"encoding/json"
	"net/http"

	middleware "github.com/rutzsco/custom-chat-copilot-go/internal/api/middlewares"
	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
	"github.com/rutzsco/custom-chat-copilot-go/internal/services"
)

type ProfileHandler struct {
	chat *services.ChatService
}

func NewProfileHandler(chat *services.ChatService) *ProfileHandler {
	return &ProfileHandler{chat: chat}
}

// profileView is the caller-facing shape of a profile; endpoint and
// index settings stay server-side.
type profileView struct {
	Name            string          `json:"name"`
	Approach        models.Approach `json:"approach"`
	SampleQuestions []string        `json:"sample_questions,omitempty"`
}

// List returns the profiles the caller may use.
// GET /api/profiles
func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	defs := h.chat.Profiles(user)
	views := make([]profileView, 0, len(defs))
	for _, d := range defs {
		views = append(views, profileView{
			Name:            d.Name,
			Approach:        d.Approach,
			SampleQuestions: d.SampleQuestions,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

// Healthz reports process liveness.
// GET /api/healthz
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
