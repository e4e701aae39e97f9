package intake

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auxillium/backend/internal/analysis/emotion"
	"github.com/auxillium/backend/pkg/utils"
)

// Handler serves the intake helpers used by the emotion picker.
type Handler struct{}

// New creates the intake handler.
func New() *Handler { return &Handler{} }

// RegisterRoutes mounts the intake routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/intake/emotions", h.handleEmotions)
	r.Post("/intake/suggest", h.handleSuggest)
}

func (h *Handler) handleEmotions(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, emotion.Labels())
}

func (h *Handler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	utils.RespondJSON(w, http.StatusOK, emotion.Suggest(payload.Text))
}
