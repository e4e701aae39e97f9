package worklist

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auxillium/backend/internal/middleware"
	"github.com/auxillium/backend/internal/service/queue"
	"github.com/auxillium/backend/pkg/utils"
)

// Handler serves the role-specific queue and history views.
type Handler struct {
	queueSvc *queue.Service
}

// New creates the worklist handler.
func New(queueSvc *queue.Service) *Handler {
	return &Handler{queueSvc: queueSvc}
}

// RegisterRoutes mounts the read-only projection routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/queue", h.handleQueue)
	r.Get("/history", h.handleHistory)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	chats, err := h.queueSvc.Open(r.Context(), sess)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load queue")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chats)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	chats, err := h.queueSvc.Completed(r.Context(), sess)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	utils.RespondJSON(w, http.StatusOK, chats)
}
