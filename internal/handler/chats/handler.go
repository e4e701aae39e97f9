package chats

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auxillium/backend/internal/middleware"
	"github.com/auxillium/backend/internal/model/chat"
	"github.com/auxillium/backend/internal/service/lifecycle"
	"github.com/auxillium/backend/internal/store"
	"github.com/auxillium/backend/pkg/utils"
)

// Handler exposes the chat lifecycle over HTTP.
type Handler struct {
	controller *lifecycle.Controller
}

// New creates the chats handler.
func New(controller *lifecycle.Controller) *Handler {
	return &Handler{controller: controller}
}

// RegisterRoutes mounts the chat-scoped routes. Every route runs behind
// the session middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chats", h.handleCreate)
	r.Get("/chats/{chatID}", h.handleGet)
	r.Get("/chats/{chatID}/messages", h.handleListMessages)
	r.Post("/chats/{chatID}/messages", h.handleSendMessage)
	r.Post("/chats/{chatID}/accept", h.handleAccept)
	r.Post("/chats/{chatID}/end", h.handleEnd)
	r.Post("/chats/{chatID}/feedback", h.handleFeedback)
	r.Post("/chats/{chatID}/notes", h.handleSaveNote)
	r.Get("/chats/{chatID}/notes", h.handleGetNote)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var payload struct {
		InitialEmotion string `json:"initialEmotion"`
		InitialMessage string `json:"initialMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.controller.CreateChat(r.Context(), sess, payload.InitialEmotion, payload.InitialMessage)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	found, err := h.controller.GetChat(r.Context(), sess, chi.URLParam(r, "chatID"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, found)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	msgs, err := h.controller.Messages(r.Context(), sess, chi.URLParam(r, "chatID"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, msgs)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.controller.SendMessage(r.Context(), sess, chi.URLParam(r, "chatID"), payload.Content)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	// The assistant reply, if any, arrives later through the event
	// stream; the send is done once the message is stored.
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	updated, err := h.controller.AcceptChat(r.Context(), sess, chi.URLParam(r, "chatID"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	updated, err := h.controller.EndChat(r.Context(), sess, chi.URLParam(r, "chatID"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var payload struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fb, err := h.controller.SubmitFeedback(r.Context(), sess, chi.URLParam(r, "chatID"), payload.Rating, payload.Comment)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, fb)
}

func (h *Handler) handleSaveNote(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	var payload struct {
		Summary         string `json:"summary"`
		EmotionalState  string `json:"emotionalState"`
		Recommendations string `json:"recommendations"`
		FollowUpNeeded  bool   `json:"followUpNeeded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	note, err := h.controller.SaveNote(r.Context(), sess, chi.URLParam(r, "chatID"), chat.Note{
		Summary:         payload.Summary,
		EmotionalState:  payload.EmotionalState,
		Recommendations: payload.Recommendations,
		FollowUpNeeded:  payload.FollowUpNeeded,
	})
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, note)
}

func (h *Handler) handleGetNote(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing session")
		return
	}

	note, err := h.controller.Note(r.Context(), sess, chi.URLParam(r, "chatID"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, note)
}

// respondLifecycleError maps guard failures to client statuses: wrong
// party is a 403, a lost race or closed chat is a 409, bad input a 400.
func respondLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrChatNotFound), errors.Is(err, store.ErrNoteNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, lifecycle.ErrWrongRole), errors.Is(err, lifecycle.ErrNotParticipant):
		utils.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrAlreadyAccepted),
		errors.Is(err, lifecycle.ErrChatClosed),
		errors.Is(err, lifecycle.ErrChatOpen),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrNoteExists),
		errors.Is(err, store.ErrFeedbackExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrEmptyContent), errors.Is(err, lifecycle.ErrInvalidRating):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "operation failed")
	}
}
