package accounts

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auxillium/backend/internal/auth"
	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/internal/store"
	"github.com/auxillium/backend/pkg/utils"
)

// Handler exposes the identity endpoints.
type Handler struct {
	authSvc *auth.Service
}

// New creates the auth handler.
func New(authSvc *auth.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterRoutes mounts the public identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/anonymous", h.handleAnonymous)
}

type sessionResponse struct {
	Token   string           `json:"token"`
	Profile *account.Profile `json:"profile"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		FullName string       `json:"fullName"`
		Email    string       `json:"email"`
		Password string       `json:"password"`
		Role     account.Role `json:"role"`
		CRP      string       `json:"crp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := h.authSvc.Register(r.Context(), auth.RegisterInput{
		FullName: payload.FullName,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
		CRP:      payload.CRP,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Token: token, Profile: profile})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string       `json:"email"`
		Password string       `json:"password"`
		Role     account.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, token, err := h.authSvc.Login(r.Context(), payload.Email, payload.Password, payload.Role)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	case errors.Is(err, auth.ErrRoleMismatch):
		utils.RespondError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, sessionResponse{Token: token, Profile: profile})
}

func (h *Handler) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	profile, token, err := h.authSvc.Anonymous(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not create anonymous session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, sessionResponse{Token: token, Profile: profile})
}
