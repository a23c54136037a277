package handlers

import (
	"fmt"
	"net/http"

	apierrors "github.com/pribylovaa/odyssey-auth/internal/http/errors"
	"github.com/pribylovaa/odyssey-auth/internal/http/middleware"
)

// HomeMessage - приветствие на GET /.
const HomeMessage = "🦅 I have everything that I need in order to succeed!"

// Home обрабатывает GET /: текстовое приветствие.
func (h *Handlers) Home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HomeMessage))
}

// Profiles обрабатывает GET /profiles: все пользователи в порядке регистрации.
func (h *Handlers) Profiles(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Profiles(r.Context())
	if err != nil {
		apierrors.WriteError(w, r, fmt.Errorf("%w: %w", apierrors.ErrProfiles, err))
		return
	}

	writeJSON(w, http.StatusOK, profilesResponse{
		Message:  "Profiles list:",
		Profiles: publicUsers(users),
	})
}

// Private - защищённый эндпоинт; требует middleware.Authenticate.
func (h *Handlers) Private(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrMissingBearer)
		return
	}

	user, err := h.svc.UserByID(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Message: "Access granted, welcome " + user.Username,
	})
}

// Me возвращает текущего пользователя по access-токену.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrMissingBearer)
		return
	}

	user, err := h.svc.UserByID(r.Context(), id.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		Message: "Current user",
		User:    user.Public(),
	})
}
