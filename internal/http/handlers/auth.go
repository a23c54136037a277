package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/pribylovaa/odyssey-auth/internal/http/errors"
	"github.com/pribylovaa/odyssey-auth/internal/service"
)

// Register обрабатывает POST /register: 201 и публичный профиль.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     in.Name,
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		Message: "User created successfully",
		User:    user.Public(),
	})
}

// Login обрабатывает POST /login: пользователь и пара токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "Login successful!",
		User:         res.User.Public(),
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

// Refresh обрабатывает POST /refresh: новый access-токен без ротации refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	rt, err := decodeRefreshToken(w, r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	res, err := h.svc.Refresh(r.Context(), rt)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Message: "New access token generated",
		Token:   res.AccessToken,
	})
}

// Logout обрабатывает POST /logout: отзыв refresh-токена.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	rt, err := decodeRefreshToken(w, r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.svc.Logout(r.Context(), rt); err != nil {
		if errors.Is(err, service.ErrUnknownToken) {
			err = fmt.Errorf("%w: %w", apierrors.ErrLogout, err)
		}
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Logout successful"})
}

// decodeRefreshToken принимает {"refreshToken":"..."} и, для старых клиентов,
// голую JSON-строку с токеном.
func decodeRefreshToken(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %w", apierrors.ErrBadRequest, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: %w", apierrors.ErrBadRequest, err)
		}
		return s, nil
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	var in refreshRequest
	if err := decodeStrict(w, r, &in); err != nil {
		return "", err
	}

	return in.RefreshToken, nil
}
