// handlers содержит HTTP-обработчики сервиса аутентификации.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/odyssey-auth/internal/http/errors"
	"github.com/pribylovaa/odyssey-auth/internal/models"
	"github.com/pribylovaa/odyssey-auth/internal/service"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// AuthService - операции сервиса, нужные обработчикам.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Profiles(ctx context.Context) ([]models.User, error)
}

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	svc AuthService
}

func New(svc AuthService) *Handlers {
	return &Handlers{svc: svc}
}

// writeJSON - единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict - строгий JSON-декодер: запрещаем неизвестные поля.
// Пустое тело не ошибка: недостающие поля отловит валидация сервиса.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %w", apierrors.ErrBadRequest, err)
	}

	if dec.More() {
		return apierrors.ErrBadRequest
	}

	return nil
}

func publicUsers(users []models.User) []models.PublicUser {
	out := make([]models.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}
