// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервиса (sentinel из internal/service) или
// локальную ошибку транспорта, на выход даёт:
//   - HTTP-статус;
//   - короткий стабильный code для машинной обработки;
//   - безопасное message без утечки внутренних деталей.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
	"github.com/pribylovaa/odyssey-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Ошибки транспорта, которые не порождаются сервисом.
var (
	// ErrBadRequest - тело запроса не разобрано как JSON ожидаемой формы.
	ErrBadRequest = errors.New("invalid request body")
	// ErrMissingBearer - нет заголовка Authorization: Bearer <token>.
	ErrMissingBearer = errors.New("access token is required")
	// ErrForbidden - access-токен отклонён (подпись, срок, тип).
	ErrForbidden = errors.New("invalid or expired token")
	// ErrProfiles - не удалось получить список профилей.
	ErrProfiles = errors.New("profiles unavailable")
	// ErrLogout - выход не выполнен: токен не найден в хранилище.
	// Для /logout это 500, а не 403 как у /refresh.
	ErrLogout = errors.New("logout failed")
)

// APIError - единый формат ошибки для клиента.
// Поле message совпадает с тем, что читает клиент (data.message).
type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
// err == nil считается ошибкой вызова и даёт 500/internal.
func ToHTTP(err error) (int, APIError) {
	status, code, msg := classify(err)
	return status, APIError{Code: code, Message: msg}
}

// WriteError пишет статус и тело, добавляет request_id из заголовка.
// Ошибки 5xx логируются целиком: клиент видит только общий текст.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	if status >= http.StatusInternalServerError || errors.Is(err, ErrProfiles) {
		msg := "<nil>"
		if err != nil {
			msg = err.Error()
		}
		log.From(r.Context()).Error("request_failed",
			slog.Int("status", status),
			slog.String("path", r.URL.Path),
			slog.String("err", msg),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "Internal server error"

	// Транспорт.
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "Invalid request body"
	case errors.Is(err, ErrMissingBearer):
		return http.StatusUnauthorized, "unauthenticated", "Access token is required"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden", "Invalid or expired token"
	case errors.Is(err, ErrProfiles):
		return http.StatusBadRequest, "profiles_failed", "Could not load profiles"
	case errors.Is(err, ErrLogout):
		return http.StatusInternalServerError, "logout_failed", "Logout failed"

	// Валидация.
	case errors.Is(err, service.ErrMissingField):
		return http.StatusBadRequest, "missing_field", "All fields are required!"
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_email", "Invalid email format"
	case errors.Is(err, service.ErrMissingToken):
		return http.StatusBadRequest, "missing_token", "Refresh token is required"

	// Конфликт.
	case errors.Is(err, service.ErrDuplicateIdentity):
		return http.StatusConflict, "already_exists", "Email or username already in use"

	// Аутентификация.
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusBadRequest, "invalid_credentials", "Invalid email or password"
	case errors.Is(err, service.ErrUnknownToken), errors.Is(err, service.ErrInvalidToken):
		return http.StatusForbidden, "invalid_token", "Invalid refresh token"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusForbidden, "token_expired", "Refresh token expired"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "Access token is required"

	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "User not found"

	// Контекст.
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "Request canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "Request timed out"

	default:
		return http.StatusInternalServerError, "internal", "Internal server error"
	}
}
