package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	apierrors "github.com/pribylovaa/odyssey-auth/internal/http/errors"
	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
	"github.com/pribylovaa/odyssey-auth/internal/pkg/redact"
	"github.com/pribylovaa/odyssey-auth/internal/token"
)

// TokenAuthenticator проверяет access-токен.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*token.Claims, error)
}

// Identity - личность, подтверждённая access-токеном.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

type identityKey struct{}

// IdentityFrom достаёт Identity, положенную Authenticate.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// WithIdentity кладёт Identity в контекст.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Authenticate требует заголовок Authorization: Bearer <token>.
// Нет заголовка или он не Bearer: 401. Токен отклонён: 403.
// Повторных попыток нет.
func Authenticate(auth TokenAuthenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := bearerToken(header)
			if !ok {
				if header != "" {
					log.From(r.Context()).Debug("bearer_malformed",
						slog.String("authorization", redact.Bearer(header)),
					)
				}
				apierrors.WriteError(w, r, apierrors.ErrMissingBearer)
				return
			}

			claims, err := auth.Authenticate(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, fmt.Errorf("%w: %w", apierrors.ErrForbidden, err))
				return
			}

			uid, err := claims.UID()
			if err != nil {
				apierrors.WriteError(w, r, apierrors.ErrForbidden)
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: uid, Email: claims.Email})
			ctx = log.With(ctx, "user_id", uid.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	tok := strings.TrimSpace(rest)
	return tok, tok != ""
}
