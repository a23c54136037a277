package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
)

// Timeout ограничивает время обработки запроса значением d.
// Более ранний deadline родителя сохраняется: context выбирает меньший.
// d <= 0 отключает ограничение.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				log.From(ctx).Warn("http_request_timeout",
					slog.String("path", r.URL.Path),
					slog.Duration("limit", d),
				)
			}
		})
	}
}
