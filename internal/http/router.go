// http собирает HTTP-роутер сервиса аутентификации на chi.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/odyssey-auth/internal/http/handlers"
	"github.com/pribylovaa/odyssey-auth/internal/http/middleware"
)

// Service - всё, что роутеру нужно от сервиса: обработчики и проверка токена.
type Service interface {
	handlers.AuthService
	middleware.TokenAuthenticator
}

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// Metrics - необязательные HTTP-метрики; MetricsHandler отдаёт /metrics.
	Metrics        *middleware.Metrics
	MetricsHandler http.Handler
	// Health - необязательные пробы /livez и /healthz.
	Health *handlers.Health
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Middleware())
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Служебные маршруты.
	if opts.Health != nil {
		root.Get("/livez", opts.Health.Livez)
		root.Get("/healthz", opts.Health.Healthz)
	}
	if opts.MetricsHandler != nil {
		root.Handle("/metrics", opts.MetricsHandler)
	}

	registerRoutes(root, handlers.New(svc), svc)

	return root
}

// registerRoutes - единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, auth middleware.TokenAuthenticator) {
	r.Get("/", h.Home)
	r.Get("/profiles", h.Profiles)

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Post("/logout", h.Logout)

	// Защищённые маршруты.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(auth))
		r.Get("/private", h.Private)
		r.Get("/me", h.Me)
	})
}
