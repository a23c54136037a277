package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/odyssey-auth/internal/pkg/log"
)

// Pinger проверяет доступность зависимости (БД, кэш).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health обслуживает /livez и /healthz.
type Health struct {
	ready   atomic.Bool
	pingers []Pinger
}

// NewHealth создаёт Health; до SetReady(true) /healthz отвечает 503.
func NewHealth(pingers ...Pinger) *Health {
	return &Health{pingers: pingers}
}

func (h *Health) SetReady(v bool) { h.ready.Store(v) }

func (h *Health) Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Health) Healthz(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			log.From(r.Context()).Warn("readiness_ping_failed", slog.String("err", err.Error()))
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
