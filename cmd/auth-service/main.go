package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/odyssey-auth/internal/cache"
	"github.com/pribylovaa/odyssey-auth/internal/config"
	httpapi "github.com/pribylovaa/odyssey-auth/internal/http"
	"github.com/pribylovaa/odyssey-auth/internal/http/handlers"
	"github.com/pribylovaa/odyssey-auth/internal/http/middleware"
	"github.com/pribylovaa/odyssey-auth/internal/service"
	"github.com/pribylovaa/odyssey-auth/internal/storage"
	"github.com/pribylovaa/odyssey-auth/internal/storage/memory"
	"github.com/pribylovaa/odyssey-auth/internal/storage/postgres"
	"github.com/pribylovaa/odyssey-auth/internal/token"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env, "db_driver", cfg.DB.Driver)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	log.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	str, err := openStorage(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer str.Close()

	issuer, err := token.New(cfg.Auth)
	if err != nil {
		log.Error("token_issuer_init_failed", slog.String("err", err.Error()))
		return err
	}

	srvc := service.New(str, issuer, cfg.Auth)

	pingers := []handlers.Pinger{str}
	if cfg.Redis.RedisURL != "" {
		rcCtx, rcCancel := context.WithTimeout(ctx, 5*time.Second)
		rc, err := cache.NewRedisCache(rcCtx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		rcCancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			return err
		}
		defer func() { _ = rc.Close() }()

		srvc.SetRefreshCache(rc)
		pingers = append(pingers, rc)
		log.Info("redis_connected")
	}
	log.Info("service_initialized")

	// Метрики: HTTP + стандартные коллекторы процесса и рантайма.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	health := handlers.NewHealth(pingers...)

	router := httpapi.NewRouter(srvc, httpapi.Options{
		Logger:         log,
		Timeout:        cfg.Timeouts.Service,
		Metrics:        middleware.NewMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Health:         health,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(ctx, srvc, log, cfg.Janitor.Period)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	health.SetReady(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		if serveErr != nil {
			log.Error("http_serve_failed", slog.String("err", serveErr.Error()))
		}
	}

	health.SetReady(false)

	// Graceful shutdown с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	} else {
		log.Info("http_stopped")
	}

	return serveErr
}

// openStorage открывает хранилище по драйверу из конфигурации
// и применяет миграции для postgres.
func openStorage(ctx context.Context, cfg config.DBConfig, log *slog.Logger) (storage.Storage, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("memory_storage_in_use")
		return memory.New(), nil
	}

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	str, err := postgres.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		return nil, err
	}
	log.Info("postgres_connected")

	if cfg.SkipMigrations {
		log.Info("migrations_skipped")
		return str, nil
	}

	if err := str.Migrate(dbCtx); err != nil {
		log.Error("postgres_migrate_failed", slog.String("err", err.Error()))
		str.Close()
		return nil, err
	}
	log.Info("postgres_migrated")

	return str, nil
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// purger - то, что умеет удалять просроченные refresh-токены.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// startRefreshJanitor запускает фоновую задачу, которая периодически удаляет
// просроченные refresh-токены. period <= 0 отключает очистку.
func startRefreshJanitor(ctx context.Context, p purger, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if ctx.Err() != nil {
					return
				}
				n, err := p.PurgeExpired(ctx)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("refresh_janitor_purged", slog.Int64("deleted", n))
				}
			}
		}
	}()
}
