package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-community-board/internal/config"
	boardhttp "github.com/pribylovaa/go-community-board/internal/http"
	"github.com/pribylovaa/go-community-board/internal/metrics"
	"github.com/pribylovaa/go-community-board/internal/realtime"
	"github.com/pribylovaa/go-community-board/internal/service"
	"github.com/pribylovaa/go-community-board/internal/storage"
	"github.com/pribylovaa/go-community-board/internal/storage/postgres"
	"github.com/pribylovaa/go-community-board/internal/storage/redis"
	"github.com/pribylovaa/go-community-board/internal/token"
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
	log.Info("starting board-service", "env", cfg.Env)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	pg, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer pg.Close()
	log.Info("postgres_connected")

	if !cfg.DB.SkipMigrations {
		migCtx, migCancel := context.WithTimeout(rootCtx, 30*time.Second)
		err := pg.Migrate(migCtx)
		migCancel()
		if err != nil {
			log.Error("postgres_migrate_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		log.Info("postgres_migrated")
	}

	// Хранилище refresh-токенов.
	var (
		tokens storage.RefreshTokenStorage = pg
		rdb    *redis.Storage
	)
	if cfg.Storage.RefreshBackend == config.RefreshBackendRedis {
		rctx, rcancel := context.WithTimeout(rootCtx, 10*time.Second)
		rdb, err = redis.New(rctx, cfg.Redis.RedisURL, cfg.Redis.Prefix)
		rcancel()
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Warn("redis_close_failed", slog.String("err", cerr.Error()))
			}
		}()
		tokens = rdb
		log.Info("redis_connected")
	}

	// Ключ подписи и кодек.
	key, err := token.NewKey(cfg.Auth.JWTSecret)
	if err != nil {
		log.Error("jwt_key_invalid", slog.String("err", err.Error()))
		os.Exit(1)
	}
	codec := token.New(key, token.WithIssuer(cfg.Auth.Issuer))

	m := metrics.New(prometheus.DefaultRegisterer)

	// Сервис.
	svc := service.New(pg, tokens, codec, cfg.Auth)
	svc.SetMetrics(m)
	log.Info("service_initialized",
		slog.String("refresh_backend", cfg.Storage.RefreshBackend),
		slog.Bool("rotate_refresh", cfg.Auth.RotateRefreshOnReissue),
	)

	// STOMP-over-WebSocket.
	gate := realtime.NewHandshakeGate(svc, realtime.Policy(cfg.WS.AnonymousPolicy), m)
	gateway := realtime.NewGateway(gate, realtime.NewHub(), m, realtime.Options{
		AllowedOrigins: cfg.WS.AllowedOrigins,
		SendQueue:      cfg.WS.SendQueue,
		WriteTimeout:   cfg.WS.WriteTimeout,
		Heartbeat:      cfg.WS.Heartbeat,
	})

	var ready int32 // 0 — not ready; 1 — ready

	livez := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	healthz := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&ready) != 1 {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pg.Ping(ctx); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := boardhttp.NewRouter(svc, boardhttp.Options{
		Logger:     log,
		Timeout:    cfg.Timeouts.Service,
		BasePath:   cfg.HTTP.BasePath,
		Auth:       cfg.Auth,
		Authn:      svc,
		Metrics:    m,
		WSEndpoint: cfg.WS.Endpoint,
		Socket:     gateway,
		Extra: map[string]http.Handler{
			"/livez":   livez,
			"/healthz": healthz,
			"/metrics": promhttp.Handler(),
		},
	})

	// Фоновая очистка просроченных refresh-токенов.
	startRefreshJanitor(rootCtx, svc, log, cfg.Storage.JanitorPeriod)

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Error("http_listen_failed", slog.String("addr", httpAddr), slog.String("err", err.Error()))
		os.Exit(1)
	}

	log.Info("http_listen_start", slog.String("addr", httpAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	atomic.StoreInt32(&ready, 1)
	log.Info("service_ready")

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	atomic.StoreInt32(&ready, 0)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// WebSocket-соединения хайджекнуты и Shutdown их не ждёт; их закрывает
	// отмена rootCtx через BaseContext.
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_incomplete", slog.String("err", err.Error()))
	} else {
		log.Info("http_stopped")
	}

	log.Info("service_stopped")
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

// startRefreshJanitor периодически удаляет просроченные refresh-записи.
func startRefreshJanitor(ctx context.Context, svc *service.Service, log *slog.Logger, period time.Duration) {
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
				n, err := svc.CleanupExpired(ctx)
				if err != nil {
					log.Error("refresh_janitor_failed", slog.String("err", err.Error()))
					continue
				}
				if n > 0 {
					log.Info("refresh_janitor_deleted", slog.Int64("count", n))
				}
			}
		}
	}()
}
