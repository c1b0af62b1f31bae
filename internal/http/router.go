package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-community-board/internal/auth"
	"github.com/pribylovaa/go-community-board/internal/config"
	"github.com/pribylovaa/go-community-board/internal/http/handlers"
	"github.com/pribylovaa/go-community-board/internal/http/middleware"
	"github.com/pribylovaa/go-community-board/internal/metrics"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.

	// Auth — настройки refresh-cookie.
	Auth config.AuthConfig

	// Authn проверяет Bearer-токены в AuthGate.
	Authn   auth.Authenticator
	Metrics *metrics.Metrics

	// WSEndpoint и Socket — STOMP-эндпоинт; Socket == nil отключает маршрут.
	WSEndpoint string
	Socket     http.Handler

	// Extra — служебные маршруты (/livez, /healthz, /metrics) без таймаута и гейта.
	Extra map[string]http.Handler
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc handlers.AuthService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)

	for path, h := range opts.Extra {
		root.Handle(path, h)
	}

	h := handlers.New(svc, opts.Auth)

	root.Group(func(r chi.Router) {
		r.Use(middleware.AuthGate(opts.Authn, opts.WSEndpoint, opts.Metrics))

		// Сокет живёт дольше любого таймаута запроса.
		if opts.Socket != nil && opts.WSEndpoint != "" {
			r.Handle(opts.WSEndpoint, opts.Socket)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.Timeout))

			if opts.BasePath != "" {
				r.Route(opts.BasePath, func(r chi.Router) {
					registerRoutes(r, h)
				})
				return
			}

			registerRoutes(r, h)
		})
	})

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/reissue", h.Reissue)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())

		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Delete("/members/{memberId}", h.DeleteMember)
	})
}
