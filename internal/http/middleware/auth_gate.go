package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-community-board/internal/auth"
	apierrors "github.com/pribylovaa/go-community-board/internal/http/errors"
	"github.com/pribylovaa/go-community-board/internal/metrics"
	logctx "github.com/pribylovaa/go-community-board/internal/pkg/log"
	"github.com/pribylovaa/go-community-board/internal/service"
)

// AuthGate аутентифицирует запрос по Authorization: Bearer <token>.
//
// Гейт никогда не отвечает сам: при отсутствии, порче или просрочке токена
// запрос идёт дальше анонимным, а причина пишется в лог. Решение о 401
// принимает RequireAuth на конкретных маршрутах.
//
// Запросы на апгрейд к wsEndpoint пропускаются нетронутыми: они
// аутентифицируются STOMP-кадром CONNECT внутри сокета.
func AuthGate(authn auth.Authenticator, wsEndpoint string, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.auth_gate.AuthGate"

			if isSocketUpgrade(r, wsEndpoint) {
				m.Gate(metrics.TransportHTTP, metrics.OutcomeBypassed)
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := auth.BearerToken(r.Header.Get(auth.Header))
			if !ok {
				m.Gate(metrics.TransportHTTP, metrics.OutcomeAnonymous)
				next.ServeHTTP(w, r)
				return
			}

			p, err := authn.Authenticate(r.Context(), raw)
			if err != nil {
				lg := logctx.From(r.Context())
				if errors.Is(err, service.ErrUnauthenticated) {
					lg.Info("auth_gate_token_rejected",
						slog.String("op", op),
						slog.String("reason", service.Reason(err)),
					)
				} else {
					lg.Error("auth_gate_failed",
						slog.String("op", op),
						slog.String("err", err.Error()),
					)
				}
				m.Gate(metrics.TransportHTTP, metrics.OutcomeRejected)
				next.ServeHTTP(w, r)
				return
			}

			m.Gate(metrics.TransportHTTP, metrics.OutcomeAuthenticated)
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = logctx.With(ctx, slog.String("principal", p.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth отвечает 401, если гейт не установил участника.
func RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := auth.PrincipalFrom(r.Context()); !ok {
				apierrors.WriteError(w, r, service.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isSocketUpgrade: путь равен endpoint или лежит под endpoint/ и запрошен апгрейд до websocket.
func isSocketUpgrade(r *http.Request, endpoint string) bool {
	if !underEndpoint(r.URL.Path, endpoint) {
		return false
	}

	for _, v := range r.Header.Values("Upgrade") {
		for _, proto := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(proto), "websocket") {
				return true
			}
		}
	}

	return false
}

func underEndpoint(path, endpoint string) bool {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if endpoint == "" {
		return false
	}

	return path == endpoint || strings.HasPrefix(path, endpoint+"/")
}
