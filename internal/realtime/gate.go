package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/pribylovaa/go-community-board/internal/auth"
	"github.com/pribylovaa/go-community-board/internal/metrics"
	logctx "github.com/pribylovaa/go-community-board/internal/pkg/log"
	"github.com/pribylovaa/go-community-board/internal/service"
)

// Policy — поведение при неудачной аутентификации CONNECT.
type Policy string

const (
	// PolicyReject отвечает ERROR и закрывает соединение.
	PolicyReject Policy = "reject"
	// PolicyAllow оставляет соединение открытым без личности; кадры,
	// которым нужна личность, отклоняются обработчиками.
	PolicyAllow Policy = "allow"
)

// ErrHandshakeRejected — CONNECT отклонён политикой reject.
var ErrHandshakeRejected = fmt.Errorf("%w: stomp handshake rejected", service.ErrUnauthenticated)

// HandshakeGate аутентифицирует только кадры CONNECT/STOMP и привязывает
// результат к соединению. Остальные кадры проходят без проверки.
type HandshakeGate struct {
	authn   auth.Authenticator
	policy  Policy
	metrics *metrics.Metrics
}

// NewHandshakeGate создаёт гейт; неизвестная политика трактуется как reject.
func NewHandshakeGate(authn auth.Authenticator, policy Policy, m *metrics.Metrics) *HandshakeGate {
	if policy != PolicyAllow {
		policy = PolicyReject
	}

	return &HandshakeGate{authn: authn, policy: policy, metrics: m}
}

// Policy возвращает действующую политику.
func (g *HandshakeGate) Policy() Policy { return g.policy }

// Intercept обрабатывает входящий кадр до его маршрутизации.
//
// Для CONNECT/STOMP: заголовок Authorization: Bearer <token> проверяется,
// участник привязывается к conn, сам заголовок из кадра удаляется.
// Ошибка возвращается только при политике reject (ErrHandshakeRejected)
// и при повторной привязке (ErrAlreadyBound).
func (g *HandshakeGate) Intercept(ctx context.Context, c *Conn, f *frame.Frame) (*frame.Frame, error) {
	const op = "realtime.gate.Intercept"

	if f == nil || (f.Command != frame.CONNECT && f.Command != frame.STOMP) {
		return f, nil
	}

	if _, bound := c.Principal(); bound {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyBound)
	}

	lg := logctx.From(ctx)

	var header string
	if f.Header != nil {
		header = f.Header.Get(auth.Header)
		f.Header.Del(auth.Header)
	}

	raw, ok := auth.BearerToken(header)
	if !ok {
		lg.Info("stomp_connect_no_token",
			slog.String("op", op),
			slog.String("policy", string(g.policy)),
		)
		return g.fail(op, f, service.ErrMalformedToken)
	}

	p, err := g.authn.Authenticate(ctx, raw)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			lg.Info("stomp_connect_token_rejected",
				slog.String("op", op),
				slog.String("reason", service.Reason(err)),
				slog.String("policy", string(g.policy)),
			)
		} else {
			lg.Error("stomp_connect_auth_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
		return g.fail(op, f, err)
	}

	if err := c.Bind(p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	g.metrics.Gate(metrics.TransportSocket, metrics.OutcomeAuthenticated)
	lg.Info("stomp_connect_bound",
		slog.String("op", op),
		slog.String("principal", p.ID.String()),
	)

	return f, nil
}

func (g *HandshakeGate) fail(op string, f *frame.Frame, cause error) (*frame.Frame, error) {
	if g.policy == PolicyAllow {
		g.metrics.Gate(metrics.TransportSocket, metrics.OutcomeAnonymous)
		return f, nil
	}

	g.metrics.Gate(metrics.TransportSocket, metrics.OutcomeRejected)
	return nil, fmt.Errorf("%s: %w (%s)", op, ErrHandshakeRejected, service.Reason(cause))
}
