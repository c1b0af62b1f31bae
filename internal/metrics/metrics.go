// Package metrics — Prometheus-метрики подсистемы аутентификации.
// Все методы безопасно вызывать на nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Транспорты для метки transport.
const (
	TransportHTTP   = "http"
	TransportSocket = "socket"
)

// Исходы гейтов для метки outcome.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeAnonymous     = "anonymous"
	OutcomeRejected      = "rejected"
	OutcomeBypassed      = "bypassed"
)

type Metrics struct {
	gate           *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	reissueFailed  *prometheus.CounterVec
	connections    prometheus.Gauge
	janitorDeleted prometheus.Counter
}

// New регистрирует метрики в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gate: f.NewCounterVec(prometheus.CounterOpts{
			Name: "board_auth_gate_total",
			Help: "Authentication gate decisions by transport and outcome.",
		}, []string{"transport", "outcome"}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "board_auth_tokens_issued_total",
			Help: "Issued tokens by operation (login, reissue, rotate).",
		}, []string{"op"}),
		reissueFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "board_auth_reissue_failures_total",
			Help: "Rejected reissue attempts by internal reason.",
		}, []string{"reason"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "board_ws_connections",
			Help: "Open STOMP-over-WebSocket connections.",
		}),
		janitorDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "board_refresh_janitor_deleted_total",
			Help: "Expired refresh records removed by the janitor.",
		}),
	}
}

func (m *Metrics) Gate(transport, outcome string) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) Issued(op string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(op).Inc()
}

func (m *Metrics) ReissueFailed(reason string) {
	if m == nil {
		return
	}
	m.reissueFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) JanitorDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.janitorDeleted.Add(float64(n))
}
