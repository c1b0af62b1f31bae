package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New(prometheus.NewRegistry())

	m.Gate(TransportHTTP, OutcomeAuthenticated)
	m.Gate(TransportHTTP, OutcomeAuthenticated)
	m.Gate(TransportSocket, OutcomeRejected)
	m.Issued("login")
	m.ReissueFailed("token_mismatch")
	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.JanitorDeleted(3)
	m.JanitorDeleted(0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.gate.WithLabelValues(TransportHTTP, OutcomeAuthenticated)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.gate.WithLabelValues(TransportSocket, OutcomeRejected)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("login")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reissueFailed.WithLabelValues("token_mismatch")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	require.Equal(t, 3.0, testutil.ToFloat64(m.janitorDeleted))
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.Gate(TransportHTTP, OutcomeAnonymous)
		m.Issued("login")
		m.ReissueFailed("expired")
		m.ConnOpened()
		m.ConnClosed()
		m.JanitorDeleted(1)
	})
}
