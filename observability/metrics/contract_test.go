package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestContractMetricsPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewContractMetrics(reg)
	require.NoError(t, err)

	m.ObserveCall("SetFee", "ok", 10*time.Millisecond)
	m.ObserveCall("SetFee", "ok", 20*time.Millisecond)
	m.ObserveCall("SetFee", "not_authorized", time.Millisecond)
	m.RecordEvent("shade.fee.set")

	require.Equal(t, 2.0, testutil.ToFloat64(m.calls.WithLabelValues("SetFee", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("SetFee", "not_authorized")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("shade.fee.set")))

	_, err = NewContractMetrics(reg)
	require.Error(t, err)
}

func TestNilContractMetricsIsSafe(t *testing.T) {
	var m *ContractMetrics
	m.ObserveCall("Admin", "ok", time.Second)
	m.RecordEvent("shade.initialized")
}
