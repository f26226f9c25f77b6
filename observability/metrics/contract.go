package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ContractMetrics tracks entry point activity of a shade contract.
type ContractMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

var (
	contractOnce     sync.Once
	contractRegistry *ContractMetrics
)

// Contract returns the process-wide collectors registered with the default
// Prometheus registerer.
func Contract() *ContractMetrics {
	contractOnce.Do(func() {
		contractRegistry = newContractMetrics()
		prometheus.MustRegister(contractRegistry.collectors()...)
	})
	return contractRegistry
}

// NewContractMetrics builds collectors registered with reg. Tests pass a
// private registry so that repeated construction does not collide.
func NewContractMetrics(reg prometheus.Registerer) (*ContractMetrics, error) {
	m := newContractMetrics()
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newContractMetrics() *ContractMetrics {
	return &ContractMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shade",
			Subsystem: "contract",
			Name:      "calls_total",
			Help:      "Total contract entry point invocations segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shade",
			Subsystem: "contract",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for contract entry points.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shade",
			Subsystem: "contract",
			Name:      "events_total",
			Help:      "Events published by committed contract calls.",
		}, []string{"type"}),
	}
}

func (m *ContractMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.calls, m.duration, m.events}
}

// ObserveCall records one finished entry point. Outcome is "ok" or the
// contract error name.
func (m *ContractMetrics) ObserveCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, outcome).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordEvent counts a published event.
func (m *ContractMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
