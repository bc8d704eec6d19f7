// Package metrics provides Prometheus instrumentation for the swap protocol.
//
// # Description
//
// Metrics cover every swap operation (propose, respond, cancel and the
// marketplace queries):
//   - Operation counters by outcome (success or error kind)
//   - Operation latency histograms
//
// Metrics are exposed via the /metrics endpoint.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slotswap-backend/internal/apperr"
)

const (
	metricsNamespace = "slotswap"
	swapSubsystem    = "swap"
)

// OutcomeSuccess labels an operation that returned no error.
const OutcomeSuccess = "success"

// Metrics holds the collectors and the registry they are registered with.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	// OperationsTotal counts swap operations.
	// Labels: operation (propose, respond, cancel, list_slots, list_requests),
	// outcome (success or a lower-case error kind)
	OperationsTotal *prometheus.CounterVec

	// OperationDurationSeconds measures operation latency including the
	// database transaction.
	// Labels: operation
	OperationDurationSeconds *prometheus.HistogramVec

	// SwapsCompletedTotal counts swap requests reaching a terminal status.
	// Labels: status (ACCEPTED, REJECTED, CANCELLED)
	SwapsCompletedTotal *prometheus.CounterVec
}

// New creates a registry with Go/process collectors and the swap metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: swapSubsystem,
				Name:      "operations_total",
				Help:      "Total swap operations by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		OperationDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: swapSubsystem,
				Name:      "operation_duration_seconds",
				Help:      "Swap operation latency in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"operation"},
		),
		SwapsCompletedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: swapSubsystem,
				Name:      "completed_total",
				Help:      "Swap requests that reached a terminal status.",
			},
			[]string{"status"},
		),
	}
}

// Observe records one operation. The outcome label is derived from err.
func (m *Metrics) Observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	m.OperationDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SwapCompleted(status string) {
	if m == nil {
		return
	}
	m.SwapsCompletedTotal.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Outcome maps an error to a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation_error"
	case apperr.KindInvalidSlotState:
		return "invalid_slot_state"
	case apperr.KindInvalidRequestState:
		return "invalid_request_state"
	case apperr.KindInconsistentState:
		return "inconsistent_state"
	case apperr.KindOwnershipMismatch:
		return "ownership_mismatch"
	case apperr.KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}
