package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stratofs/stratofs/pkg/filesystem"
)

// operationMetrics is the Prometheus implementation of
// filesystem.OperationMetrics. It tracks per-operation, per-scheme counts,
// latencies and failures.
type operationMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

// NewOperationMetrics creates a Prometheus-backed operation observer.
//
// Returns nil if metrics are not enabled (InitRegistry not called); a nil
// observer disables collection on the filesystem instance.
func NewOperationMetrics() filesystem.OperationMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &operationMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratofs_operations_total",
				Help: "Total number of dispatched storage operations by operation, scheme and status",
			},
			[]string{"operation", "scheme", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "stratofs_operation_duration_seconds",
				Help: "Duration of storage operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"operation", "scheme"},
		),
		errorsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratofs_operation_errors_total",
				Help: "Total number of failed storage operations by operation and scheme",
			},
			[]string{"operation", "scheme"},
		),
	}
}

// Observe implements filesystem.OperationMetrics.
func (m *operationMetrics) Observe(op, scheme string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(op, scheme).Inc()
	}
	m.operationsTotal.WithLabelValues(op, scheme, status).Inc()
	m.operationDuration.WithLabelValues(op, scheme).Observe(elapsed.Seconds())
}
