package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records RED metrics (rate, errors, duration) for a family of operations,
// labelled by operation name. A nil *OperationMetrics records nothing.
type OperationMetrics struct {
	failed    *prometheus.CounterVec
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// OperationTimer measures a single operation started with Start.
type OperationTimer struct {
	start     time.Time
	operation string
	metrics   *OperationMetrics
}

func NewOperationMetrics(namespace, subsystem, name string) *OperationMetrics {
	return &OperationMetrics{
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_errors_total",
			Help:      "Total number of failed operations",
		}, []string{"operation", "reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_requests_total",
			Help:      "Total number of operations",
		}, []string{"operation"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Operation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
	}
}

// MustRegister registers all collectors with reg.
func (m *OperationMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(m.failed, m.requests, m.durations)
}

func (m *OperationMetrics) Start(operation string) *OperationTimer {
	if m == nil {
		return nil
	}
	m.requests.WithLabelValues(operation).Inc()
	return &OperationTimer{
		start:     time.Now(),
		operation: operation,
		metrics:   m,
	}
}

// Count records an operation that is not timed by the caller, such as a delivery report.
func (m *OperationMetrics) Count(operation string, err error, reason string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation).Inc()
	if err != nil {
		m.failed.WithLabelValues(operation, reason).Inc()
	}
}

// Requests returns the counter for operation.
func (m *OperationMetrics) Requests(operation string) prometheus.Counter {
	return m.requests.WithLabelValues(operation)
}

// Failures returns the error counter for operation and reason.
func (m *OperationMetrics) Failures(operation, reason string) prometheus.Counter {
	return m.failed.WithLabelValues(operation, reason)
}

func (t *OperationTimer) Success() {
	if t == nil {
		return
	}
	t.metrics.durations.WithLabelValues(t.operation, "success").Observe(time.Since(t.start).Seconds())
}

// Failure counts the error under a short, bounded reason label.
func (t *OperationTimer) Failure(reason string) {
	if t == nil {
		return
	}
	t.metrics.failed.WithLabelValues(t.operation, reason).Inc()
	t.metrics.durations.WithLabelValues(t.operation, "failed").Observe(time.Since(t.start).Seconds())
}
