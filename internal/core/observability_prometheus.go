package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation counters, latency histograms and
// the registry size.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	total      prometheus.Gauge
}

// NewPrometheusMetricsRecorder creates the collectors and registers them with
// reg. A nil registerer skips registration.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kittycore_operations_total",
				Help: "Registry transitions by operation and outcome.",
			},
			[]string{"operation", "status"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kittycore_operation_duration_seconds",
				Help:    "Latency of registry transitions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kittycore_creatures_total",
			Help: "Number of creatures in the registry.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.operations, r.durations, r.total} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := string(AuditStatusError)
	if success {
		status = string(AuditStatusSuccess)
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTotal implements TotalObserver.
func (r *PrometheusMetricsRecorder) ObserveTotal(total uint32) {
	r.total.Set(float64(total))
}
