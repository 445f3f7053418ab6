package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "clustermeta"

// Metrics are the refresh counters exported on /metrics
type Metrics struct {
	refreshes       prometheus.Counter
	refreshDuration prometheus.Histogram
	resolutions     *prometheus.CounterVec
	resolvedHosts   prometheus.Gauge
	publishFailures prometheus.Counter
}

// NewMetrics creates the refresh metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Number of completed refresh cycles.",
		}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a refresh cycle, publishing excluded.",
			Buckets:   prometheus.DefBuckets,
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "host_resolutions_total",
			Help:      "JobHistory server resolutions by outcome.",
		}, []string{"outcome"}),
		resolvedHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resolved_hosts",
			Help:      "JobHistory servers resolved in the last refresh.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "publish_failures_total",
			Help:      "Refresh cycles whose results could not be fully published.",
		}),
	}
	reg.MustRegister(m.refreshes, m.refreshDuration, m.resolutions, m.resolvedHosts, m.publishFailures)
	return m
}
