package sources

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects fetch-cycle counters for Prometheus.
type Metrics struct {
	fetchSuccess   *prometheus.CounterVec
	fetchFail      *prometheus.CounterVec
	reloadDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selfoss_source_fetch_success_total",
			Help: "Successful source fetches by spout type.",
		}, []string{"spout"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "selfoss_source_fetch_fail_total",
			Help: "Failed source fetches by spout type.",
		}, []string{"spout"}),
		reloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "selfoss_reload_duration_seconds",
			Help:    "Duration of full reload cycles.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.fetchSuccess, m.fetchFail, m.reloadDuration)
	}

	return m
}

func (m *Metrics) recordFetchSuccess(spout string) {
	if m == nil {
		return
	}
	m.fetchSuccess.WithLabelValues(spout).Inc()
}

func (m *Metrics) recordFetchFailure(spout string) {
	if m == nil {
		return
	}
	m.fetchFail.WithLabelValues(spout).Inc()
}

func (m *Metrics) recordReloadDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.reloadDuration.Observe(d.Seconds())
}
