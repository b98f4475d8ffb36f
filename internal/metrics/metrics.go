// Package metrics holds the Prometheus collectors for panel traffic and console sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PanelRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggmanager",
		Name:      "panel_requests_total",
		Help:      "Upstream panel API calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	PanelRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eggmanager",
		Name:      "panel_request_duration_seconds",
		Help:      "Latency of upstream panel API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	ConsoleSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eggmanager",
		Name:      "console_sessions_active",
		Help:      "Console relay sessions currently open.",
	})

	ConsoleSessionsEnded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eggmanager",
		Name:      "console_sessions_ended_total",
		Help:      "Console relay sessions that ended, by terminal reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(PanelRequests, PanelRequestDuration, ConsoleSessionsActive, ConsoleSessionsEnded)
}

const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
)

// ObservePanel records one finished upstream call.
func ObservePanel(operation, outcome string, started time.Time) {
	PanelRequests.WithLabelValues(operation, outcome).Inc()
	PanelRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
