// Package metrics exposes the pipeline's running counters to
// Prometheus. Collectors are registered in init() and served by the
// HTTP server at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// QuotesProcessed counts quotes run through the detector, per session
	QuotesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linepulse_quotes_processed_total",
			Help: "Quotes processed by the movement detector",
		},
		[]string{"session"},
	)

	// MovementsInserted counts stored movements (dedup collisions excluded)
	MovementsInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linepulse_movements_inserted_total",
			Help: "Movements stored (excluding dedup no-ops)",
		},
	)

	// PipelineErrors counts isolated per-cycle failures, by stage
	PipelineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linepulse_errors_total",
			Help: "Recoverable pipeline errors by stage",
		},
		[]string{"stage"},
	)

	// AlertsSent counts delivered alerts by severity
	AlertsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linepulse_alerts_sent_total",
			Help: "Alerts delivered to the notification channel",
		},
		[]string{"severity"},
	)

	// AlertsPinned counts successful escalations
	AlertsPinned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linepulse_alerts_pinned_total",
			Help: "Alerts escalated via pinning",
		},
	)

	// Reconnects counts scheduled reconnect attempts per session
	Reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linepulse_reconnects_total",
			Help: "Reconnect attempts scheduled by the feed transport",
		},
		[]string{"session"},
	)

	// TensionScore tracks the latest tension score per session
	TensionScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linepulse_session_tension",
			Help: "Latest tension score per session",
		},
		[]string{"session", "phase"},
	)
)

func init() {
	prometheus.MustRegister(
		QuotesProcessed,
		MovementsInserted,
		PipelineErrors,
		AlertsSent,
		AlertsPinned,
		Reconnects,
		TensionScore,
	)
}
