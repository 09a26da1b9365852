// Package metrics exposes the sync engine's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boardsync_active_rooms",
		Help: "Rooms currently live in this process.",
	})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boardsync_active_sessions",
		Help: "Connected sessions across all rooms.",
	})
	BatchesApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardsync_batches_applied_total",
		Help: "Inbound action batches folded into room state.",
	})
	ActionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardsync_actions_dropped_total",
		Help: "Actions dropped by the permission guard. The sender gets no signal; this counter is the observable trace.",
	})
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardsync_persist_failures_total",
		Help: "Debounced board store writes that failed. Writes are not retried.",
	})
	SessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boardsync_sessions_revoked_total",
		Help: "Sessions force-closed after an external access revocation.",
	})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
