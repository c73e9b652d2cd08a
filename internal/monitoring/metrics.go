// Package monitoring exposes Prometheus metrics for the check-in API.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_redemptions_total",
			Help: "Redemption attempts by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	replays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_nonce_replays_total",
			Help: "Redemptions answered from an idempotency record",
		},
		[]string{"event"},
	)

	viewRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_view_requests_total",
			Help: "Read-only view requests by event and view",
		},
		[]string{"event", "view"},
	)
)

// ObserveRedemption counts one redemption attempt. The outcome label is
// "ok" for accepted attempts and the rejection reason otherwise; replays
// are additionally counted on their own series.
func ObserveRedemption(eventSlug, outcome string, replayed bool) {
	redemptions.WithLabelValues(eventSlug, outcome).Inc()
	if replayed {
		replays.WithLabelValues(eventSlug).Inc()
	}
}

// ObserveView counts one search/download/status request.
func ObserveView(eventSlug, view string) {
	viewRequests.WithLabelValues(eventSlug, view).Inc()
}
