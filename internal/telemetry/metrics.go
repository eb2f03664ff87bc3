package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_claims_total", Help: "Claim attempts by outcome"},
		[]string{"outcome"},
	)
	ReturnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_returns_total", Help: "Jobs returned to pool by reason"},
		[]string{"reason"},
	)
	OffersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_offers_created_total", Help: "Job offers created"},
	)
	OffersResponded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "dispatch_offers_responded_total", Help: "Offer responses by outcome"},
		[]string{"outcome"},
	)
	RequestsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_requests_expired_total", Help: "Offers expired by the sweeper"},
	)
	LocksReclaimed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_locks_reclaimed_total", Help: "Abandoned job locks reclaimed"},
	)
	EventsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "dispatch_events_published_total", Help: "Job events published to Redis"},
	)
	PoolDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "dispatch_pool_depth", Help: "Jobs currently in the open pool"},
	)
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ClaimsTotal,
			ReturnsTotal,
			OffersCreated,
			OffersResponded,
			RequestsExpired,
			LocksReclaimed,
			EventsPublished,
			PoolDepth,
		)
	})
	return promhttp.Handler()
}
