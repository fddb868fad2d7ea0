// Package metrics declares the Prometheus collectors for the service. They
// are registered on the default registry and exposed at /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_ws_connections",
		Help: "Authenticated WebSocket connections currently open",
	})

	WSRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_ws_rooms",
		Help: "Rooms with at least one subscriber",
	})

	WSFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_ws_frames_dropped_total",
		Help: "Outbound frames discarded because a connection queue was full",
	}, []string{"policy"}) // drop_oldest | disconnect

	WSJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_ws_joins_total",
		Help: "Room join attempts by outcome",
	}, []string{"kind", "result"}) // project|task, ok|denied|error

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_events_published_total",
		Help: "Domain events published by type",
	}, []string{"type"})

	EventDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_event_deliveries_total",
		Help: "Frames enqueued to subscriber connections",
	})

	// Identity provider
	IdentityVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskhub_identity_verifications_total",
		Help: "Credential verifications by outcome",
	}, []string{"provider", "result"}) // ok | invalid | unavailable

	IdentityBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "taskhub_identity_breaker_state",
		Help: "Identity provider circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "taskhub_http_request_duration_seconds",
		Help:    "REST request latency by route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Instrument records request latency labelled by the chi route pattern, so
// ids in paths do not explode label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
