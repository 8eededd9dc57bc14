package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments handlers with request counters, latencies and response sizes.
type Metrics struct {
	buckets  []float64
	registry prometheus.Registerer
}

// NewMetrics returns a Metrics registering its collectors with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		// Sampling stops early but downloads stream whole archives. Max of ~82s.
		buckets:  prometheus.ExponentialBuckets(0.01, 2, 14),
		registry: registry,
	}
}

// Monitor wraps handler so its requests are counted under handlerName. Each
// handlerName may be monitored once per registry.
func (m *Metrics) Monitor(handlerName string, handler http.Handler) http.HandlerFunc {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"handler": handlerName}, m.registry)
	labels := []string{"method", "code", "route"}

	requestsTotal := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Tracks the number of HTTP requests.",
		}, labels,
	)
	requestDuration := promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Tracks the latencies for HTTP requests.",
			Buckets: m.buckets,
		},
		labels,
	)
	responseSize := promauto.With(reg).NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_response_size_bytes",
			Help: "Tracks the size of HTTP responses.",
		},
		labels,
	)

	route := promhttp.WithLabelFromCtx("route", routeLabelFromCtx)
	base := promhttp.InstrumentHandlerCounter(
		requestsTotal,
		promhttp.InstrumentHandlerDuration(
			requestDuration,
			promhttp.InstrumentHandlerResponseSize(responseSize, handler, route),
			route,
		),
		route,
	)

	return base.ServeHTTP
}

// routeLabelFromCtx reports the matched route pattern so dataset keys do not become label values.
func routeLabelFromCtx(ctx context.Context) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unknown"
}
