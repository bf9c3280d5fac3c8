package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors exported by the engine and the
// serving layer.
type Metrics struct {
	recommendations     *prometheus.CounterVec
	rankLatency         prometheus.Histogram
	initializeDuration  prometheus.Histogram
	initializeFailures  prometheus.Counter
	eventsRecorded      *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	publishFailures     prometheus.Counter
	cacheEntries        *prometheus.GaugeVec

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		recommendations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_recommendations_total",
			Help: "Recommendation requests by strategy",
		}, []string{"strategy"}),
		rankLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoprank_rank_duration_seconds",
			Help:    "Time spent ranking search candidates",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		initializeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "shoprank_initialize_duration_seconds",
			Help:    "Duration of full cache rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		initializeFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shoprank_initialize_failures_total",
			Help: "Failed cache rebuilds",
		}),
		eventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_events_recorded_total",
			Help: "Behavior events recorded by action",
		}, []string{"action"}),
		persistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shoprank_event_persistence_failures_total",
			Help: "Behavior events that could not be appended to the event store",
		}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "shoprank_event_publish_failures_total",
			Help: "Behavior events that could not be published to Kafka",
		}),
		cacheEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "shoprank_cache_entries",
			Help: "Entries held in the in-memory personalization caches",
		}, []string{"cache"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shoprank_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shoprank_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) observeCacheSizes(s *engineState) {
	m.cacheEntries.WithLabelValues("vectors").Set(float64(len(s.vectors)))
	m.cacheEntries.WithLabelValues("profiles").Set(float64(len(s.profiles)))
	m.cacheEntries.WithLabelValues("search_profiles").Set(float64(len(s.searchProfiles)))
	m.cacheEntries.WithLabelValues("product_stats").Set(float64(s.popularity.Len()))
}
