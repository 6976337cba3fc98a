package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_paste_created_total",
		Help: "no. of pastes created",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_paste_retrieved_total",
		Help: "no. of pastes served, API and HTML combined",
	})
	PageRendered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_page_rendered_total",
		Help: "no. of HTML paste pages rendered",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_cache_hits_total",
		Help: "no. of reads answered from cache",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_cache_misses_total",
		Help: "no. of reads that fell through to sqlite",
	})
	IDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pastry_id_collisions_total",
		Help: "no. of paste id collisions that forced a regenerate",
	})
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pastry_rate_limit_hits_total",
			Help: "no. of rate limited requests",
		},
		[]string{"endpoint"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pastry_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
