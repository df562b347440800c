package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapmeet_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swapmeet_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	MessagesAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapmeet_chat_messages_accepted_total",
			Help: "Messages durably accepted, by room flavor and message kind",
		},
		[]string{"flavor", "kind"},
	)

	HistoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapmeet_chat_history_cache_hits_total",
			Help: "History pages fully served from the hot cache",
		},
	)

	HistoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapmeet_chat_history_cache_misses_total",
			Help: "History pages that fell back to the durable log",
		},
	)

	// Broadcast metrics
	BroadcastDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapmeet_broadcast_delivered_total",
			Help: "Messages delivered to live subscribers",
		},
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "swapmeet_broadcast_dropped_total",
			Help: "Messages dropped because a subscriber could not keep up",
		},
	)

	SubscribersConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "swapmeet_broadcast_subscribers",
			Help: "Currently connected websocket sessions",
		},
	)
)
