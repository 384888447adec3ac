package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ripple_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ActiveWebSockets is the gauge of open WebSocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts registry lifecycle events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_events_total",
		Help: "Total WebSocket registry events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// NotificationsPersisted counts notification rows written by action.
	NotificationsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_notifications_persisted_total",
		Help: "Total number of notifications persisted by action",
	}, []string{"action"})

	// NotificationDeliveries counts live delivery outcomes (delivered, offline, dropped).
	NotificationDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_notification_deliveries_total",
		Help: "Total number of live notification delivery attempts by outcome",
	}, []string{"outcome"})

	// EngagementOutcomes counts engagement operations by operation and result code.
	EngagementOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_engagement_operations_total",
		Help: "Total engagement operations by operation and outcome",
	}, []string{"operation", "outcome"})
)

