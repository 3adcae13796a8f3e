package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_received_total",
		Help: "Inbound update events by channel and kind.",
	}, []string{"channel", "kind"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_events_dropped_total",
		Help: "Inbound events dropped by reason (malformed, queue_full, duplicate, orphan_response).",
	}, []string{"reason"})

	PollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_poll_failures_total",
		Help: "Failed poll cycles against the backend REST API.",
	})

	PushReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_push_reconnects_total",
		Help: "Push channel subscription restarts.",
	})

	AlertsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_alerts_evicted_total",
		Help: "Emergency alerts evicted from the bounded alert list.",
	})

	MarkersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dashboard_markers_active",
		Help: "Currently live map markers by entity kind.",
	}, []string{"kind"})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_ws_clients",
		Help: "Connected websocket clients.",
	})
)
