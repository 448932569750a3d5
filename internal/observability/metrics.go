package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "bookings_created_total", Help: "Total bookings created"})
	BookingsAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "bookings_accepted_total", Help: "Total accepts that won the assignment"})
	AcceptConflicts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "accept_conflicts_total", Help: "Total accepts that lost the assignment race"})
	ProximityAlerts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "proximity_alerts_total", Help: "Total proximity notifications fired"})
	DriversAvailable = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ambulance_dispatch", Name: "drivers_available", Help: "Drivers currently announcing availability"})

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "events_broadcast_total", Help: "Realtime events broadcast by event name"},
		[]string{"event"},
	)
	PushesSent = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "pushes_sent_total", Help: "Push notifications handed to the notifier"})
	PushFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "push_failures_total", Help: "Push notifications the notifier failed to deliver"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ambulance_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ambulance_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
