package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "weride", Name: "ride_transitions_total", Help: "Ride lifecycle triggers by result"},
		[]string{"trigger", "result"},
	)
	OffersTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "weride", Name: "offers_submitted_total", Help: "Total number of offers submitted"})
	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "weride", Name: "drivers_online", Help: "Number of online drivers"})

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "weride", Name: "dispatches_total", Help: "Notification dispatches by kind and outcome"},
		[]string{"kind", "status"},
	)
	DigitInputsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "weride", Name: "digit_inputs_total", Help: "Keypad responses by call context and action"},
		[]string{"context", "action"},
	)
	MirrorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "weride", Name: "mirror_errors_total", Help: "Failed real-time mirror publishes"},
		[]string{"sink"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "weride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "weride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
