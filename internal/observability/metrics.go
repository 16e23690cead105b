package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbook_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbook_bookings_total",
			Help: "Total bookings by terminal status",
		},
		[]string{"status"},
	)

	PaymentFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airbook_payment_failures_total",
			Help: "Total failed payment attempts by method",
		},
		[]string{"method"},
	)

	SeatConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airbook_seat_conflicts_total",
			Help: "Total reservations rejected because the seat was taken",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airbook_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airbook_outbox_lag_seconds",
			Help: "Age of the oldest unpublished outbox record",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airbook_rate_limit_exceeded_total",
			Help: "Total rate limited requests",
		},
	)
)
