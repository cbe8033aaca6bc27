package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "courtbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courtbook_bookings_created_total",
			Help: "Total number of bookings created",
		},
	)

	BookingRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_booking_rejections_total",
			Help: "Booking creations rejected, by error code",
		},
		[]string{"code"},
	)

	BookingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_booking_transitions_total",
			Help: "Booking status transitions, by target status and actor role",
		},
		[]string{"status", "actor"},
	)

	SideEffectFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_side_effect_failures_total",
			Help: "Post-commit side effects that failed, by kind",
		},
		[]string{"kind"},
	)

	RefundsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_refunds_processed_total",
			Help: "Refund tasks processed, by result",
		},
		[]string{"result"},
	)

	BookingsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courtbook_bookings_completed_total",
			Help: "Bookings moved to COMPLETED by the sweep",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_events_published_total",
			Help: "Events handed to a transport, by transport and result",
		},
		[]string{"transport", "result"},
	)
)

// Side effect kinds.
const (
	SideEffectNotify    = "notify"
	SideEffectBroadcast = "broadcast"
	SideEffectRefund    = "refund"
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBookingCreated() {
	BookingsCreatedTotal.Inc()
}

func RecordBookingRejection(code string) {
	BookingRejectionsTotal.WithLabelValues(code).Inc()
}

func RecordTransition(status, actor string) {
	BookingTransitionsTotal.WithLabelValues(status, actor).Inc()
}

func RecordSideEffectFailure(kind string) {
	SideEffectFailuresTotal.WithLabelValues(kind).Inc()
}

func RecordRefund(result string) {
	RefundsProcessedTotal.WithLabelValues(result).Inc()
}

func RecordCompleted(n int64) {
	BookingsCompletedTotal.Add(float64(n))
}

func RecordEventPublished(transport string, err error) {
	result := "success"
	if err != nil {
		result = "failed"
	}
	EventsPublishedTotal.WithLabelValues(transport, result).Inc()
}
