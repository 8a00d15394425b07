package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salonbook"

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by channel.",
		},
		[]string{"channel"},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_rejected_total",
			Help:      "Count of rejected booking candidates by reason.",
		},
		[]string{"reason"},
	)

	statusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_status_changed_total",
			Help:      "Count of reservation status transitions by target status.",
		},
		[]string{"status"},
	)

	persistenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Count of storage errors by operation.",
		},
		[]string{"op"},
	)

	slotQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_query_duration_seconds",
			Help:      "Time spent loading a day and enumerating slots.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	remindersSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Count of reservation reminders by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by route and status code.",
		},
		[]string{"method", "route", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated,
			bookingRejected,
			statusChanged,
			persistenceFailures,
			slotQueryDuration,
			remindersSent,
			httpRequests,
		)
	})
}

func IncReservationCreated(channel string) {
	reservationCreated.WithLabelValues(channel).Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncStatusChanged(status string) {
	statusChanged.WithLabelValues(status).Inc()
}

func IncPersistenceFailure(op string) {
	persistenceFailures.WithLabelValues(op).Inc()
}

func ObserveSlotQuery(started time.Time) {
	slotQueryDuration.Observe(time.Since(started).Seconds())
}

func IncReminder(result string) {
	remindersSent.WithLabelValues(result).Inc()
}

func IncHTTPRequest(method, route, code string) {
	httpRequests.WithLabelValues(method, route, code).Inc()
}
