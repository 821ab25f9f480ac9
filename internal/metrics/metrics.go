package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacios",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created.",
		},
	)

	reservationUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacios",
			Name:      "reservation_updated_total",
			Help:      "Count of reservations updated.",
		},
	)

	reservationDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacios",
			Name:      "reservation_deleted_total",
			Help:      "Count of reservations deleted.",
		},
	)

	conflictRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "espacios",
			Name:      "conflict_rejected_total",
			Help:      "Count of writes refused because of an overlapping reservation.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "espacios",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, reservationUpdated, reservationDeleted,
			conflictRejected, httpRequests,
		)
	})
}

func IncReservationCreated() { reservationCreated.Inc() }
func IncReservationUpdated() { reservationUpdated.Inc() }
func IncReservationDeleted() { reservationDeleted.Inc() }
func IncConflictRejected()   { conflictRejected.Inc() }

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
