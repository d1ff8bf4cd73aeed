package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmyfaculty",
			Name:      "bookings_total",
			Help:      "Confirmed reservations committed.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmyfaculty",
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected by the confirmed-per-slot constraint.",
		},
	)

	cancellations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmyfaculty",
			Name:      "cancellations_total",
			Help:      "Reservations cancelled.",
		},
	)

	deliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookmyfaculty",
			Name:      "delivery_failures_total",
			Help:      "Observer delivery attempts that failed, by channel.",
		},
		[]string{"channel"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookmyfaculty",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, bookingConflicts, cancellations, deliveryFailures, httpRequests)
	})
}

func IncBooking()         { bookings.Inc() }
func IncBookingConflict() { bookingConflicts.Inc() }
func IncCancellation()    { cancellations.Inc() }

// IncDeliveryFailure counts a failed observer delivery for a channel.
func IncDeliveryFailure(channel string) { deliveryFailures.WithLabelValues(channel).Inc() }

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) { httpRequests.WithLabelValues(endpoint).Inc() }
