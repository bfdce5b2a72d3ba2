package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackbook",
			Name:      "bookings_total",
			Help:      "Committed bookings by business type.",
		},
		[]string{"type"},
	)

	capacityRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackbook",
			Name:      "capacity_rejections_total",
			Help:      "Reservations rejected for insufficient seats.",
		},
		[]string{"type"},
	)

	webhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackbook",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries by outcome.",
		},
		[]string{"result"},
	)

	sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackbook",
			Name:      "sweeper_transitions_total",
			Help:      "Rows touched by scheduled sweeps.",
		},
		[]string{"kind"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookings, capacityRejections, webhooks, sweeps)
	})
}

func IncBooking(businessType string) {
	bookings.WithLabelValues(businessType).Inc()
}

func IncCapacityRejection(businessType string) {
	capacityRejections.WithLabelValues(businessType).Inc()
}

// IncWebhook records a webhook delivery outcome: processed, duplicate,
// invalid_signature or error.
func IncWebhook(result string) {
	webhooks.WithLabelValues(result).Inc()
}

func AddSweep(kind string, n int64) {
	sweeps.WithLabelValues(kind).Add(float64(n))
}
