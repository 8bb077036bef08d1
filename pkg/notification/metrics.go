package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	SkipPast          = "past"
	SkipInvalid       = "invalid"
	SkipPlatformError = "platform_error"

	StatusSent        = "sent"
	StatusFailed      = "failed"
	StatusRateLimited = "rate_limited"
)

// Metrics holds Prometheus metrics for notification scheduling and delivery.
type Metrics struct {
	// Scheduled is the total number of triggers handed to a platform.
	Scheduled prometheus.Counter

	// Skipped counts notifications that were not scheduled, by reason.
	Skipped *prometheus.CounterVec

	// Cancelled is the total number of triggers cancelled before firing.
	Cancelled prometheus.Counter

	// Delivered counts fired triggers by delivery status.
	Delivered *prometheus.CounterVec

	// Reschedules is the total number of full reschedules after a feed change.
	Reschedules prometheus.Counter

	// Pending is the number of triggers waiting to fire.
	Pending prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Scheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "scheduled_total",
			Help:      "Total number of notification triggers scheduled",
		}),
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "skipped_total",
			Help:      "Total number of notifications not scheduled",
		}, []string{"reason"}),
		Cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "cancelled_total",
			Help:      "Total number of notification triggers cancelled",
		}),
		Delivered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Total number of fired notification triggers",
		}, []string{"status"}),
		Reschedules: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "reschedules_total",
			Help:      "Total number of full reschedules",
		}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agendazk",
			Subsystem: "notifications",
			Name:      "pending",
			Help:      "Current number of triggers waiting to fire",
		}),
	}
}
