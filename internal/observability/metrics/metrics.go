package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics exposes counters/histograms for the scheduling engine.
type SchedulerMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	availabilityChecks *prometheus.CounterVec
	lockWait           prometheus.Histogram
	sweptTotal         prometheus.Counter
}

func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	m := &SchedulerMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor_booking",
			Subsystem: "scheduler",
			Name:      "bookings_total",
			Help:      "Appointment create attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor_booking",
			Subsystem: "scheduler",
			Name:      "status_transitions_total",
			Help:      "Appointment status transition attempts",
		}, []string{"to", "outcome"}),
		availabilityChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisor_booking",
			Subsystem: "scheduler",
			Name:      "availability_checks_total",
			Help:      "Availability lookups by outcome",
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "advisor_booking",
			Subsystem: "scheduler",
			Name:      "advisor_lock_wait_seconds",
			Help:      "Time spent waiting for the per-advisor booking lock",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		sweptTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisor_booking",
			Subsystem: "scheduler",
			Name:      "stale_requests_cancelled_total",
			Help:      "REQUESTED appointments cancelled by the expiry worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.availabilityChecks, m.lockWait, m.sweptTotal)
	return m
}

func (m *SchedulerMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

func (m *SchedulerMetrics) ObserveAvailability(outcome string) {
	if m == nil {
		return
	}
	m.availabilityChecks.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *SchedulerMetrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptTotal.Add(float64(n))
}
