package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSchedulerMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.ObserveBooking("created")
	m.ObserveBooking("created")
	m.ObserveBooking("slot_unavailable")
	m.ObserveTransition("CANCELLED", "ok")
	m.ObserveAvailability("ok")
	m.ObserveLockWait(15 * time.Millisecond)
	m.AddSwept(3)
	m.AddSwept(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("CANCELLED", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweptTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestSchedulerMetricsNilSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.ObserveBooking("created")
	m.ObserveTransition("CONFIRMED", "ok")
	m.ObserveAvailability("ok")
	m.ObserveLockWait(time.Second)
	m.AddSwept(1)
}
