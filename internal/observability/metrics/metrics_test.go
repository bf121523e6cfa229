package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveReserve("success", 0.12)
	m.ObserveReserve("success", 0.05)
	m.ObserveReserve("conflict", 0.02)
	m.ObserveReschedule("propose", "success")
	m.AddPrunedSlots(40)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.reserveTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reserveTotal.WithLabelValues("conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rescheduleTotal.WithLabelValues("propose", "success")))
	assert.Equal(t, float64(40), testutil.ToFloat64(m.prunedSlots))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["salon_booking_reserve_total"])
	assert.True(t, names["salon_booking_reserve_latency_seconds"])
	assert.True(t, names["salon_booking_pruned_slots_total"])
}

func TestBookingMetricsNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics

	// A coordinator built without metrics must be able to call through.
	m.ObserveReserve("success", 0.1)
	m.ObserveReschedule("accept", "success")
	m.AddPrunedSlots(1)
}
