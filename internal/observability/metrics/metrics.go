package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the reservation flows.
type BookingMetrics struct {
	reserveTotal    *prometheus.CounterVec
	rescheduleTotal *prometheus.CounterVec
	reserveLatency  *prometheus.HistogramVec
	prunedSlots     prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "reserve_total",
			Help:      "Total reservation attempts by outcome",
		}, []string{"outcome"}),
		rescheduleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "reschedule_total",
			Help:      "Total reschedule operations by action and outcome",
		}, []string{"action", "outcome"}),
		reserveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "reserve_latency_seconds",
			Help:      "Latency of reservation commits",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		prunedSlots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "pruned_slots_total",
			Help:      "Total unreserved slots deleted by pruning",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reserveTotal, m.rescheduleTotal, m.reserveLatency, m.prunedSlots)
	return m
}

func (m *BookingMetrics) ObserveReserve(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.reserveTotal.WithLabelValues(outcome).Inc()
	m.reserveLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveReschedule(action, outcome string) {
	if m == nil {
		return
	}
	m.rescheduleTotal.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) AddPrunedSlots(n int64) {
	if m == nil {
		return
	}
	m.prunedSlots.Add(float64(n))
}
