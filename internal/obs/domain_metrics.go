package obs

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics tracks booking-flow outcomes: submissions, promo decisions
// and side-effect deliveries.
type DomainMetrics struct {
	BookingsCreated  prometheus.Counter
	BookingFailures  *prometheus.CounterVec
	PromoDecisions   *prometheus.CounterVec
	SideEffectsTotal *prometheus.CounterVec
	SideEffectDur    *prometheus.HistogramVec
	QueueDepth       *prometheus.GaugeVec
}

// NewDomainMetrics registers the booking-domain collectors on the registry.
func NewDomainMetrics(namespace string, registry *prometheus.Registry) *DomainMetrics {
	bookingsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Bookings accepted and persisted.",
	})
	bookingFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_failures_total",
		Help:      "Rejected booking submissions by error code.",
	}, []string{"code"})
	promoDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promo_decisions_total",
		Help:      "Promo evaluations by outcome (applied, rejected code).",
	}, []string{"outcome"})
	sideEffectsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "side_effects_total",
		Help:      "Side-effect deliveries by kind and result.",
	}, []string{"kind", "result"})
	sideEffectDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "side_effect_duration_ms",
		Help:      "Side-effect handler latency in milliseconds.",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"kind"})
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "task_queue_depth",
		Help:      "Tasks per queue and state.",
	}, []string{"kind", "state"})

	if registry != nil {
		registry.MustRegister(bookingsCreated, bookingFailures, promoDecisions, sideEffectsTotal, sideEffectDur, queueDepth)
	}
	return &DomainMetrics{
		BookingsCreated:  bookingsCreated,
		BookingFailures:  bookingFailures,
		PromoDecisions:   promoDecisions,
		SideEffectsTotal: sideEffectsTotal,
		SideEffectDur:    sideEffectDur,
		QueueDepth:       queueDepth,
	}
}
