package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "events_ingested_total",
			Help:      "Total workflow events accepted by ingestion.",
		},
	)

	incidentsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "incidents_created_total",
			Help:      "Total incidents opened by the detector.",
		},
	)

	eventsCorrelatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "events_correlated_total",
			Help:      "Total events absorbed into existing incidents.",
		},
	)

	breakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions, partitioned by target state.",
		},
		[]string{"state"},
	)

	retriesDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "retries_denied_total",
			Help:      "Retry evaluations denied, partitioned by the gate that stopped them.",
		},
		[]string{"gate"},
	)

	retriesScheduledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "retries_scheduled_total",
			Help:      "Retry actions scheduled after all gates passed.",
		},
	)
)

// Register attaches all collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		eventsIngestedTotal,
		incidentsCreatedTotal,
		eventsCorrelatedTotal,
		breakerTransitionsTotal,
		retriesDeniedTotal,
		retriesScheduledTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func EventIngested()   { eventsIngestedTotal.Inc() }
func IncidentCreated() { incidentsCreatedTotal.Inc() }
func EventCorrelated() { eventsCorrelatedTotal.Inc() }

func BreakerTransition(state string) { breakerTransitionsTotal.WithLabelValues(state).Inc() }

// Gate labels for RetryDenied.
const (
	GateRules    = "rules"
	GateWorkflow = "workflow_limit"
	GateVendor   = "vendor_limit"
	GateBreaker  = "circuit_breaker"
)

func RetryDenied(gate string) { retriesDeniedTotal.WithLabelValues(gate).Inc() }
func RetryScheduled()         { retriesScheduledTotal.Inc() }
