// Package metrics exposes prometheus counters for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orchid"

type Metrics struct {
	ReconcileFetches  prometheus.Counter
	ReconcileJoined   prometheus.Counter
	ReconcileStale    prometheus.Counter
	ReconcileFailures prometheus.Counter
	Mutations         *prometheus.CounterVec
	PushEvents        *prometheus.CounterVec
	PushChannelOpen   prometheus.Gauge
}

// New registers the collectors on reg. A nil reg leaves them unregistered,
// which is what tests and one-shot commands use.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "reconcile_fetches_total",
			Help:      "Full-tree fetches issued to the backend.",
		}),
		ReconcileJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "reconcile_joined_total",
			Help:      "Reconcile requests that shared an in-flight fetch.",
		}),
		ReconcileStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "reconcile_stale_total",
			Help:      "Fetch results discarded because the active project changed.",
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "reconcile_failures_total",
			Help:      "Full-tree fetches that returned an error.",
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "mutations_total",
			Help:      "Mutations by action and outcome.",
		}, []string{"action", "outcome"}),
		PushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "events_total",
			Help:      "Push events received by type.",
		}, []string{"type"}),
		PushChannelOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "channel_open",
			Help:      "1 while a push channel is open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ReconcileFetches,
			m.ReconcileJoined,
			m.ReconcileStale,
			m.ReconcileFailures,
			m.Mutations,
			m.PushEvents,
			m.PushChannelOpen,
		)
	}
	return m
}

// Discard returns unregistered collectors.
func Discard() *Metrics { return New(nil) }

// Mutation outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeForbidden  = "forbidden"
	OutcomeInvalid    = "invalid"
	OutcomeAuth       = "auth"
	OutcomeValidation = "validation"
	OutcomeNetwork    = "network"
)

func (m *Metrics) ObserveMutation(action, outcome string) {
	m.Mutations.WithLabelValues(action, outcome).Inc()
}
