package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Mutations           *prometheus.CounterVec
	MutationDuration    *prometheus.HistogramVec
	Transitions         *prometheus.CounterVec
	InvariantViolations *prometheus.CounterVec
	LockTimeouts        prometheus.Counter
	CacheRequests       *prometheus.CounterVec
	Retries             *prometheus.CounterVec
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_mutations_total",
				Help: "Total balance mutations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_mutation_duration_seconds",
				Help:    "Balance mutation duration in seconds, retries included.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transitions_total",
				Help: "Total entry state transitions.",
			},
			[]string{"status", "outcome"},
		),
		InvariantViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_invariant_violations_total",
				Help: "Total rejected mutations by violated invariant.",
			},
			[]string{"invariant"},
		),
		LockTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_lock_timeouts_total",
				Help: "Total row lock acquisitions that timed out.",
			},
		),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_requests_total",
				Help: "Total cache lookups by key kind and result.",
			},
			[]string{"kind", "result"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_retries_total",
				Help: "Total retried store operations.",
			},
			[]string{"op"},
		),
	}

	registry.MustRegister(
		m.Mutations,
		m.MutationDuration,
		m.Transitions,
		m.InvariantViolations,
		m.LockTimeouts,
		m.CacheRequests,
		m.Retries,
	)
	return m
}

func (m *Metrics) ObserveMutation(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(op, outcome).Inc()
	m.MutationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) IncTransition(status, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status, outcome).Inc()
}

func (m *Metrics) IncInvariantViolation(invariant Invariant) {
	if m == nil {
		return
	}
	m.InvariantViolations.WithLabelValues(string(invariant)).Inc()
}

func (m *Metrics) IncLockTimeout() {
	if m == nil {
		return
	}
	m.LockTimeouts.Inc()
}

func (m *Metrics) IncCache(kind, result string) {
	if m == nil {
		return
	}
	m.CacheRequests.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(op).Inc()
}
