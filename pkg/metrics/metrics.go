package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics holds the business metrics the engine exposes on /metrics.
type EngineMetrics struct {
	ReservationsCreated   prometheus.Counter
	ReservationsExpired   prometheus.Counter
	ReservationsCancelled prometheus.Counter
	InsufficientStock     prometheus.Counter
	CheckoutCommits       prometheus.Counter
	CheckoutRestores      prometheus.Counter
	ConsistencyViolations prometheus.Counter
	LockWaitSeconds       prometheus.Histogram
	SweepDurationSeconds  prometheus.Histogram
	SweepExpiredPerCycle  prometheus.Histogram
}

// New registers all engine metrics on the given registerer.
func New(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		ReservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservations_created_total",
			Help: "Number of stock reservations successfully created.",
		}),
		ReservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservations_expired_total",
			Help: "Number of reservations expired by the sweeper.",
		}),
		ReservationsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_reservations_cancelled_total",
			Help: "Number of reservations explicitly cancelled.",
		}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_insufficient_stock_total",
			Help: "Number of reserve attempts rejected for insufficient stock.",
		}),
		CheckoutCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_checkout_commits_total",
			Help: "Number of successful checkout commits.",
		}),
		CheckoutRestores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_checkout_restores_total",
			Help: "Number of stock restores on cancel/return.",
		}),
		ConsistencyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_consistency_violations_total",
			Help: "Number of detected ledger invariant breaches.",
		}),
		LockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_lock_wait_seconds",
			Help:    "Time spent waiting for per-key locks.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		SweepDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_sweep_duration_seconds",
			Help:    "Duration of each expiry sweep cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		SweepExpiredPerCycle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_sweep_expired_per_cycle",
			Help:    "Reservations expired per sweep cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	reg.MustRegister(
		m.ReservationsCreated,
		m.ReservationsExpired,
		m.ReservationsCancelled,
		m.InsufficientStock,
		m.CheckoutCommits,
		m.CheckoutRestores,
		m.ConsistencyViolations,
		m.LockWaitSeconds,
		m.SweepDurationSeconds,
		m.SweepExpiredPerCycle,
	)

	return m
}

// NewDefault registers on the default prometheus registry.
func NewDefault() *EngineMetrics {
	return New(prometheus.DefaultRegisterer)
}

// NewUnregistered returns metrics backed by a throwaway registry, for tests.
func NewUnregistered() *EngineMetrics {
	return New(prometheus.NewRegistry())
}
