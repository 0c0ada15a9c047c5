package reservation

import (
	"context"
	"time"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

const sweepBatchSize = 500

// Sweeper periodically expires stale reservations and returns their held
// stock to availability, independent of user traffic. Cart expiry cascades:
// a reservation whose owning cart expired is swept even if its own deadline
// has not passed. Each cycle also reconciles the ledger's reserved counts
// against the sum of ACTIVE reservations and reports divergence as a
// consistency violation.
type Sweeper struct {
	repo     domain.Repository
	ledger   stockdomain.LedgerRepository
	locks    locker.KeyLocker
	metrics  *metrics.EngineMetrics
	interval time.Duration
	lockWait time.Duration
}

// NewSweeper creates a sweeper ticking at interval.
func NewSweeper(repo domain.Repository, ledger stockdomain.LedgerRepository, locks locker.KeyLocker, m *metrics.EngineMetrics, interval, lockWait time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		ledger:   ledger,
		locks:    locks,
		metrics:  m,
		interval: interval,
		lockWait: lockWait,
	}
}

// Run blocks sweeping until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Logger.Info().
		Dur("interval", s.interval).
		Msg("Expiry sweeper started")

	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info().Msg("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep cycle and returns how many reservations it
// expired.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	started := time.Now()
	expired := 0

	stale, err := s.repo.FindExpired(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Sweep: listing expired reservations failed")
		return 0
	}

	for i := range stale {
		res := &stale[i]
		if s.expireOne(ctx, res) {
			expired++
		}
	}

	s.reconcile(ctx)

	s.metrics.SweepDurationSeconds.Observe(time.Since(started).Seconds())
	if expired > 0 {
		s.metrics.SweepExpiredPerCycle.Observe(float64(expired))
		logger.Info(ctx).
			Int("expired", expired).
			Dur("took", time.Since(started)).
			Msg("Sweep cycle released expired reservations")
	}
	return expired
}

func (s *Sweeper) expireOne(ctx context.Context, res *domain.Reservation) bool {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	handle, err := s.locks.Acquire(lockCtx, res.Key())
	if err != nil {
		// Key is busy; the reservation stays in the next cycle's batch.
		return false
	}
	defer handle.Release()

	won, err := s.repo.ExpireWithRelease(ctx, res.ID)
	if err != nil {
		logger.Error(ctx).Err(err).
			Str("reservation_id", res.ID.String()).
			Msg("Sweep: expiring reservation failed")
		return false
	}
	if !won {
		return false
	}

	s.metrics.ReservationsExpired.Inc()
	return true
}

// reconcile compares reserved_quantity per ledger row with the summed ACTIVE
// reservation quantities. Divergence means the invariant was already broken
// somewhere; it is counted and logged, never silently repaired.
func (s *Sweeper) reconcile(ctx context.Context) {
	sums, err := s.repo.SumActiveByKey(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Sweep: reservation sum query failed")
		return
	}
	reserved, err := s.ledger.FindReserved(ctx)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("Sweep: ledger reserved query failed")
		return
	}

	byKey := make(map[locker.Key]int, len(sums))
	for _, sum := range sums {
		byKey[locker.Key{ProductID: sum.ProductID, VariantID: sum.VariantID}] = sum.Total
	}

	for i := range reserved {
		rec := &reserved[i]
		key := rec.Key()
		if got := byKey[key]; got != rec.ReservedQuantity {
			s.metrics.ConsistencyViolations.Inc()
			logger.Error(ctx).
				Uint("product_id", key.ProductID).
				Uint("variant_id", key.VariantID).
				Int("ledger_reserved", rec.ReservedQuantity).
				Int("reservation_sum", got).
				Msg("Consistency violation: ledger reserved diverges from active reservations")
		}
		delete(byKey, key)
	}
	for key, total := range byKey {
		s.metrics.ConsistencyViolations.Inc()
		logger.Error(ctx).
			Uint("product_id", key.ProductID).
			Uint("variant_id", key.VariantID).
			Int("ledger_reserved", 0).
			Int("reservation_sum", total).
			Msg("Consistency violation: active reservations with no ledger reserve")
	}
}
