package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

var tracer = otel.Tracer("stock-repository")

// TracingLedgerRepository wraps a LedgerRepository with OpenTelemetry spans.
type TracingLedgerRepository struct {
	inner domain.LedgerRepository
}

func NewTracingLedgerRepository(inner domain.LedgerRepository) *TracingLedgerRepository {
	return &TracingLedgerRepository{inner: inner}
}

func (r *TracingLedgerRepository) FindByKey(ctx context.Context, key locker.Key) (*domain.StockRecord, error) {
	ctx, span := startKeySpan(ctx, "ledger.FindByKey", key)
	defer span.End()

	rec, err := r.inner.FindByKey(ctx, key)
	return rec, record(span, rec, err)
}

func (r *TracingLedgerRepository) GetOrCreate(ctx context.Context, key locker.Key) (*domain.StockRecord, error) {
	ctx, span := startKeySpan(ctx, "ledger.GetOrCreate", key)
	defer span.End()

	rec, err := r.inner.GetOrCreate(ctx, key)
	return rec, record(span, rec, err)
}

func (r *TracingLedgerRepository) Adjust(ctx context.Context, key locker.Key, delta int, reason, referenceID string) (*domain.StockRecord, error) {
	ctx, span := startKeySpan(ctx, "ledger.Adjust", key)
	span.SetAttributes(
		attribute.Int("stock.delta", delta),
		attribute.String("stock.reason", reason),
	)
	defer span.End()

	rec, err := r.inner.Adjust(ctx, key, delta, reason, referenceID)
	return rec, record(span, rec, err)
}

func (r *TracingLedgerRepository) ReleaseReserved(ctx context.Context, key locker.Key, qty int, referenceID string) (*domain.StockRecord, error) {
	ctx, span := startKeySpan(ctx, "ledger.ReleaseReserved", key)
	span.SetAttributes(attribute.Int("stock.quantity", qty))
	defer span.End()

	rec, err := r.inner.ReleaseReserved(ctx, key, qty, referenceID)
	return rec, record(span, rec, err)
}

func (r *TracingLedgerRepository) FindLowStock(ctx context.Context, limit, offset int) ([]domain.StockRecord, error) {
	ctx, span := tracer.Start(ctx, "ledger.FindLowStock",
		trace.WithAttributes(
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	recs, err := r.inner.FindLowStock(ctx, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(recs)))
	return recs, nil
}

func (r *TracingLedgerRepository) FindReserved(ctx context.Context) ([]domain.StockRecord, error) {
	ctx, span := tracer.Start(ctx, "ledger.FindReserved")
	defer span.End()

	recs, err := r.inner.FindReserved(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(recs)))
	return recs, nil
}

func (r *TracingLedgerRepository) Movements(ctx context.Context, key locker.Key, limit int) ([]domain.StockMovement, error) {
	ctx, span := startKeySpan(ctx, "ledger.Movements", key)
	defer span.End()

	moves, err := r.inner.Movements(ctx, key, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(moves)))
	return moves, nil
}

func startKeySpan(ctx context.Context, name string, key locker.Key) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.Int("stock.product_id", int(key.ProductID)),
			attribute.Int("stock.variant_id", int(key.VariantID)),
		),
	)
}

func record(span trace.Span, rec *domain.StockRecord, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.Int("stock.level", rec.StockLevel),
		attribute.Int("stock.reserved", rec.ReservedQuantity),
	)
	return nil
}

var _ domain.LedgerRepository = (*TracingLedgerRepository)(nil)
