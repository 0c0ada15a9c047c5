package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

type GormLedgerRepository struct {
	db     *gorm.DB
	legacy domain.LegacyStockSource
}

func NewGormLedgerRepository(db *gorm.DB, legacy domain.LegacyStockSource) *GormLedgerRepository {
	return &GormLedgerRepository{db: db, legacy: legacy}
}

func (r *GormLedgerRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.StockRecord{}, &domain.StockMovement{})
}

func (r *GormLedgerRepository) FindByKey(ctx context.Context, key locker.Key) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetOrCreate creates the ledger row on first reference, seeded from the
// product's legacy stock field. Races on creation are absorbed by the unique
// (product_id, variant_id) index.
func (r *GormLedgerRepository) GetOrCreate(ctx context.Context, key locker.Key) (*domain.StockRecord, error) {
	rec, err := r.FindByKey(ctx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	seed, found, err := r.legacy.LegacyStock(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrNotFound
	}

	rec = &domain.StockRecord{
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		StockLevel: seed,
		Status:     domain.StatusActive,
	}
	rec.RecomputeStatus()

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "variant_id"}},
			DoNothing: true,
		}).
		Create(rec).Error
	if err != nil {
		return nil, err
	}
	// Re-read so a concurrent creator's row wins.
	return r.FindByKey(ctx, key)
}

// Adjust applies a permanent stock change in one transaction with the row
// locked. Callers hold the key lock.
func (r *GormLedgerRepository) Adjust(ctx context.Context, key locker.Key, delta int, reason, referenceID string) (*domain.StockRecord, error) {
	if delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var out *domain.StockRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockRecord(tx, key)
		if err != nil {
			return err
		}

		if delta > 0 {
			err = rec.Increase(delta)
		} else {
			err = rec.Reduce(-delta)
		}
		if err != nil {
			return err
		}
		if err := rec.CheckInvariant(); err != nil {
			return err
		}

		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.StockMovement{
			ProductID:   key.ProductID,
			VariantID:   key.VariantID,
			Quantity:    delta,
			Reason:      reason,
			ReferenceID: referenceID,
		}).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReleaseReserved drops reserved quantity for a key with no reservation row
// involved. Over-release clamps to zero; the clamp is reported through the
// returned record's movement row quantity.
func (r *GormLedgerRepository) ReleaseReserved(ctx context.Context, key locker.Key, qty int, referenceID string) (*domain.StockRecord, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	var out *domain.StockRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockRecord(tx, key)
		if err != nil {
			return err
		}

		released := qty
		if rec.ReservedQuantity < qty {
			released = rec.ReservedQuantity
		}
		rec.Release(qty)
		if err := rec.CheckInvariant(); err != nil {
			return err
		}

		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.StockMovement{
			ProductID:   key.ProductID,
			VariantID:   key.VariantID,
			Quantity:    -released,
			Reason:      domain.MovementRelease,
			ReferenceID: referenceID,
		}).Error; err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormLedgerRepository) FindLowStock(ctx context.Context, limit, offset int) ([]domain.StockRecord, error) {
	var recs []domain.StockRecord
	err := r.db.WithContext(ctx).
		Where("stock_level - reserved_quantity <= low_stock_threshold").
		Where("status <> ?", domain.StatusDiscontinued).
		Order("stock_level - reserved_quantity ASC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	return recs, err
}

func (r *GormLedgerRepository) FindReserved(ctx context.Context) ([]domain.StockRecord, error) {
	var recs []domain.StockRecord
	err := r.db.WithContext(ctx).
		Where("reserved_quantity > 0").
		Find(&recs).Error
	return recs, err
}

func (r *GormLedgerRepository) Movements(ctx context.Context, key locker.Key, limit int) ([]domain.StockMovement, error) {
	var moves []domain.StockMovement
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&moves).Error
	return moves, err
}

// lockRecord loads the row FOR UPDATE inside tx.
func lockRecord(tx *gorm.DB, key locker.Key) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GormLegacyStockSource reads the catalog's flat stock column.
type GormLegacyStockSource struct {
	db *gorm.DB
}

func NewGormLegacyStockSource(db *gorm.DB) *GormLegacyStockSource {
	return &GormLegacyStockSource{db: db}
}

func (s *GormLegacyStockSource) LegacyStock(ctx context.Context, productID uint) (int, bool, error) {
	var row struct{ Stock int }
	err := s.db.WithContext(ctx).
		Table("products").
		Select("stock").
		Where("id = ?", productID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.Stock, true, nil
}

var (
	_ domain.LedgerRepository  = (*GormLedgerRepository)(nil)
	_ domain.LegacyStockSource = (*GormLegacyStockSource)(nil)
)
