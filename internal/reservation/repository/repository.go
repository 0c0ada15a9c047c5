package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mizizzi/inventory-engine/internal/reservation/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// GormReservationRepository persists reservations. Every composite operation
// mutates the ledger row and the reservation row in one transaction, with
// both rows locked FOR UPDATE, so a crash between the two writes leaves
// nothing half-applied.
type GormReservationRepository struct {
	db     *gorm.DB
	legacy stockdomain.LegacyStockSource
}

func NewGormReservationRepository(db *gorm.DB, legacy stockdomain.LegacyStockSource) *GormReservationRepository {
	return &GormReservationRepository{db: db, legacy: legacy}
}

func (r *GormReservationRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Reservation{})
}

func (r *GormReservationRepository) CreateWithReserve(ctx context.Context, res *domain.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := lockOrCreateStock(ctx, tx, r.legacy, res.Key())
		if err != nil {
			return err
		}

		if err := rec.Reserve(res.Quantity); err != nil {
			return err
		}
		if err := rec.CheckInvariant(); err != nil {
			return err
		}

		if err := tx.Save(rec).Error; err != nil {
			return err
		}
		if err := tx.Create(res).Error; err != nil {
			return err
		}
		return tx.Create(&stockdomain.StockMovement{
			ProductID:   res.ProductID,
			VariantID:   res.VariantID,
			Quantity:    res.Quantity,
			Reason:      stockdomain.MovementReserve,
			ReferenceID: res.ID.String(),
		}).Error
	})
}

func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *GormReservationRepository) FindActiveByCart(ctx context.Context, cartID uuid.UUID) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND status = ?", cartID, domain.StatusActive).
		Find(&out).Error
	return out, err
}

func (r *GormReservationRepository) Renew(ctx context.Context, id uuid.UUID, until time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, domain.StatusActive).
		Update("expires_at", until)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *GormReservationRepository) CancelWithRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.terminate(ctx, id, domain.StatusCancelled)
}

func (r *GormReservationRepository) ExpireWithRelease(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.terminate(ctx, id, domain.StatusExpired)
}

// terminate CASes ACTIVE -> target and releases the held ledger quantity in
// the same transaction. The reservation row is locked first, then the stock
// row; all composite operations follow that order.
func (r *GormReservationRepository) terminate(ctx context.Context, id uuid.UUID, target domain.Status) (bool, error) {
	var won bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res domain.Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&res, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if res.Status != domain.StatusActive {
			return nil // another transition won; no-op
		}

		rec, err := lockStock(tx, res.Key())
		if err != nil {
			return err
		}
		if clamped := rec.Release(res.Quantity); clamped {
			logger.Error(ctx).
				Str("reservation_id", res.ID.String()).
				Uint("product_id", res.ProductID).
				Uint("variant_id", res.VariantID).
				Int("quantity", res.Quantity).
				Msg("Over-release clamped; upstream accounting bug")
		}
		if err := rec.CheckInvariant(); err != nil {
			return err
		}
		if err := tx.Save(rec).Error; err != nil {
			return err
		}

		if err := tx.Model(&res).Update("status", target).Error; err != nil {
			return err
		}
		if err := tx.Create(&stockdomain.StockMovement{
			ProductID:   res.ProductID,
			VariantID:   res.VariantID,
			Quantity:    -res.Quantity,
			Reason:      stockdomain.MovementRelease,
			ReferenceID: res.ID.String(),
		}).Error; err != nil {
			return err
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (r *GormReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusActive).
		Where("expires_at < ? OR cart_id IN (SELECT id FROM carts WHERE expires_at < ?)", now, now).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *GormReservationRepository) SumActiveByKey(ctx context.Context) ([]domain.KeyReserved, error) {
	var out []domain.KeyReserved
	err := r.db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Select("product_id, variant_id, SUM(quantity) AS total").
		Where("status = ?", domain.StatusActive).
		Group("product_id, variant_id").
		Scan(&out).Error
	return out, err
}

// lockStock loads the ledger row FOR UPDATE.
func lockStock(tx *gorm.DB, key locker.Key) (*stockdomain.StockRecord, error) {
	var rec stockdomain.StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, stockdomain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// lockOrCreateStock locks the ledger row, lazily creating it from the
// catalog's legacy stock field on first reference.
func lockOrCreateStock(ctx context.Context, tx *gorm.DB, legacy stockdomain.LegacyStockSource, key locker.Key) (*stockdomain.StockRecord, error) {
	rec, err := lockStock(tx, key)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, stockdomain.ErrNotFound) {
		return nil, err
	}

	seed, found, err := legacy.LegacyStock(ctx, key.ProductID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, stockdomain.ErrNotFound
	}

	fresh := &stockdomain.StockRecord{
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		StockLevel: seed,
		Status:     stockdomain.StatusActive,
	}
	fresh.RecomputeStatus()
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "variant_id"}},
		DoNothing: true,
	}).Create(fresh).Error
	if err != nil {
		return nil, err
	}
	return lockStock(tx, key)
}

var _ domain.Repository = (*GormReservationRepository)(nil)
