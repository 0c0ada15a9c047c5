package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mizizzi/inventory-engine/internal/cart/domain"
	resdomain "github.com/mizizzi/inventory-engine/internal/reservation/domain"
)

type GormCartRepository struct {
	db *gorm.DB
}

func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

func (r *GormCartRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Cart{}, &domain.CartItem{})
}

func (r *GormCartRepository) FindWithItems(ctx context.Context, id uuid.UUID) (*domain.Cart, error) {
	var cart domain.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&cart, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormCartRepository) UpdateItemPrice(ctx context.Context, itemID uint, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&domain.CartItem{}).
		Where("id = ?", itemID).
		Update("price", price).Error
}

func (r *GormCartRepository) Touch(ctx context.Context, id uuid.UUID, until time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Cart{}).
		Where("id = ? AND is_active = true", id).
		Update("expires_at", until)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Merge folds the source cart into the destination in one transaction. The
// two cart rows are locked in id order so two concurrent merges cannot
// deadlock. Reservation holds change owner without touching the ledger:
// destination rows are inserted first, then the source rows are marked
// CANCELLED with no release, because the transferred rows now own the held
// quantity.
func (r *GormCartRepository) Merge(ctx context.Context, sourceID, destID uuid.UUID, renewUntil time.Time) (*domain.Cart, error) {
	if sourceID == destID {
		return r.FindWithItems(ctx, destID)
	}

	var merged *domain.Cart
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, second := sourceID, destID
		if destID.String() < sourceID.String() {
			first, second = destID, sourceID
		}
		for _, id := range []uuid.UUID{first, second} {
			var c domain.Cart
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&c, "id = ?", id).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
		}

		var srcItems []domain.CartItem
		if err := tx.Where("cart_id = ?", sourceID).Find(&srcItems).Error; err != nil {
			return err
		}
		for _, item := range srcItems {
			var existing domain.CartItem
			err := tx.Where("cart_id = ? AND product_id = ? AND variant_id = ?",
				destID, item.ProductID, item.VariantID).
				First(&existing).Error
			switch {
			case err == nil:
				if err := tx.Model(&existing).
					Update("quantity", existing.Quantity+item.Quantity).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				moved := domain.CartItem{
					CartID:    destID,
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Quantity:  item.Quantity,
					Price:     item.Price,
				}
				if err := tx.Create(&moved).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		// The folded source rows must not survive on the deactivated cart: a
		// later reactivation or audit read would double-count the quantities.
		if len(srcItems) > 0 {
			if err := tx.Where("cart_id = ?", sourceID).
				Delete(&domain.CartItem{}).Error; err != nil {
				return err
			}
		}

		// Re-home reservations: create destination rows before cancelling
		// the source rows so a failure mid-way rolls everything back and
		// never leaves stock double-reserved or silently released.
		var srcReservations []resdomain.Reservation
		if err := tx.Where("cart_id = ? AND status = ?", sourceID, resdomain.StatusActive).
			Find(&srcReservations).Error; err != nil {
			return err
		}
		for _, res := range srcReservations {
			transferred := resdomain.Reservation{
				ID:        uuid.New(),
				CartID:    destID,
				UserID:    res.UserID,
				ProductID: res.ProductID,
				VariantID: res.VariantID,
				Quantity:  res.Quantity,
				Status:    resdomain.StatusActive,
				ExpiresAt: renewUntil,
			}
			if err := tx.Create(&transferred).Error; err != nil {
				return err
			}
		}
		if len(srcReservations) > 0 {
			if err := tx.Model(&resdomain.Reservation{}).
				Where("cart_id = ? AND status = ?", sourceID, resdomain.StatusActive).
				Update("status", resdomain.StatusCancelled).Error; err != nil {
				return err
			}
		}

		updates := map[string]any{"is_active": false}
		if err := tx.Model(&domain.Cart{}).Where("id = ?", sourceID).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Cart{}).Where("id = ?", destID).
			Update("expires_at", renewUntil).Error; err != nil {
			return err
		}
		if err := tx.Model(&resdomain.Reservation{}).
			Where("cart_id = ? AND status = ?", destID, resdomain.StatusActive).
			Update("expires_at", renewUntil).Error; err != nil {
			return err
		}

		var out domain.Cart
		if err := tx.Preload("Items").First(&out, "id = ?", destID).Error; err != nil {
			return err
		}
		merged = &out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}

var _ domain.CartRepository = (*GormCartRepository)(nil)
