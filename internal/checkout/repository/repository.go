package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	cartdomain "github.com/mizizzi/inventory-engine/internal/cart/domain"
	"github.com/mizizzi/inventory-engine/internal/checkout/domain"
	resdomain "github.com/mizizzi/inventory-engine/internal/reservation/domain"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/logger"
)

// GormOrderRepository runs checkout commits and restores. Every composite
// operation is one transaction with row locks; a failure on any line rolls
// the whole batch back.
type GormOrderRepository struct {
	db     *gorm.DB
	legacy stockdomain.LegacyStockSource
}

func NewGormOrderRepository(db *gorm.DB, legacy stockdomain.LegacyStockSource) *GormOrderRepository {
	return &GormOrderRepository{db: db, legacy: legacy}
}

func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Order{}, &domain.OrderItem{}, &domain.CouponUsage{})
}

// CommitOrder inserts the order idempotently on OrderRef, then for each
// line verifies the backing reservation, reduces the ledger, releases the
// matching hold and completes the reservation. Callers hold the key locks
// for every line.
func (r *GormOrderRepository) CommitOrder(ctx context.Context, order *domain.Order) (*domain.Order, bool, error) {
	var stored *domain.Order
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.InventoryState = domain.InventoryPending
		insert := tx.Omit("Items").
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_ref"}},
				DoNothing: true,
			}).
			Create(order)
		if insert.Error != nil {
			return insert.Error
		}
		if insert.RowsAffected == 0 {
			// Duplicate completion event; hand back what the first one did.
			existing, err := findByRef(tx, order.OrderRef)
			if err != nil {
				return err
			}
			stored = existing
			return nil
		}
		created = true

		// Row locks are taken in key order. Reservation row before stock
		// row, matching the reservation store.
		items := append([]domain.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool { return items[i].Key().Less(items[j].Key()) })
		for i := range items {
			items[i].OrderID = order.ID
			if err := r.commitLine(tx, order, &items[i]); err != nil {
				return err
			}
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		order.Items = items

		if order.CouponCode != "" {
			if err := r.recordCouponUsage(tx, order); err != nil {
				return err
			}
		}
		if order.CartID != nil {
			if err := tx.Model(&cartdomain.Cart{}).
				Where("id = ?", *order.CartID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}

		order.InventoryState = domain.InventoryCommitted
		if err := tx.Model(&domain.Order{}).
			Where("id = ?", order.ID).
			Update("inventory_state", domain.InventoryCommitted).Error; err != nil {
			return err
		}
		stored = order
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

// commitLine deducts one line from the ledger. A reservation-backed line
// must still hold an ACTIVE reservation covering the quantity; the hold is
// released in full as the deduction lands, so a reservation larger than the
// committed line never leaves units stuck in reserved.
func (r *GormOrderRepository) commitLine(tx *gorm.DB, order *domain.Order, item *domain.OrderItem) error {
	var res *resdomain.Reservation
	if item.ReservationID != nil {
		var row resdomain.Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", *item.ReservationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Newf(errs.KindInvalidState,
				"reservation %s for product %d no longer exists", *item.ReservationID, item.ProductID)
		}
		if err != nil {
			return err
		}
		if row.Status != resdomain.StatusActive {
			return errs.Newf(errs.KindInvalidState,
				"reservation %s is %s, not ACTIVE", row.ID, row.Status)
		}
		if row.Quantity < item.Quantity {
			return errs.Newf(errs.KindInvalidState,
				"reservation %s holds %d units but the order needs %d", row.ID, row.Quantity, item.Quantity)
		}
		res = &row
	}

	rec, err := r.lockOrCreateStock(tx, item.Key())
	if err != nil {
		return err
	}
	if res != nil {
		clamped, err := rec.CompleteHold(item.Quantity, res.Quantity)
		if err != nil {
			return err
		}
		if clamped {
			logger.Error(tx.Statement.Context).
				Uint("product_id", item.ProductID).
				Uint("variant_id", item.VariantID).
				Msg("Over-release clamped during commit; upstream accounting bug")
		}
	} else if err := rec.Reduce(item.Quantity); err != nil {
		return err
	}
	if err := rec.CheckInvariant(); err != nil {
		return err
	}
	if err := tx.Save(rec).Error; err != nil {
		return err
	}

	movements := []stockdomain.StockMovement{{
		ProductID:   item.ProductID,
		VariantID:   item.VariantID,
		Quantity:    -item.Quantity,
		Reason:      stockdomain.MovementReduce,
		ReferenceID: order.OrderRef.String(),
	}}
	if res != nil {
		movements = append(movements, stockdomain.StockMovement{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			Quantity:    -res.Quantity,
			Reason:      stockdomain.MovementRelease,
			ReferenceID: res.ID.String(),
		})
		if err := tx.Model(&resdomain.Reservation{}).
			Where("id = ?", res.ID).
			Update("status", resdomain.StatusCompleted).Error; err != nil {
			return err
		}
	}
	return tx.Create(&movements).Error
}

// recordCouponUsage inserts the usage row keyed by (coupon_code, order_ref)
// and bumps used_count only when the insert landed, so replays never double
// count.
func (r *GormOrderRepository) recordCouponUsage(tx *gorm.DB, order *domain.Order) error {
	usage := domain.CouponUsage{
		CouponCode: order.CouponCode,
		OrderRef:   order.OrderRef,
		UserID:     order.UserID,
	}
	insert := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&usage)
	if insert.Error != nil {
		return insert.Error
	}
	if insert.RowsAffected == 0 {
		return nil
	}
	return tx.Table("coupons").
		Where("code = ?", order.CouponCode).
		UpdateColumn("used_count", gorm.Expr("used_count + 1")).Error
}

// RestoreOrder returns a committed order's units to the ledger. The CAS on
// inventory_state makes repeated cancellation events harmless.
func (r *GormOrderRepository) RestoreOrder(ctx context.Context, orderRef uuid.UUID) (*domain.Order, bool, error) {
	var stored *domain.Order
	won := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order domain.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "order_ref = ?", orderRef).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if order.InventoryState != domain.InventoryCommitted {
			stored = &order
			return nil
		}

		var items []domain.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Key().Less(items[j].Key()) })
		for _, item := range items {
			rec, err := r.lockOrCreateStock(tx, item.Key())
			if err != nil {
				return err
			}
			if err := rec.Increase(item.Quantity); err != nil {
				return err
			}
			if err := rec.CheckInvariant(); err != nil {
				return err
			}
			if err := tx.Save(rec).Error; err != nil {
				return err
			}
			movement := stockdomain.StockMovement{
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				Quantity:    item.Quantity,
				Reason:      stockdomain.MovementRestock,
				ReferenceID: order.OrderRef.String(),
			}
			if err := tx.Create(&movement).Error; err != nil {
				return err
			}
		}

		order.InventoryState = domain.InventoryRestored
		if err := tx.Model(&domain.Order{}).
			Where("id = ?", order.ID).
			Update("inventory_state", domain.InventoryRestored).Error; err != nil {
			return err
		}
		order.Items = items
		stored = &order
		won = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, won, nil
}

func (r *GormOrderRepository) FindByRef(ctx context.Context, orderRef uuid.UUID) (*domain.Order, error) {
	return findByRef(r.db.WithContext(ctx), orderRef)
}

func findByRef(tx *gorm.DB, orderRef uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := tx.Preload("Items").First(&order, "order_ref = ?", orderRef).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// lockOrCreateStock locks the key's ledger row, lazily creating it from the
// catalog's legacy stock on first reference.
func (r *GormOrderRepository) lockOrCreateStock(tx *gorm.DB, key locker.Key) (*stockdomain.StockRecord, error) {
	var rec stockdomain.StockRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seed := 0
	if stock, found, err := r.legacy.LegacyStock(tx.Statement.Context, key.ProductID); err != nil {
		return nil, err
	} else if found {
		seed = stock
	}
	fresh := stockdomain.StockRecord{
		ProductID:  key.ProductID,
		VariantID:  key.VariantID,
		StockLevel: seed,
		Status:     stockdomain.StatusActive,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, err
	}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND variant_id = ?", key.ProductID, key.VariantID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ domain.Repository = (*GormOrderRepository)(nil)
