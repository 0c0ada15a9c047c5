package domain

import (
	"context"
	"time"

	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// StockStatus is the lifecycle state of a stock record.
type StockStatus string

const (
	StatusActive       StockStatus = "active"
	StatusOutOfStock   StockStatus = "out_of_stock"
	StatusDiscontinued StockStatus = "discontinued"
)

// Sentinel errors for ledger operations.
var (
	ErrNotFound          = errs.New(errs.KindNotFound, "stock record not found")
	ErrInsufficientStock = errs.New(errs.KindInsufficientStock, "insufficient stock")
	ErrInvalidQuantity   = errs.New(errs.KindInvalidQuantity, "quantity must be positive")
	ErrConsistency       = errs.New(errs.KindConsistencyViolation, "stock ledger invariant breached")
)

// StockRecord tracks total and reserved units for one (product, variant)
// key. VariantID zero means the product has no variants. Mutations happen
// only through the methods below, inside a transaction, while the key's
// lock is held.
type StockRecord struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	ProductID         uint        `json:"product_id" gorm:"not null;uniqueIndex:idx_stock_key"`
	VariantID         uint        `json:"variant_id,omitempty" gorm:"not null;default:0;uniqueIndex:idx_stock_key"`
	StockLevel        int         `json:"stock_level" gorm:"not null;default:0"`
	ReservedQuantity  int         `json:"reserved_quantity" gorm:"not null;default:0"`
	ReorderLevel      int         `json:"reorder_level" gorm:"not null;default:0"`
	LowStockThreshold int         `json:"low_stock_threshold" gorm:"not null;default:5"`
	Status            StockStatus `json:"status" gorm:"not null;default:'active'"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"last_updated"`
}

// TableName specifies the table name
func (StockRecord) TableName() string {
	return "stock_records"
}

// Key returns the lock key for this record.
func (s *StockRecord) Key() locker.Key {
	return locker.Key{ProductID: s.ProductID, VariantID: s.VariantID}
}

// AvailableQuantity is the number of units a shopper may still add to a
// cart. Clamped to zero so a transient over-reservation never surfaces as a
// negative number.
func (s *StockRecord) AvailableQuantity() int {
	if avail := s.StockLevel - s.ReservedQuantity; avail > 0 {
		return avail
	}
	return 0
}

// IsLowStock reports whether available stock dropped to the threshold.
func (s *StockRecord) IsLowStock() bool {
	return s.AvailableQuantity() <= s.LowStockThreshold
}

// Reserve holds qty units against an in-progress cart.
func (s *StockRecord) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > s.AvailableQuantity() {
		return ErrInsufficientStock
	}
	s.ReservedQuantity += qty
	s.RecomputeStatus()
	return nil
}

// Release returns qty held units to availability. Over-release is clamped,
// never an error; the caller logs it as an upstream bug when clamped is true.
func (s *StockRecord) Release(qty int) (clamped bool) {
	s.ReservedQuantity -= qty
	if s.ReservedQuantity < 0 {
		s.ReservedQuantity = 0
		clamped = true
	}
	s.RecomputeStatus()
	return clamped
}

// Reduce permanently deducts qty units at commit time. It does not touch
// ReservedQuantity; callers pair it with a Release of whatever hold backed
// the deduction.
func (s *StockRecord) Reduce(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > s.StockLevel {
		return ErrInsufficientStock
	}
	s.StockLevel -= qty
	s.RecomputeStatus()
	return nil
}

// CompleteHold finalizes a reservation at commit time: qty units leave the
// shelf and the reservation's entire heldQty comes off the reserved count.
// Releasing only the committed quantity would strand heldQty-qty units as
// reserved forever whenever a hold is larger than the line it backs.
func (s *StockRecord) CompleteHold(qty, heldQty int) (clamped bool, err error) {
	if err := s.Reduce(qty); err != nil {
		return false, err
	}
	return s.Release(heldQty), nil
}

// Increase restocks qty units.
func (s *StockRecord) Increase(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	s.StockLevel += qty
	s.RecomputeStatus()
	return nil
}

// RecomputeStatus derives the status from availability. Discontinued is a
// manual flag and is never touched here.
func (s *StockRecord) RecomputeStatus() {
	if s.Status == StatusDiscontinued {
		return
	}
	if s.AvailableQuantity() <= 0 {
		s.Status = StatusOutOfStock
	} else {
		s.Status = StatusActive
	}
}

// CheckInvariant verifies 0 <= reserved <= stock. A breach means the ledger
// is already corrupt and must be surfaced, never repaired in place.
func (s *StockRecord) CheckInvariant() error {
	if s.ReservedQuantity < 0 || s.StockLevel < 0 || s.ReservedQuantity > s.StockLevel {
		return errs.Newf(errs.KindConsistencyViolation,
			"stock record product=%d variant=%d stock=%d reserved=%d",
			s.ProductID, s.VariantID, s.StockLevel, s.ReservedQuantity)
	}
	return nil
}

// Movement reasons.
const (
	MovementReserve = "reserve"
	MovementRelease = "release"
	MovementReduce  = "reduce"
	MovementRestock = "restock"
	MovementAdjust  = "adjust"
)

// StockMovement is an audit row appended for every ledger mutation.
type StockMovement struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ProductID   uint      `json:"product_id" gorm:"not null;index:idx_movement_key"`
	VariantID   uint      `json:"variant_id,omitempty" gorm:"not null;default:0;index:idx_movement_key"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	Reason      string    `json:"reason" gorm:"not null"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// Availability is the read-model answer for a single key.
type Availability struct {
	ProductID   uint        `json:"product_id"`
	VariantID   uint        `json:"variant_id,omitempty"`
	Requested   int         `json:"requested"`
	Available   int         `json:"available"`
	InStock     bool        `json:"in_stock"`
	IsLowStock  bool        `json:"is_low_stock"`
	Status      StockStatus `json:"status"`
	LegacyStock bool        `json:"legacy_stock,omitempty"`
}

// LedgerRepository is the data-access contract for stock records.
type LedgerRepository interface {
	// FindByKey returns the record for key, or ErrNotFound.
	FindByKey(ctx context.Context, key locker.Key) (*StockRecord, error)
	// GetOrCreate lazily creates the record on first reference, seeding
	// stock from the product's legacy stock field.
	GetOrCreate(ctx context.Context, key locker.Key) (*StockRecord, error)
	// Adjust applies a permanent stock change (positive restock, negative
	// deduction) in one transaction, appending a movement row. Must be
	// called with the key's lock held.
	Adjust(ctx context.Context, key locker.Key, delta int, reason, referenceID string) (*StockRecord, error)
	// ReleaseReserved returns qty held units to availability without a
	// backing reservation row, clamping at zero. Must be called with the
	// key's lock held.
	ReleaseReserved(ctx context.Context, key locker.Key, qty int, referenceID string) (*StockRecord, error)
	// FindLowStock lists records at or below their low stock threshold.
	FindLowStock(ctx context.Context, limit, offset int) ([]StockRecord, error)
	// FindReserved lists records currently holding reserved quantity.
	FindReserved(ctx context.Context) ([]StockRecord, error)
	// Movements lists recent movements for a key.
	Movements(ctx context.Context, key locker.Key, limit int) ([]StockMovement, error)
}

// LegacyStockSource reads the catalog's flat stock field, used to seed lazy
// ledger rows and as the availability fallback for products that have no
// ledger row yet.
type LegacyStockSource interface {
	LegacyStock(ctx context.Context, productID uint) (int, bool, error)
}
