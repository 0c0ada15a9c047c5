package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mizizzi/inventory-engine/pkg/errs"
	"github.com/mizizzi/inventory-engine/pkg/locker"
)

// Status is the reservation lifecycle state. ACTIVE moves to exactly one of
// the terminal states; terminal states never revert.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExpired   Status = "EXPIRED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether s is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCompleted || s == StatusCancelled
}

// DefaultTTL is the reservation lifetime applied when the caller does not
// override it.
const DefaultTTL = 30 * time.Minute

var (
	ErrNotFound     = errs.New(errs.KindNotFound, "reservation not found")
	ErrInvalidState = errs.New(errs.KindInvalidState, "reservation is not active")
)

// Reservation is a time-bounded hold of quantity units for one cart. Its
// stock-side effect (the reserved_quantity increment) is independent state:
// a reservation row must never be dropped without releasing that increment.
type Reservation struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CartID    uuid.UUID `json:"cart_id" gorm:"type:uuid;not null;index"`
	UserID    *uint     `json:"user_id,omitempty" gorm:"index"`
	ProductID uint      `json:"product_id" gorm:"not null;index:idx_reservation_key"`
	VariantID uint      `json:"variant_id,omitempty" gorm:"not null;default:0;index:idx_reservation_key"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	Status    Status    `json:"status" gorm:"not null;default:'ACTIVE';index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
}

// TableName specifies the table name
func (Reservation) TableName() string {
	return "reservations"
}

// Key returns the stock lock key this reservation holds units against.
func (r *Reservation) Key() locker.Key {
	return locker.Key{ProductID: r.ProductID, VariantID: r.VariantID}
}

// IsExpired reports whether the reservation passed its deadline.
func (r *Reservation) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// KeyReserved pairs a stock key with the summed ACTIVE reserved quantity,
// used by the sweeper's reconciliation pass.
type KeyReserved struct {
	ProductID uint
	VariantID uint
	Total     int
}

// Repository is the data-access contract for reservations. The composite
// operations run as single database transactions: the ledger mutation and
// the reservation row change commit or roll back together. Callers hold the
// key lock for any operation that touches the ledger.
type Repository interface {
	// CreateWithReserve reserves ledger stock and inserts the reservation
	// row atomically. Returns InsufficientStock or InvalidQuantity from the
	// ledger without persisting anything.
	CreateWithReserve(ctx context.Context, res *Reservation) error
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)
	FindActiveByCart(ctx context.Context, cartID uuid.UUID) ([]Reservation, error)
	// Renew extends expires_at for an ACTIVE reservation.
	Renew(ctx context.Context, id uuid.UUID, until time.Time) error
	// CancelWithRelease CASes ACTIVE -> CANCELLED and releases ledger stock.
	// Returns false when the reservation was already terminal (no-op).
	CancelWithRelease(ctx context.Context, id uuid.UUID) (bool, error)
	// ExpireWithRelease CASes ACTIVE -> EXPIRED and releases ledger stock.
	// Returns false when another transition won.
	ExpireWithRelease(ctx context.Context, id uuid.UUID) (bool, error)
	// FindExpired lists ACTIVE reservations whose own deadline passed, or
	// whose owning cart expired (cart expiry cascades).
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Reservation, error)
	// SumActiveByKey aggregates ACTIVE reserved quantity per stock key, for
	// reconciliation against the ledger's reserved_quantity.
	SumActiveByKey(ctx context.Context) ([]KeyReserved, error)
}
