// Package app assembles the engine from its parts.
package app

import (
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	cartdomain "github.com/mizizzi/inventory-engine/internal/cart/domain"
	cartrepo "github.com/mizizzi/inventory-engine/internal/cart/repository"
	cartcmd "github.com/mizizzi/inventory-engine/internal/cart/usecase/command"
	cartquery "github.com/mizizzi/inventory-engine/internal/cart/usecase/query"
	"github.com/mizizzi/inventory-engine/internal/cart/validation"
	checkoutdomain "github.com/mizizzi/inventory-engine/internal/checkout/domain"
	"github.com/mizizzi/inventory-engine/internal/checkout/events"
	checkoutrepo "github.com/mizizzi/inventory-engine/internal/checkout/repository"
	checkoutcmd "github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	"github.com/mizizzi/inventory-engine/internal/reservation"
	resdomain "github.com/mizizzi/inventory-engine/internal/reservation/domain"
	resrepo "github.com/mizizzi/inventory-engine/internal/reservation/repository"
	rescmd "github.com/mizizzi/inventory-engine/internal/reservation/usecase/command"
	stockdomain "github.com/mizizzi/inventory-engine/internal/stock/domain"
	stockrepo "github.com/mizizzi/inventory-engine/internal/stock/repository"
	stockcmd "github.com/mizizzi/inventory-engine/internal/stock/usecase/command"
	stockquery "github.com/mizizzi/inventory-engine/internal/stock/usecase/query"
	"github.com/mizizzi/inventory-engine/pkg/config"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/metrics"

	carthttp "github.com/mizizzi/inventory-engine/internal/cart/delivery/http"
	checkouthttp "github.com/mizizzi/inventory-engine/internal/checkout/delivery/http"
	reshttp "github.com/mizizzi/inventory-engine/internal/reservation/delivery/http"
	stockhttp "github.com/mizizzi/inventory-engine/internal/stock/delivery/http"
)

// Engine bundles every assembled entry point: the four HTTP handlers, the
// expiry sweeper and the order status event handler.
type Engine struct {
	Stock        *stockhttp.StockHandler
	Reservations *reshttp.ReservationHandler
	Carts        *carthttp.CartHandler
	Checkout     *checkouthttp.CheckoutHandler
	Sweeper      *reservation.Sweeper
	StatusEvents *events.StatusHandler
}

// Migrate creates or updates every table the engine owns. Catalog tables
// (products, coupons, addresses and friends) belong to the storefront and
// are not migrated here.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&stockdomain.StockRecord{},
		&stockdomain.StockMovement{},
		&resdomain.Reservation{},
		&cartdomain.Cart{},
		&cartdomain.CartItem{},
		&checkoutdomain.Order{},
		&checkoutdomain.OrderItem{},
		&checkoutdomain.CouponUsage{},
	)
}

// Providers for dependencies wire cannot infer on its own.

func ProvideLegacyStockSource(db *gorm.DB) stockdomain.LegacyStockSource {
	return stockrepo.NewGormLegacyStockSource(db)
}

func ProvideLedgerRepository(db *gorm.DB, legacy stockdomain.LegacyStockSource) stockdomain.LedgerRepository {
	return stockrepo.NewTracingLedgerRepository(stockrepo.NewGormLedgerRepository(db, legacy))
}

func ProvideReservationRepository(db *gorm.DB, legacy stockdomain.LegacyStockSource) resdomain.Repository {
	return resrepo.NewGormReservationRepository(db, legacy)
}

func ProvideCartRepository(db *gorm.DB) cartdomain.CartRepository {
	return cartrepo.NewGormCartRepository(db)
}

func ProvideCatalog(db *gorm.DB) cartdomain.Catalog {
	return cartrepo.NewGormCatalog(db)
}

func ProvideAddressBook(db *gorm.DB) cartdomain.AddressBook {
	return cartrepo.NewGormAddressBook(db)
}

func ProvideShippingMethods(db *gorm.DB) cartdomain.ShippingMethods {
	return cartrepo.NewGormShippingMethods(db)
}

func ProvidePaymentMethods(db *gorm.DB) cartdomain.PaymentMethods {
	return cartrepo.NewGormPaymentMethods(db)
}

func ProvideCouponStore(db *gorm.DB) cartdomain.CouponStore {
	return cartrepo.NewGormCouponStore(db)
}

func ProvidePromotionStore(db *gorm.DB) cartdomain.PromotionStore {
	return cartrepo.NewGormPromotionStore(db)
}

func ProvidePurchaseHistory(db *gorm.DB) cartdomain.PurchaseHistory {
	return cartrepo.NewGormPurchaseHistory(db)
}

func ProvideOrderRepository(db *gorm.DB, legacy stockdomain.LegacyStockSource) checkoutdomain.Repository {
	return checkoutrepo.NewGormOrderRepository(db, legacy)
}

func ProvideBounds(cfg *config.Config) validation.Bounds {
	return validation.Bounds{
		MinOrderValue: decimal.NewFromFloat(cfg.MinOrderValue),
		MaxOrderValue: decimal.NewFromFloat(cfg.MaxOrderValue),
		MaxItems:      cfg.MaxItemsPerOrder,
	}
}

func ProvideStockHandler(ledger stockdomain.LedgerRepository, legacy stockdomain.LegacyStockSource, locks locker.KeyLocker, cfg *config.Config) *stockhttp.StockHandler {
	return stockhttp.NewStockHandler(
		stockcmd.NewAdjustStockHandler(ledger, locks, cfg.LockWait),
		stockquery.NewCheckAvailabilityHandler(ledger, legacy),
		stockquery.NewListLowStockHandler(ledger),
		stockquery.NewListMovementsHandler(ledger),
	)
}

func ProvideReservationHandler(repo resdomain.Repository, ledger stockdomain.LedgerRepository, locks locker.KeyLocker, m *metrics.EngineMetrics, cfg *config.Config) *reshttp.ReservationHandler {
	return reshttp.NewReservationHandler(
		rescmd.NewCreateReservationHandler(repo, locks, m, cfg.LockWait, cfg.ReservationTTL),
		rescmd.NewCancelReservationHandler(repo, locks, m, cfg.LockWait),
		rescmd.NewRenewReservationHandler(repo),
		rescmd.NewReleaseQuantityHandler(ledger, locks, m, cfg.LockWait),
	)
}

func ProvideCartHandler(carts cartdomain.CartRepository, reservations resdomain.Repository, engine *validation.Engine, cfg *config.Config) *carthttp.CartHandler {
	return carthttp.NewCartHandler(
		cartquery.NewValidateCartHandler(carts, engine),
		cartcmd.NewMergeCartsHandler(carts, cfg.CartTTL),
		cartcmd.NewTouchCartHandler(carts, reservations, cfg.CartTTL),
	)
}

func ProvideCommitHandler(
	orders checkoutdomain.Repository,
	carts cartdomain.CartRepository,
	reservations resdomain.Repository,
	engine *validation.Engine,
	ledger stockdomain.LedgerRepository,
	locks locker.KeyLocker,
	publisher checkoutcmd.EventPublisher,
	m *metrics.EngineMetrics,
	cfg *config.Config,
) *checkoutcmd.CommitCheckoutHandler {
	return checkoutcmd.NewCommitCheckoutHandler(orders, carts, reservations, engine, ledger, locks, publisher, m, cfg.LockWait)
}

func ProvideRestoreHandler(
	orders checkoutdomain.Repository,
	locks locker.KeyLocker,
	publisher checkoutcmd.EventPublisher,
	m *metrics.EngineMetrics,
	cfg *config.Config,
) *checkoutcmd.RestoreOrderHandler {
	return checkoutcmd.NewRestoreOrderHandler(orders, locks, publisher, m, cfg.LockWait)
}

func ProvideCheckoutHandler(commit *checkoutcmd.CommitCheckoutHandler, restore *checkoutcmd.RestoreOrderHandler, orders checkoutdomain.Repository) *checkouthttp.CheckoutHandler {
	return checkouthttp.NewCheckoutHandler(commit, restore, orders)
}

func ProvideSweeper(repo resdomain.Repository, ledger stockdomain.LedgerRepository, locks locker.KeyLocker, m *metrics.EngineMetrics, cfg *config.Config) *reservation.Sweeper {
	return reservation.NewSweeper(repo, ledger, locks, m, cfg.SweepInterval, cfg.LockWait)
}

func ProvideStatusHandler(commit *checkoutcmd.CommitCheckoutHandler, restore *checkoutcmd.RestoreOrderHandler, rdb *redis.Client, cfg *config.Config) *events.StatusHandler {
	return events.NewStatusHandler(commit, restore, rdb, cfg.EventDedupEnabled)
}
