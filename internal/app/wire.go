//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mizizzi/inventory-engine/internal/cart/validation"
	checkoutcmd "github.com/mizizzi/inventory-engine/internal/checkout/usecase/command"
	"github.com/mizizzi/inventory-engine/pkg/config"
	"github.com/mizizzi/inventory-engine/pkg/locker"
	"github.com/mizizzi/inventory-engine/pkg/metrics"
)

// RepositorySet provides every repository behind its domain interface.
var RepositorySet = wire.NewSet(
	ProvideLegacyStockSource,
	ProvideLedgerRepository,
	ProvideReservationRepository,
	ProvideCartRepository,
	ProvideCatalog,
	ProvideAddressBook,
	ProvideShippingMethods,
	ProvidePaymentMethods,
	ProvideCouponStore,
	ProvidePromotionStore,
	ProvidePurchaseHistory,
	ProvideOrderRepository,
)

// InitializeEngine assembles the full engine.
func InitializeEngine(
	db *gorm.DB,
	rdb *redis.Client,
	locks locker.KeyLocker,
	publisher checkoutcmd.EventPublisher,
	m *metrics.EngineMetrics,
	cfg *config.Config,
) (*Engine, error) {
	wire.Build(
		RepositorySet,
		ProvideBounds,
		validation.NewEngine,
		ProvideStockHandler,
		ProvideReservationHandler,
		ProvideCartHandler,
		ProvideCommitHandler,
		ProvideRestoreHandler,
		ProvideCheckoutHandler,
		ProvideSweeper,
		ProvideStatusHandler,
		wire.Struct(new(Engine), "*"),
	)
	return nil, nil
}
