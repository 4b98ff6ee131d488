package interfaces

import (
	"context"

	exchange "main/internal/domain/entity/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerTx is one transactional matching-pass scope over the ledger store.
// Lock* calls block until exclusive access is granted (or the context or
// the store's lock timeout expires, surfaced as exchange.ErrLockTimeout).
// Mutations become visible to other passes only on Commit; Rollback
// discards all of them.
type LedgerTx interface {
	// LockEligibleOrders locks and returns the resting counter orders an
	// incoming order on the opposite side may trade against, in matching
	// priority: ascending price for side=sell (incoming buy, price <= bound),
	// descending price for side=buy (incoming sell, price >= bound), oldest
	// first within a price level.
	LockEligibleOrders(ctx context.Context, instrumentUID uuid.UUID, side exchange.OrderSide, priceBound decimal.Decimal) ([]*exchange.Order, error)

	LockCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error)
	LockQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error)

	InsertOrder(ctx context.Context, order *exchange.Order) error
	UpdateOrder(ctx context.Context, order *exchange.Order) error
	UpdateCashBalance(ctx context.Context, balance *exchange.CashBalance) error
	UpdateQuantityBalance(ctx context.Context, balance *exchange.QuantityBalance) error
	InsertTrades(ctx context.Context, trades []exchange.Trade) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// LedgerRepository is the durable store of orders, balances and trades.
type LedgerRepository interface {
	Begin(ctx context.Context) (LedgerTx, error)

	GetOrder(ctx context.Context, uid uuid.UUID) (*exchange.Order, error)
	ListUserOrders(ctx context.Context, userUID uuid.UUID) ([]*exchange.Order, error)
	CancelOpenOrders(ctx context.Context, userUID uuid.UUID) (int64, error)

	GetCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error)
	SetCashBalance(ctx context.Context, userUID uuid.UUID, amount decimal.Decimal) (*exchange.CashBalance, error)
	GetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error)
	SetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID, amount decimal.Decimal) (*exchange.QuantityBalance, error)

	VolumeWeightedPrice(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error)
	LiquidityRatio(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error)
	MarketMakerInventory(ctx context.Context, instrumentUID uuid.UUID, emailMarker string) (decimal.Decimal, error)
	InsertStatsSnapshot(ctx context.Context, runUID uuid.UUID, stats *exchange.InstrumentStats) error

	Close()
}
