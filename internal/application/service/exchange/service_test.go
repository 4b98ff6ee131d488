package exchange_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	appexchange "main/internal/application/service/exchange"
	"main/internal/config"
	domain "main/internal/domain/entity/exchange"
	domainusers "main/internal/domain/entity/users"
	"main/internal/infrastructure/ledger/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestService(store *memory.Store, sink appexchange.TradeSink) *appexchange.Service {
	cfg := config.MatchingConfig{
		LockTimeout:       2 * time.Second,
		MarketMakerMarker: "bank",
	}
	return appexchange.NewService(store, store, cfg, sink, quietLogger())
}

func createUser(t *testing.T, store *memory.Store, email string) uuid.UUID {
	t.Helper()
	user := &domainusers.User{
		UID:       uuid.New(),
		Email:     email,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user.UID
}

func createInstrument(t *testing.T, store *memory.Store) uuid.UUID {
	t.Helper()
	instrument := &domain.Instrument{
		UID:       uuid.New(),
		Name:      "GOLD",
		Status:    domain.InstrumentStatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateInstrument(context.Background(), instrument))
	return instrument.UID
}

func fund(t *testing.T, store *memory.Store, userUID, instrumentUID uuid.UUID, cash, quantity string) {
	t.Helper()
	ctx := context.Background()
	_, err := store.SetCashBalance(ctx, userUID, d(cash))
	require.NoError(t, err)
	_, err = store.SetQuantityBalance(ctx, userUID, instrumentUID, d(quantity))
	require.NoError(t, err)
}

func place(t *testing.T, svc *appexchange.Service, userUID, instrumentUID uuid.UUID, side domain.OrderSide, price, quantity string) (*domain.Order, []domain.Trade) {
	t.Helper()
	order, trades, err := svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       userUID,
		InstrumentUID: instrumentUID,
		Side:          side,
		Price:         d(price),
		Quantity:      d(quantity),
	})
	require.NoError(t, err)
	return order, trades
}

func TestPlaceOrder_RestsWhenBookEmpty(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	fund(t, store, alice, instrument, "1000", "0")

	order, trades := place(t, svc, alice, instrument, domain.OrderSideBuy, "10", "5")

	require.Empty(t, trades)
	require.Equal(t, domain.OrderStatusActive, order.Status)
	require.True(t, order.RemainingQuantity.Equal(d("5")))
	require.Nil(t, order.SettlementPrice)

	// Resting does not move money.
	cash, err := svc.GetCashBalance(context.Background(), alice)
	require.NoError(t, err)
	require.True(t, cash.Amount.Equal(d("1000")))
}

func TestPlaceOrder_ExecutesAtRestingPrice(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	fund(t, store, alice, instrument, "1000", "0")
	fund(t, store, bob, instrument, "0", "100")

	restingSell, _ := place(t, svc, bob, instrument, domain.OrderSideSell, "5", "50")
	buy, trades := place(t, svc, alice, instrument, domain.OrderSideBuy, "6", "50")

	require.Len(t, trades, 1)
	require.True(t, trades[0].Price.Equal(d("5")), "trade must execute at the resting price")
	require.True(t, trades[0].Quantity.Equal(d("50")))
	require.Equal(t, restingSell.UID, trades[0].SellOrderUID)
	require.Equal(t, buy.UID, trades[0].BuyOrderUID)

	require.Equal(t, domain.OrderStatusCompleted, buy.Status)
	require.NotNil(t, buy.SettlementPrice)
	require.True(t, buy.SettlementPrice.Equal(d("5")))

	stored, err := svc.GetOrder(context.Background(), restingSell.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, stored.Status)
	require.NotNil(t, stored.SettlementPrice)
	require.True(t, stored.SettlementPrice.Equal(d("5")))

	ctx := context.Background()
	aliceCash, err := svc.GetCashBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, aliceCash.Amount.Equal(d("750")))
	aliceQty, err := svc.GetQuantityBalance(ctx, alice, instrument)
	require.NoError(t, err)
	require.True(t, aliceQty.Amount.Equal(d("50")))

	bobCash, err := svc.GetCashBalance(ctx, bob)
	require.NoError(t, err)
	require.True(t, bobCash.Amount.Equal(d("250")))
	bobQty, err := svc.GetQuantityBalance(ctx, bob, instrument)
	require.NoError(t, err)
	require.True(t, bobQty.Amount.Equal(d("50")))
}

func TestPlaceOrder_PricePriority(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "1000", "0")
	fund(t, store, seller, instrument, "0", "100")

	// The worse-priced ask arrives first; price priority must still win.
	expensive, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10.5", "1")
	cheap, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10.0", "1")

	_, trades := place(t, svc, buyer, instrument, domain.OrderSideBuy, "10.5", "1")

	require.Len(t, trades, 1)
	require.Equal(t, cheap.UID, trades[0].SellOrderUID)
	require.True(t, trades[0].Price.Equal(d("10.0")))

	stored, err := svc.GetOrder(context.Background(), expensive.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusActive, stored.Status)
}

func TestPlaceOrder_TimePriority(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "1000", "0")
	fund(t, store, seller, instrument, "0", "100")

	first, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10", "5")
	second, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10", "5")

	_, trades := place(t, svc, buyer, instrument, domain.OrderSideBuy, "10", "5")

	require.Len(t, trades, 1)
	require.Equal(t, first.UID, trades[0].SellOrderUID)

	stored, err := svc.GetOrder(context.Background(), second.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusActive, stored.Status)
	require.True(t, stored.RemainingQuantity.Equal(d("5")))
}

func TestPlaceOrder_PartialFillRestsRemainder(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "1000", "0")
	fund(t, store, seller, instrument, "0", "100")

	resting, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10", "3")
	buy, trades := place(t, svc, buyer, instrument, domain.OrderSideBuy, "10", "8")

	require.Len(t, trades, 1)
	require.True(t, trades[0].Quantity.Equal(d("3")))

	require.Equal(t, domain.OrderStatusActive, buy.Status)
	require.True(t, buy.RemainingQuantity.Equal(d("5")))
	require.Nil(t, buy.SettlementPrice)

	stored, err := svc.GetOrder(context.Background(), resting.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, stored.Status)
	require.True(t, stored.RemainingQuantity.IsZero())
}

func TestPlaceOrder_AggressorSellExecutesAtRestingBid(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "1000", "0")
	fund(t, store, seller, instrument, "0", "100")

	bid, _ := place(t, svc, buyer, instrument, domain.OrderSideBuy, "10", "4")
	_, trades := place(t, svc, seller, instrument, domain.OrderSideSell, "9", "4")

	require.Len(t, trades, 1)
	require.True(t, trades[0].Price.Equal(d("10")), "resting bid sets the price")
	require.Equal(t, bid.UID, trades[0].BuyOrderUID)
}

func TestPlaceOrder_InsufficientCashAbortsWholePass(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "60", "0")
	fund(t, store, seller, instrument, "0", "100")

	cheap, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "50", "1")
	place(t, svc, seller, instrument, domain.OrderSideSell, "100", "1")

	// The first pairing (1 @ 50) is affordable, the second is not. The
	// whole pass must roll back, first trade included.
	_, _, err := svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       buyer,
		InstrumentUID: instrument,
		Side:          domain.OrderSideBuy,
		Price:         d("100"),
		Quantity:      d("2"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientCash)

	require.Empty(t, store.Trades())

	ctx := context.Background()
	cash, err := svc.GetCashBalance(ctx, buyer)
	require.NoError(t, err)
	require.True(t, cash.Amount.Equal(d("60")))

	stored, err := svc.GetOrder(ctx, cheap.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusActive, stored.Status)
	require.True(t, stored.RemainingQuantity.Equal(d("1")))

	orders, err := svc.ListUserOrders(ctx, buyer)
	require.NoError(t, err)
	require.Empty(t, orders, "the failed order must not exist")
}

func TestPlaceOrder_InsufficientQuantityAborts(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	buyer := createUser(t, store, "buyer@example.com")
	seller := createUser(t, store, "seller@example.com")
	fund(t, store, buyer, instrument, "1000", "0")
	fund(t, store, seller, instrument, "0", "0")

	// The ask rests fine; settlement only checks balances when a trade
	// actually executes.
	resting, _ := place(t, svc, seller, instrument, domain.OrderSideSell, "10", "5")

	_, _, err := svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       buyer,
		InstrumentUID: instrument,
		Side:          domain.OrderSideBuy,
		Price:         d("10"),
		Quantity:      d("5"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	stored, err := svc.GetOrder(context.Background(), resting.UID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusActive, stored.Status)
	require.True(t, stored.RemainingQuantity.Equal(d("5")))
}

func TestPlaceOrder_SelfTradeNetsOut(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	fund(t, store, alice, instrument, "100", "10")

	place(t, svc, alice, instrument, domain.OrderSideSell, "5", "2")
	_, trades := place(t, svc, alice, instrument, domain.OrderSideBuy, "5", "2")

	require.Len(t, trades, 1)
	require.Equal(t, alice, trades[0].BuyerUID)
	require.Equal(t, alice, trades[0].SellerUID)

	ctx := context.Background()
	cash, err := svc.GetCashBalance(ctx, alice)
	require.NoError(t, err)
	require.True(t, cash.Amount.Equal(d("100")))
	qty, err := svc.GetQuantityBalance(ctx, alice, instrument)
	require.NoError(t, err)
	require.True(t, qty.Amount.Equal(d("10")))
}

func TestPlaceOrder_InstrumentChecks(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	alice := createUser(t, store, "alice@example.com")

	_, _, err := svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       alice,
		InstrumentUID: uuid.New(),
		Side:          domain.OrderSideBuy,
		Price:         d("1"),
		Quantity:      d("1"),
	})
	require.ErrorIs(t, err, domain.ErrInstrumentNotFound)

	instrument := createInstrument(t, store)
	_, err = svc.DeleteInstrument(context.Background(), instrument)
	require.NoError(t, err)

	_, _, err = svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       alice,
		InstrumentUID: instrument,
		Side:          domain.OrderSideBuy,
		Price:         d("1"),
		Quantity:      d("1"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidInstrument)
}

func TestPlaceOrder_Validation(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")

	cases := []struct {
		name string
		req  appexchange.PlaceOrderRequest
		want error
	}{
		{
			name: "bad side",
			req:  appexchange.PlaceOrderRequest{UserUID: alice, InstrumentUID: instrument, Side: "hold", Price: d("1"), Quantity: d("1")},
			want: appexchange.ErrInvalidSide,
		},
		{
			name: "zero price",
			req:  appexchange.PlaceOrderRequest{UserUID: alice, InstrumentUID: instrument, Side: domain.OrderSideBuy, Price: d("0"), Quantity: d("1")},
			want: appexchange.ErrNonPositivePrice,
		},
		{
			name: "negative quantity",
			req:  appexchange.PlaceOrderRequest{UserUID: alice, InstrumentUID: instrument, Side: domain.OrderSideSell, Price: d("1"), Quantity: d("-3")},
			want: appexchange.ErrNonPositiveQuantity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.PlaceOrder(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestCancelOpenOrders(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	fund(t, store, alice, instrument, "1000", "100")

	place(t, svc, alice, instrument, domain.OrderSideBuy, "1", "1")
	place(t, svc, alice, instrument, domain.OrderSideSell, "99", "1")

	cancelled, err := svc.CancelOpenOrders(context.Background(), alice)
	require.NoError(t, err)
	require.EqualValues(t, 2, cancelled)

	orders, err := svc.ListUserOrders(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, order := range orders {
		require.Equal(t, domain.OrderStatusCancelled, order.Status)
	}

	// Idempotent on an empty book.
	cancelled, err = svc.CancelOpenOrders(context.Background(), alice)
	require.NoError(t, err)
	require.EqualValues(t, 0, cancelled)
}

func TestSetBalances_RejectNegative(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")

	_, err := svc.SetCashBalance(context.Background(), alice, d("-1"))
	require.ErrorIs(t, err, appexchange.ErrNegativeAmount)
	_, err = svc.SetQuantityBalance(context.Background(), alice, instrument, d("-1"))
	require.ErrorIs(t, err, appexchange.ErrNegativeAmount)

	balance, err := svc.SetCashBalance(context.Background(), alice, d("250"))
	require.NoError(t, err)
	require.True(t, balance.Amount.Equal(d("250")))
}

func TestStats_Aggregates(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	bank := createUser(t, store, "bank@example.com")
	alice := createUser(t, store, "alice@example.com")
	fund(t, store, bank, instrument, "0", "40")
	fund(t, store, alice, instrument, "1000", "0")

	ctx := context.Background()

	// No orders yet: both aggregates must zero-guard.
	vwap, err := svc.VolumeWeightedPrice(ctx, instrument)
	require.NoError(t, err)
	require.True(t, vwap.IsZero())
	liquidity, err := svc.LiquidityRatio(ctx, instrument)
	require.NoError(t, err)
	require.True(t, liquidity.IsZero())

	place(t, svc, bank, instrument, domain.OrderSideSell, "10", "10")
	place(t, svc, alice, instrument, domain.OrderSideBuy, "10", "10")
	place(t, svc, alice, instrument, domain.OrderSideBuy, "20", "10")

	// Orders: sell 10@10 (completed), buy 10@10 (completed), buy 10@20 (active).
	// VWAP = (10*10 + 10*10 + 20*10) / 30 = 400/30.
	vwap, err = svc.VolumeWeightedPrice(ctx, instrument)
	require.NoError(t, err)
	require.True(t, vwap.Equal(d("400").Div(d("30"))), "got %s", vwap)

	liquidity, err = svc.LiquidityRatio(ctx, instrument)
	require.NoError(t, err)
	require.True(t, liquidity.Equal(d("20").Div(d("30"))), "got %s", liquidity)

	inventory, err := svc.MarketMakerInventory(ctx, instrument)
	require.NoError(t, err)
	require.True(t, inventory.Equal(d("30")), "bank sold 10 of 40, got %s", inventory)
}

func TestWriteStatsSnapshot(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	bank := createUser(t, store, "bank@example.com")
	fund(t, store, bank, instrument, "0", "40")

	place(t, svc, bank, instrument, domain.OrderSideSell, "10", "10")

	stats, err := svc.WriteStatsSnapshot(context.Background(), instrument, uuid.New())
	require.NoError(t, err)
	require.True(t, stats.VolumeWeightedPrice.Equal(d("10")))
	require.True(t, stats.LiquidityRatio.IsZero())
	require.True(t, stats.MarketMakerInventory.Equal(d("40")))
	require.Equal(t, 1, store.StatsSnapshotCount())
}

type captureSink struct {
	mu     sync.Mutex
	trades []domain.Trade
}

func (s *captureSink) PublishTrades(ctx context.Context, trades []domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, trades...)
	return nil
}

func TestPlaceOrder_PublishesTrades(t *testing.T) {
	store := memory.NewStore()
	sink := &captureSink{}
	svc := newTestService(store, sink)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	fund(t, store, alice, instrument, "1000", "0")
	fund(t, store, bob, instrument, "0", "100")

	place(t, svc, bob, instrument, domain.OrderSideSell, "5", "10")
	require.Empty(t, sink.trades, "resting orders produce no feed events")

	place(t, svc, alice, instrument, domain.OrderSideBuy, "5", "10")
	require.Len(t, sink.trades, 1)
	require.True(t, sink.trades[0].Price.Equal(d("5")))
}

func TestPlaceOrder_LockTimeout(t *testing.T) {
	store := memory.NewStore()
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	fund(t, store, alice, instrument, "1000", "0")
	fund(t, store, bob, instrument, "0", "100")

	cfg := config.MatchingConfig{LockTimeout: 50 * time.Millisecond, MarketMakerMarker: "bank"}
	svc := appexchange.NewService(store, store, cfg, nil, quietLogger())

	place(t, svc, bob, instrument, domain.OrderSideSell, "5", "10")

	// A foreign transaction holds the resting order's row lock for the
	// duration of the attempt.
	blocker, err := store.Begin(context.Background())
	require.NoError(t, err)
	locked, err := blocker.LockEligibleOrders(context.Background(), instrument, domain.OrderSideSell, d("5"))
	require.NoError(t, err)
	require.Len(t, locked, 1)

	_, _, err = svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
		UserUID:       alice,
		InstrumentUID: instrument,
		Side:          domain.OrderSideBuy,
		Price:         d("5"),
		Quantity:      d("10"),
	})
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	require.NoError(t, blocker.Rollback(context.Background()))

	// With the lock released the same order goes through.
	_, trades := place(t, svc, alice, instrument, domain.OrderSideBuy, "5", "10")
	require.Len(t, trades, 1)
}

func TestPlaceOrder_ConcurrentConservation(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	bob := createUser(t, store, "bob@example.com")
	fund(t, store, alice, instrument, "1000", "0")
	fund(t, store, bob, instrument, "0", "100")

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, _ = svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
				UserUID:       bob,
				InstrumentUID: instrument,
				Side:          domain.OrderSideSell,
				Price:         d("1"),
				Quantity:      d("1"),
			})
		}()
		go func() {
			defer wg.Done()
			_, _, _ = svc.PlaceOrder(context.Background(), appexchange.PlaceOrderRequest{
				UserUID:       alice,
				InstrumentUID: instrument,
				Side:          domain.OrderSideBuy,
				Price:         d("1"),
				Quantity:      d("1"),
			})
		}()
	}
	wg.Wait()

	ctx := context.Background()
	aliceCash, err := svc.GetCashBalance(ctx, alice)
	require.NoError(t, err)
	bobCash, err := svc.GetCashBalance(ctx, bob)
	require.NoError(t, err)
	aliceQty, err := svc.GetQuantityBalance(ctx, alice, instrument)
	require.NoError(t, err)
	bobQty, err := svc.GetQuantityBalance(ctx, bob, instrument)
	require.NoError(t, err)

	totalCash := aliceCash.Amount.Add(bobCash.Amount)
	totalQty := aliceQty.Amount.Add(bobQty.Amount)
	require.True(t, totalCash.Equal(d("1000")), "cash conserved, got %s", totalCash)
	require.True(t, totalQty.Equal(d("100")), "quantity conserved, got %s", totalQty)

	require.False(t, aliceCash.Amount.IsNegative())
	require.False(t, bobCash.Amount.IsNegative())
	require.False(t, aliceQty.Amount.IsNegative())
	require.False(t, bobQty.Amount.IsNegative())

	// Every execution happened at the only limit price on the book.
	for _, trade := range store.Trades() {
		require.True(t, trade.Price.Equal(d("1")))
	}
}

func TestInstrumentLifecycle(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)

	instrument, err := svc.CreateInstrument(context.Background(), "SILVER")
	require.NoError(t, err)
	require.Equal(t, domain.InstrumentStatusActive, instrument.Status)

	_, err = svc.CreateInstrument(context.Background(), "")
	require.ErrorIs(t, err, appexchange.ErrInstrumentNameRequired)

	updated, err := svc.UpdateInstrument(context.Background(), instrument.UID, "SILVER-2", domain.InstrumentStatusInactive)
	require.NoError(t, err)
	require.Equal(t, "SILVER-2", updated.Name)
	require.Equal(t, domain.InstrumentStatusInactive, updated.Status)

	_, err = svc.UpdateInstrument(context.Background(), instrument.UID, "SILVER-2", "frozen")
	require.ErrorIs(t, err, appexchange.ErrInvalidStatus)

	deleted, err := svc.DeleteInstrument(context.Background(), instrument.UID)
	require.NoError(t, err)
	require.Equal(t, domain.InstrumentStatusDeleted, deleted.Status)

	list, err := svc.ListInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestListUserOrders_NewestFirst(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store, nil)
	instrument := createInstrument(t, store)
	alice := createUser(t, store, "alice@example.com")
	fund(t, store, alice, instrument, "1000", "0")

	var placed []*domain.Order
	for i := 1; i <= 3; i++ {
		order, _ := place(t, svc, alice, instrument, domain.OrderSideBuy, fmt.Sprintf("%d", i), "1")
		placed = append(placed, order)
	}

	orders, err := svc.ListUserOrders(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	require.Equal(t, placed[2].UID, orders[0].UID)
	require.Equal(t, placed[0].UID, orders[2].UID)
}
