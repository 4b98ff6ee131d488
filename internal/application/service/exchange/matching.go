package exchange

import (
	"bytes"
	"context"
	"sort"
	"time"

	domain "main/internal/domain/entity/exchange"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
)

// accountBalances groups the two locked balance rows of one account.
type accountBalances struct {
	cash     *domain.CashBalance
	quantity *domain.QuantityBalance
}

// runMatchingPass executes the whole pass for one incoming order inside a
// single ledger transaction. Eligible counter orders are snapshotted once
// under lock and never re-queried, so the pass terminates after at most
// len(snapshot) pairings.
func (s *Service) runMatchingPass(ctx context.Context, order *domain.Order) ([]domain.Trade, error) {
	tx, err := s.ledger.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			// Rollback must run even when ctx already expired.
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				s.logger.WithError(rbErr).Error("matching pass rollback failed")
			}
		}
	}()

	counters, err := tx.LockEligibleOrders(ctx, order.InstrumentUID, order.Side.Counter(), order.Price)
	if err != nil {
		return nil, err
	}
	balances, err := lockPassBalances(ctx, tx, order, counters)
	if err != nil {
		return nil, err
	}

	var trades []domain.Trade
	for _, counter := range counters {
		now := time.Now().UTC()
		trade, err := executeTrade(order, counter, balances, now)
		if err != nil {
			return nil, err
		}
		if err := tx.UpdateOrder(ctx, counter); err != nil {
			return nil, err
		}
		if err := persistTradeBalances(ctx, tx, balances, order.UserUID, counter.UserUID); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
		if order.IsCompleted() {
			break
		}
	}

	if err := tx.InsertOrder(ctx, order); err != nil {
		return nil, err
	}
	if len(trades) > 0 {
		if err := tx.InsertTrades(ctx, trades); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return trades, nil
}

// lockPassBalances acquires every balance row the pass may touch.
// Invariant: balance rows are always locked after the counter-order rows,
// in ascending account-UUID order, cash row before quantity row. Every
// pass follows this same total order, so overlapping passes cannot
// deadlock on balance rows.
func lockPassBalances(ctx context.Context, tx interfaces.LedgerTx, order *domain.Order, counters []*domain.Order) (map[uuid.UUID]*accountBalances, error) {
	seen := map[uuid.UUID]struct{}{order.UserUID: {}}
	accounts := []uuid.UUID{order.UserUID}
	for _, counter := range counters {
		if _, ok := seen[counter.UserUID]; ok {
			continue
		}
		seen[counter.UserUID] = struct{}{}
		accounts = append(accounts, counter.UserUID)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i][:], accounts[j][:]) < 0
	})

	balances := make(map[uuid.UUID]*accountBalances, len(accounts))
	for _, userUID := range accounts {
		cash, err := tx.LockCashBalance(ctx, userUID)
		if err != nil {
			return nil, err
		}
		quantity, err := tx.LockQuantityBalance(ctx, userUID, order.InstrumentUID)
		if err != nil {
			return nil, err
		}
		balances[userUID] = &accountBalances{cash: cash, quantity: quantity}
	}
	return balances, nil
}

func persistTradeBalances(ctx context.Context, tx interfaces.LedgerTx, balances map[uuid.UUID]*accountBalances, userUIDs ...uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(userUIDs))
	for _, uid := range userUIDs {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		pair := balances[uid]
		if err := tx.UpdateCashBalance(ctx, pair.cash); err != nil {
			return err
		}
		if err := tx.UpdateQuantityBalance(ctx, pair.quantity); err != nil {
			return err
		}
	}
	return nil
}
