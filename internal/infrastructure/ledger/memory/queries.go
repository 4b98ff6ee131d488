package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	exchange "main/internal/domain/entity/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Non-locking reads and single-row writes used by the API layer. None of
// these participate in matching passes.

func (s *Store) GetOrder(ctx context.Context, uid uuid.UUID) (*exchange.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.orders[uid]
	if !ok {
		return nil, exchange.ErrOrderNotFound
	}
	snapshot := row.order
	return &snapshot, nil
}

func (s *Store) ListUserOrders(ctx context.Context, userUID uuid.UUID) ([]*exchange.Order, error) {
	s.mu.RLock()
	var result []*exchange.Order
	for _, row := range s.orders {
		if row.order.UserUID != userUID {
			continue
		}
		snapshot := row.order
		result = append(result, &snapshot)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq > result[j].Seq
	})
	return result, nil
}

// CancelOpenOrders flips the user's active orders to cancelled. Rows are
// locked one at a time, so a cancel never deadlocks against a matching
// pass holding part of the book.
func (s *Store) CancelOpenOrders(ctx context.Context, userUID uuid.UUID) (int64, error) {
	s.mu.RLock()
	var rows []*orderRow
	for _, row := range s.orders {
		if row.order.UserUID == userUID && row.order.Status == exchange.OrderStatusActive {
			rows = append(rows, row)
		}
	}
	s.mu.RUnlock()

	var cancelled int64
	now := time.Now().UTC()
	for _, row := range rows {
		if err := row.lock.acquire(ctx); err != nil {
			return cancelled, err
		}
		s.mu.Lock()
		if row.order.Status == exchange.OrderStatusActive {
			row.order.Status = exchange.OrderStatusCancelled
			row.order.UpdatedAt = now
			cancelled++
		}
		s.mu.Unlock()
		row.lock.release()
	}
	return cancelled, nil
}

func (s *Store) GetCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.cash[userUID]
	if !ok {
		return nil, exchange.ErrMissingBalance
	}
	snapshot := row.balance
	return &snapshot, nil
}

func (s *Store) SetCashBalance(ctx context.Context, userUID uuid.UUID, amount decimal.Decimal) (*exchange.CashBalance, error) {
	s.mu.RLock()
	row, ok := s.cash[userUID]
	s.mu.RUnlock()
	now := time.Now().UTC()
	if !ok {
		s.mu.Lock()
		row, ok = s.cash[userUID]
		if !ok {
			row = &cashRow{lock: newRowLock(), balance: exchange.CashBalance{UserUID: userUID, CreatedAt: now}}
			s.cash[userUID] = row
		}
		s.mu.Unlock()
	}
	if err := row.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer row.lock.release()

	s.mu.Lock()
	row.balance.Amount = amount
	row.balance.UpdatedAt = now
	snapshot := row.balance
	s.mu.Unlock()
	return &snapshot, nil
}

func (s *Store) GetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.quantity[qbKey{userUID: userUID, instrumentUID: instrumentUID}]
	if !ok {
		return nil, exchange.ErrMissingBalance
	}
	snapshot := row.balance
	return &snapshot, nil
}

func (s *Store) SetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID, amount decimal.Decimal) (*exchange.QuantityBalance, error) {
	key := qbKey{userUID: userUID, instrumentUID: instrumentUID}
	s.mu.RLock()
	row, ok := s.quantity[key]
	s.mu.RUnlock()
	now := time.Now().UTC()
	if !ok {
		s.mu.Lock()
		row, ok = s.quantity[key]
		if !ok {
			row = &quantityRow{lock: newRowLock(), balance: exchange.QuantityBalance{
				UserUID:       userUID,
				InstrumentUID: instrumentUID,
				CreatedAt:     now,
			}}
			s.quantity[key] = row
		}
		s.mu.Unlock()
	}
	if err := row.lock.acquire(ctx); err != nil {
		return nil, err
	}
	defer row.lock.release()

	s.mu.Lock()
	row.balance.Amount = amount
	row.balance.UpdatedAt = now
	snapshot := row.balance
	s.mu.Unlock()
	return &snapshot, nil
}

// VolumeWeightedPrice is sum(price*total)/sum(total) over all orders of
// the instrument, zero when the denominator is zero.
func (s *Store) VolumeWeightedPrice(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weighted := decimal.Zero
	total := decimal.Zero
	for _, row := range s.orders {
		if row.order.InstrumentUID != instrumentUID {
			continue
		}
		weighted = weighted.Add(row.order.Price.Mul(row.order.TotalQuantity))
		total = total.Add(row.order.TotalQuantity)
	}
	if total.IsZero() {
		return decimal.Zero, nil
	}
	return weighted.Div(total), nil
}

// LiquidityRatio is completed volume over total volume, zero-guarded.
func (s *Store) LiquidityRatio(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completed := decimal.Zero
	total := decimal.Zero
	for _, row := range s.orders {
		if row.order.InstrumentUID != instrumentUID {
			continue
		}
		total = total.Add(row.order.TotalQuantity)
		if row.order.Status == exchange.OrderStatusCompleted {
			completed = completed.Add(row.order.TotalQuantity)
		}
	}
	if total.IsZero() {
		return decimal.Zero, nil
	}
	return completed.Div(total), nil
}

// MarketMakerInventory returns the most recently created quantity balance
// among accounts whose email contains the marker, zero when none exists.
func (s *Store) MarketMakerInventory(ctx context.Context, instrumentUID uuid.UUID, emailMarker string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *quantityRow
	for key, row := range s.quantity {
		if key.instrumentUID != instrumentUID {
			continue
		}
		user, ok := s.userRows[key.userUID]
		if !ok || !strings.Contains(user.Email, emailMarker) {
			continue
		}
		if latest == nil || row.balance.CreatedAt.After(latest.balance.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.balance.Amount, nil
}

func (s *Store) InsertStatsSnapshot(ctx context.Context, runUID uuid.UUID, stats *exchange.InstrumentStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, statsSnapshot{runUID: runUID, stats: *stats})
	return nil
}

// Trades returns a copy of every recorded trade, oldest first.
func (s *Store) Trades() []exchange.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]exchange.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

// StatsSnapshotCount reports how many history snapshots were written.
func (s *Store) StatsSnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
