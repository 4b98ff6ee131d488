// Package memory implements the ledger, users and instruments
// repositories over process memory with per-row exclusive locks. It
// honors the same locking and rollback contract as the Postgres
// implementation and backs the engine's unit and concurrency tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	exchange "main/internal/domain/entity/exchange"
	users "main/internal/domain/entity/users"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)


// rowLock is a context-aware mutex. Acquisition failing on a deadline is
// reported as exchange.ErrLockTimeout, matching the Postgres lock_timeout
// behavior.
type rowLock chan struct{}

func newRowLock() rowLock { return make(rowLock, 1) }

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	default:
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return exchange.ErrLockTimeout
		}
		return ctx.Err()
	}
}

func (l rowLock) release() { <-l }

type qbKey struct {
	userUID       uuid.UUID
	instrumentUID uuid.UUID
}

type orderRow struct {
	lock  rowLock
	order exchange.Order
}

type cashRow struct {
	lock    rowLock
	balance exchange.CashBalance
}

type quantityRow struct {
	lock    rowLock
	balance exchange.QuantityBalance
}

type statsSnapshot struct {
	runUID uuid.UUID
	stats  exchange.InstrumentStats
}

// Store holds every table in memory. The struct mutex guards map shape
// and row snapshots; row mutation between Lock* and Commit is guarded by
// the per-row locks.
type Store struct {
	mu  sync.RWMutex
	seq int64

	userRows     map[uuid.UUID]*users.User
	usersByEmail map[string]uuid.UUID
	tokens       map[string]uuid.UUID
	instruments  map[uuid.UUID]*exchange.Instrument
	orders       map[uuid.UUID]*orderRow
	cash         map[uuid.UUID]*cashRow
	quantity     map[qbKey]*quantityRow
	trades       []exchange.Trade
	snapshots    []statsSnapshot
}

var (
	_ interfaces.LedgerRepository      = (*Store)(nil)
	_ interfaces.InstrumentsRepository = (*Store)(nil)
	_ interfaces.UsersRepository       = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		userRows:     make(map[uuid.UUID]*users.User),
		usersByEmail: make(map[string]uuid.UUID),
		tokens:       make(map[string]uuid.UUID),
		instruments:  make(map[uuid.UUID]*exchange.Instrument),
		orders:       make(map[uuid.UUID]*orderRow),
		cash:         make(map[uuid.UUID]*cashRow),
		quantity:     make(map[qbKey]*quantityRow),
	}
}

func (s *Store) Close() {}

// Begin opens a matching-pass scope. Locks are taken by the Lock* calls
// and released on Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ledgerTx{
		store:       s,
		lockedOrder: make(map[uuid.UUID]*orderRow),
		lockedCash:  make(map[uuid.UUID]*cashRow),
		lockedQty:   make(map[qbKey]*quantityRow),
		pendingOrd:  make(map[uuid.UUID]exchange.Order),
		pendingCash: make(map[uuid.UUID]exchange.CashBalance),
		pendingQty:  make(map[qbKey]exchange.QuantityBalance),
	}, nil
}

type ledgerTx struct {
	store *Store
	done  bool

	lockedOrder map[uuid.UUID]*orderRow
	lockedCash  map[uuid.UUID]*cashRow
	lockedQty   map[qbKey]*quantityRow

	inserted    []exchange.Order
	pendingOrd  map[uuid.UUID]exchange.Order
	pendingCash map[uuid.UUID]exchange.CashBalance
	pendingQty  map[qbKey]exchange.QuantityBalance
	trades      []exchange.Trade
}

// LockEligibleOrders snapshots the candidate rows in priority order, then
// acquires their locks in that same order. Every pass walks the book in
// the same global priority sequence, which keeps concurrent acquisition
// cycle-free. Rows that left the Active state while we waited are
// dropped from the result.
func (t *ledgerTx) LockEligibleOrders(ctx context.Context, instrumentUID uuid.UUID, side exchange.OrderSide, priceBound decimal.Decimal) ([]*exchange.Order, error) {
	if t.done {
		return nil, errors.New("transaction is closed")
	}

	t.store.mu.RLock()
	var candidates []*orderRow
	for _, row := range t.store.orders {
		o := row.order
		if o.InstrumentUID != instrumentUID || o.Side != side || o.Status != exchange.OrderStatusActive {
			continue
		}
		if side == exchange.OrderSideSell && o.Price.GreaterThan(priceBound) {
			continue
		}
		if side == exchange.OrderSideBuy && o.Price.LessThan(priceBound) {
			continue
		}
		candidates = append(candidates, row)
	}
	t.store.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := candidates[i].order.Price, candidates[j].order.Price
		if !pi.Equal(pj) {
			if side == exchange.OrderSideSell {
				return pi.LessThan(pj)
			}
			return pi.GreaterThan(pj)
		}
		return candidates[i].order.Seq < candidates[j].order.Seq
	})

	var result []*exchange.Order
	for _, row := range candidates {
		if err := row.lock.acquire(ctx); err != nil {
			return nil, err
		}
		t.store.mu.RLock()
		current := row.order
		t.store.mu.RUnlock()
		if current.Status != exchange.OrderStatusActive {
			row.lock.release()
			continue
		}
		t.lockedOrder[current.UID] = row
		snapshot := current
		result = append(result, &snapshot)
	}
	return result, nil
}

func (t *ledgerTx) LockCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error) {
	if row, ok := t.lockedCash[userUID]; ok {
		snapshot := t.pendingOrCurrentCash(row, userUID)
		return snapshot, nil
	}
	t.store.mu.RLock()
	row, ok := t.store.cash[userUID]
	t.store.mu.RUnlock()
	if !ok {
		return nil, exchange.ErrMissingBalance
	}
	if err := row.lock.acquire(ctx); err != nil {
		return nil, err
	}
	t.lockedCash[userUID] = row
	t.store.mu.RLock()
	snapshot := row.balance
	t.store.mu.RUnlock()
	return &snapshot, nil
}

func (t *ledgerTx) pendingOrCurrentCash(row *cashRow, userUID uuid.UUID) *exchange.CashBalance {
	if pending, ok := t.pendingCash[userUID]; ok {
		snapshot := pending
		return &snapshot
	}
	t.store.mu.RLock()
	snapshot := row.balance
	t.store.mu.RUnlock()
	return &snapshot
}

func (t *ledgerTx) LockQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error) {
	key := qbKey{userUID: userUID, instrumentUID: instrumentUID}
	if row, ok := t.lockedQty[key]; ok {
		if pending, okPending := t.pendingQty[key]; okPending {
			snapshot := pending
			return &snapshot, nil
		}
		t.store.mu.RLock()
		snapshot := row.balance
		t.store.mu.RUnlock()
		return &snapshot, nil
	}
	t.store.mu.RLock()
	row, ok := t.store.quantity[key]
	t.store.mu.RUnlock()
	if !ok {
		return nil, exchange.ErrMissingBalance
	}
	if err := row.lock.acquire(ctx); err != nil {
		return nil, err
	}
	t.lockedQty[key] = row
	t.store.mu.RLock()
	snapshot := row.balance
	t.store.mu.RUnlock()
	return &snapshot, nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, order *exchange.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.inserted = append(t.inserted, *order)
	return nil
}

func (t *ledgerTx) UpdateOrder(ctx context.Context, order *exchange.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.lockedOrder[order.UID]; !ok {
		return errors.New("order row is not locked by this transaction")
	}
	t.pendingOrd[order.UID] = *order
	return nil
}

func (t *ledgerTx) UpdateCashBalance(ctx context.Context, balance *exchange.CashBalance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := t.lockedCash[balance.UserUID]; !ok {
		return errors.New("cash balance row is not locked by this transaction")
	}
	t.pendingCash[balance.UserUID] = *balance
	return nil
}

func (t *ledgerTx) UpdateQuantityBalance(ctx context.Context, balance *exchange.QuantityBalance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := qbKey{userUID: balance.UserUID, instrumentUID: balance.InstrumentUID}
	if _, ok := t.lockedQty[key]; !ok {
		return errors.New("quantity balance row is not locked by this transaction")
	}
	t.pendingQty[key] = *balance
	return nil
}

func (t *ledgerTx) InsertTrades(ctx context.Context, trades []exchange.Trade) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.trades = append(t.trades, trades...)
	return nil
}

// Commit applies every pending mutation atomically and releases all row
// locks.
func (t *ledgerTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.store.mu.Lock()
	for uid, pending := range t.pendingOrd {
		t.lockedOrder[uid].order = pending
	}
	for _, inserted := range t.inserted {
		t.store.seq++
		inserted.Seq = t.store.seq
		t.store.orders[inserted.UID] = &orderRow{lock: newRowLock(), order: inserted}
	}
	for userUID, pending := range t.pendingCash {
		t.lockedCash[userUID].balance = pending
	}
	for key, pending := range t.pendingQty {
		t.lockedQty[key].balance = pending
	}
	t.store.trades = append(t.store.trades, t.trades...)
	t.store.mu.Unlock()

	t.releaseAll()
	t.done = true
	return nil
}

// Rollback discards pending mutations and releases all row locks.
func (t *ledgerTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.releaseAll()
	t.done = true
	return nil
}

func (t *ledgerTx) releaseAll() {
	for _, row := range t.lockedOrder {
		row.lock.release()
	}
	for _, row := range t.lockedCash {
		row.lock.release()
	}
	for _, row := range t.lockedQty {
		row.lock.release()
	}
}
