package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	exchange "main/internal/domain/entity/exchange"
)

// ledgerTx wraps one pgx transaction as a matching-pass scope. Every row
// read by a Lock* method stays exclusively locked until Commit or
// Rollback.
type ledgerTx struct {
	tx pgx.Tx
}

const eligibleOrdersAsc = `
	SELECT uid, user_uid, instrument_uid, side, status, price::text,
	       settlement_price::text, total_quantity::text, remaining_quantity::text,
	       seq, created_at, updated_at
	FROM orders
	WHERE instrument_uid = $1 AND side = $2 AND status = $3 AND price <= $4
	ORDER BY price ASC, created_at ASC, seq ASC
	FOR UPDATE`

const eligibleOrdersDesc = `
	SELECT uid, user_uid, instrument_uid, side, status, price::text,
	       settlement_price::text, total_quantity::text, remaining_quantity::text,
	       seq, created_at, updated_at
	FROM orders
	WHERE instrument_uid = $1 AND side = $2 AND status = $3 AND price >= $4
	ORDER BY price DESC, created_at ASC, seq ASC
	FOR UPDATE`

func (t *ledgerTx) LockEligibleOrders(ctx context.Context, instrumentUID uuid.UUID, side exchange.OrderSide, priceBound decimal.Decimal) ([]*exchange.Order, error) {
	query := eligibleOrdersAsc
	if side == exchange.OrderSideBuy {
		query = eligibleOrdersDesc
	}
	rows, err := t.tx.Query(ctx, query, instrumentUID, side, exchange.OrderStatusActive, priceBound.String())
	if err != nil {
		return nil, translateLockErr(err)
	}
	defer rows.Close()

	var orders []*exchange.Order
	for rows.Next() {
		order := &exchange.Order{}
		if err := scanOrderInto(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, translateLockErr(err)
	}
	return orders, nil
}

func (t *ledgerTx) LockCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error) {
	const query = `
		SELECT user_uid, amount::text, created_at, updated_at
		FROM cash_balances
		WHERE user_uid = $1
		FOR UPDATE`

	balance := &exchange.CashBalance{}
	var amount string
	err := t.tx.QueryRow(ctx, query, userUID).Scan(&balance.UserUID, &amount, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrMissingBalance
		}
		return nil, translateLockErr(err)
	}
	if balance.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse cash amount: %w", err)
	}
	return balance, nil
}

func (t *ledgerTx) LockQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error) {
	const query = `
		SELECT user_uid, instrument_uid, amount::text, created_at, updated_at
		FROM quantity_balances
		WHERE user_uid = $1 AND instrument_uid = $2
		FOR UPDATE`

	balance := &exchange.QuantityBalance{}
	var amount string
	err := t.tx.QueryRow(ctx, query, userUID, instrumentUID).Scan(
		&balance.UserUID, &balance.InstrumentUID, &amount, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrMissingBalance
		}
		return nil, translateLockErr(err)
	}
	if balance.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse quantity amount: %w", err)
	}
	return balance, nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, order *exchange.Order) error {
	const query = `
		INSERT INTO orders (uid, user_uid, instrument_uid, side, status, price,
		                    settlement_price, total_quantity, remaining_quantity,
		                    created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING seq`

	err := t.tx.QueryRow(ctx, query,
		order.UID,
		order.UserUID,
		order.InstrumentUID,
		order.Side,
		order.Status,
		order.Price.String(),
		settlementPriceArg(order),
		order.TotalQuantity.String(),
		order.RemainingQuantity.String(),
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.Seq)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (t *ledgerTx) UpdateOrder(ctx context.Context, order *exchange.Order) error {
	const query = `
		UPDATE orders
		SET status = $2,
		    settlement_price = $3,
		    remaining_quantity = $4,
		    updated_at = $5
		WHERE uid = $1`

	cmdTag, err := t.tx.Exec(ctx, query,
		order.UID,
		order.Status,
		settlementPriceArg(order),
		order.RemainingQuantity.String(),
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return exchange.ErrOrderNotFound
	}
	return nil
}

func (t *ledgerTx) UpdateCashBalance(ctx context.Context, balance *exchange.CashBalance) error {
	const query = `
		UPDATE cash_balances
		SET amount = $2, updated_at = $3
		WHERE user_uid = $1`

	cmdTag, err := t.tx.Exec(ctx, query, balance.UserUID, balance.Amount.String(), balance.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update cash balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return exchange.ErrMissingBalance
	}
	return nil
}

func (t *ledgerTx) UpdateQuantityBalance(ctx context.Context, balance *exchange.QuantityBalance) error {
	const query = `
		UPDATE quantity_balances
		SET amount = $3, updated_at = $4
		WHERE user_uid = $1 AND instrument_uid = $2`

	cmdTag, err := t.tx.Exec(ctx, query,
		balance.UserUID, balance.InstrumentUID, balance.Amount.String(), balance.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update quantity balance: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return exchange.ErrMissingBalance
	}
	return nil
}

func (t *ledgerTx) InsertTrades(ctx context.Context, trades []exchange.Trade) error {
	const query = `
		INSERT INTO trades (id, instrument_uid, buy_order_uid, sell_order_uid,
		                    buyer_uid, seller_uid, quantity, price, executed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	for _, trade := range trades {
		if _, err := t.tx.Exec(ctx, query,
			trade.ID,
			trade.InstrumentUID,
			trade.BuyOrderUID,
			trade.SellOrderUID,
			trade.BuyerUID,
			trade.SellerUID,
			trade.Quantity.String(),
			trade.Price.String(),
			trade.ExecutedAt,
		); err != nil {
			return fmt.Errorf("insert trade: %w", err)
		}
	}
	return nil
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *ledgerTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func settlementPriceArg(order *exchange.Order) interface{} {
	if order.SettlementPrice == nil {
		return nil
	}
	return order.SettlementPrice.String()
}

// scanOrderInto reads one order row projected with text-cast numerics.
func scanOrderInto(row pgx.Row, order *exchange.Order) error {
	var price, total, remaining string
	var settlement *string
	if err := row.Scan(
		&order.UID,
		&order.UserUID,
		&order.InstrumentUID,
		&order.Side,
		&order.Status,
		&price,
		&settlement,
		&total,
		&remaining,
		&order.Seq,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return err
	}
	var err error
	if order.Price, err = decimal.NewFromString(price); err != nil {
		return fmt.Errorf("parse order price: %w", err)
	}
	if order.TotalQuantity, err = decimal.NewFromString(total); err != nil {
		return fmt.Errorf("parse order total quantity: %w", err)
	}
	if order.RemainingQuantity, err = decimal.NewFromString(remaining); err != nil {
		return fmt.Errorf("parse order remaining quantity: %w", err)
	}
	if settlement != nil {
		parsed, err := decimal.NewFromString(*settlement)
		if err != nil {
			return fmt.Errorf("parse settlement price: %w", err)
		}
		order.SettlementPrice = &parsed
	}
	return nil
}
