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

const orderColumns = `uid, user_uid, instrument_uid, side, status, price::text,
	settlement_price::text, total_quantity::text, remaining_quantity::text,
	seq, created_at, updated_at`

func (r *Repository) GetOrder(ctx context.Context, uid uuid.UUID) (*exchange.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE uid = $1`, orderColumns)
	order := &exchange.Order{}
	if err := scanOrderInto(r.pool.QueryRow(ctx, query, uid), order); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *Repository) ListUserOrders(ctx context.Context, userUID uuid.UUID) ([]*exchange.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_uid = $1 ORDER BY seq DESC`, orderColumns)
	rows, err := r.pool.Query(ctx, query, userUID)
	if err != nil {
		return nil, err
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
	return orders, rows.Err()
}

func (r *Repository) CancelOpenOrders(ctx context.Context, userUID uuid.UUID) (int64, error) {
	const query = `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE user_uid = $1 AND status = $3`

	cmdTag, err := r.pool.Exec(ctx, query, userUID, exchange.OrderStatusCancelled, exchange.OrderStatusActive)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *Repository) GetCashBalance(ctx context.Context, userUID uuid.UUID) (*exchange.CashBalance, error) {
	const query = `
		SELECT user_uid, amount::text, created_at, updated_at
		FROM cash_balances
		WHERE user_uid = $1`

	balance := &exchange.CashBalance{}
	var amount string
	err := r.pool.QueryRow(ctx, query, userUID).Scan(&balance.UserUID, &amount, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrMissingBalance
		}
		return nil, err
	}
	if balance.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse cash amount: %w", err)
	}
	return balance, nil
}

func (r *Repository) SetCashBalance(ctx context.Context, userUID uuid.UUID, amount decimal.Decimal) (*exchange.CashBalance, error) {
	const query = `
		INSERT INTO cash_balances (user_uid, amount, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_uid)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		RETURNING user_uid, amount::text, created_at, updated_at`

	balance := &exchange.CashBalance{}
	var stored string
	err := r.pool.QueryRow(ctx, query, userUID, amount.String()).
		Scan(&balance.UserUID, &stored, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if balance.Amount, err = decimal.NewFromString(stored); err != nil {
		return nil, fmt.Errorf("parse cash amount: %w", err)
	}
	return balance, nil
}

func (r *Repository) GetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID) (*exchange.QuantityBalance, error) {
	const query = `
		SELECT user_uid, instrument_uid, amount::text, created_at, updated_at
		FROM quantity_balances
		WHERE user_uid = $1 AND instrument_uid = $2`

	balance := &exchange.QuantityBalance{}
	var amount string
	err := r.pool.QueryRow(ctx, query, userUID, instrumentUID).Scan(
		&balance.UserUID, &balance.InstrumentUID, &amount, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrMissingBalance
		}
		return nil, err
	}
	if balance.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse quantity amount: %w", err)
	}
	return balance, nil
}

func (r *Repository) SetQuantityBalance(ctx context.Context, userUID, instrumentUID uuid.UUID, amount decimal.Decimal) (*exchange.QuantityBalance, error) {
	const query = `
		INSERT INTO quantity_balances (user_uid, instrument_uid, amount, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_uid, instrument_uid)
		DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		RETURNING user_uid, instrument_uid, amount::text, created_at, updated_at`

	balance := &exchange.QuantityBalance{}
	var stored string
	err := r.pool.QueryRow(ctx, query, userUID, instrumentUID, amount.String()).Scan(
		&balance.UserUID, &balance.InstrumentUID, &stored, &balance.CreatedAt, &balance.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if balance.Amount, err = decimal.NewFromString(stored); err != nil {
		return nil, fmt.Errorf("parse quantity amount: %w", err)
	}
	return balance, nil
}
