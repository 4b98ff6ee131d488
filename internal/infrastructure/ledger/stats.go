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

// Statistics are recomputed on demand from historical orders; the
// NULLIF guards make zero-volume instruments report zero instead of a
// division error.

func (r *Repository) VolumeWeightedPrice(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE((SUM(price * total_quantity) / NULLIF(SUM(total_quantity), 0))::text, '0')
		FROM orders
		WHERE instrument_uid = $1`

	return r.scanStat(ctx, query, instrumentUID)
}

func (r *Repository) LiquidityRatio(ctx context.Context, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE((SUM(total_quantity) FILTER (WHERE status = 'completed')
		        / NULLIF(SUM(total_quantity), 0))::text, '0')
		FROM orders
		WHERE instrument_uid = $1`

	return r.scanStat(ctx, query, instrumentUID)
}

func (r *Repository) MarketMakerInventory(ctx context.Context, instrumentUID uuid.UUID, emailMarker string) (decimal.Decimal, error) {
	const query = `
		SELECT qb.amount::text
		FROM quantity_balances qb
		JOIN users u ON u.uid = qb.user_uid
		WHERE qb.instrument_uid = $1 AND u.email LIKE '%' || $2 || '%'
		ORDER BY qb.created_at DESC
		LIMIT 1`

	var amount string
	err := r.pool.QueryRow(ctx, query, instrumentUID, emailMarker).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse inventory amount: %w", err)
	}
	return parsed, nil
}

// InsertStatsSnapshot persists one history row per aggregate, all tagged
// with the same run id.
func (r *Repository) InsertStatsSnapshot(ctx context.Context, runUID uuid.UUID, stats *exchange.InstrumentStats) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		const priceQuery = `
			INSERT INTO price_history (instrument_uid, run_uid, value, created_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, priceQuery,
			stats.InstrumentUID, runUID, stats.VolumeWeightedPrice.String(), stats.ComputedAt); err != nil {
			return fmt.Errorf("insert price history: %w", err)
		}

		const liquidityQuery = `
			INSERT INTO liquidity_history (instrument_uid, run_uid, value, created_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, liquidityQuery,
			stats.InstrumentUID, runUID, stats.LiquidityRatio.String(), stats.ComputedAt); err != nil {
			return fmt.Errorf("insert liquidity history: %w", err)
		}

		const inventoryQuery = `
			INSERT INTO inventory_history (instrument_uid, run_uid, value, created_at)
			VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, inventoryQuery,
			stats.InstrumentUID, runUID, stats.MarketMakerInventory.String(), stats.ComputedAt); err != nil {
			return fmt.Errorf("insert inventory history: %w", err)
		}
		return nil
	})
}

func (r *Repository) scanStat(ctx context.Context, query string, instrumentUID uuid.UUID) (decimal.Decimal, error) {
	var value string
	if err := r.pool.QueryRow(ctx, query, instrumentUID).Scan(&value); err != nil {
		return decimal.Zero, err
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse statistic: %w", err)
	}
	return parsed, nil
}
