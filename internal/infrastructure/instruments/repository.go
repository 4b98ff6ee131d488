package instruments

import (
	"context"
	"errors"
	"fmt"
	"time"

	exchange "main/internal/domain/entity/exchange"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.InstrumentsRepository = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// CreateInstrument inserts the instrument and provisions a zero quantity
// balance for every existing user in the same transaction.
func (r *Repository) CreateInstrument(ctx context.Context, instrument *exchange.Instrument) error {
	if instrument == nil {
		return errors.New("instrument is nil")
	}
	if instrument.UID == uuid.Nil {
		instrument.UID = uuid.New()
	}
	if instrument.Status == "" {
		instrument.Status = exchange.InstrumentStatusActive
	}
	now := time.Now().UTC()
	if instrument.CreatedAt.IsZero() {
		instrument.CreatedAt = now
	}
	instrument.UpdatedAt = now

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertQuery = `
		INSERT INTO instruments (uid, name, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)`
	if _, err := tx.Exec(ctx, insertQuery,
		instrument.UID, instrument.Name, instrument.Status, instrument.CreatedAt, instrument.UpdatedAt); err != nil {
		return fmt.Errorf("insert instrument: %w", err)
	}

	const provisionQuery = `
		INSERT INTO quantity_balances (user_uid, instrument_uid, amount, created_at, updated_at)
		SELECT uid, $1, 0, $2, $2 FROM users
		ON CONFLICT (user_uid, instrument_uid) DO NOTHING`
	if _, err := tx.Exec(ctx, provisionQuery, instrument.UID, now); err != nil {
		return fmt.Errorf("provision quantity balances: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetInstrument(ctx context.Context, uid uuid.UUID) (*exchange.Instrument, error) {
	const query = `
		SELECT uid, name, status, created_at, updated_at
		FROM instruments
		WHERE uid = $1`

	instrument := &exchange.Instrument{}
	err := r.pool.QueryRow(ctx, query, uid).Scan(
		&instrument.UID, &instrument.Name, &instrument.Status, &instrument.CreatedAt, &instrument.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrInstrumentNotFound
		}
		return nil, err
	}
	return instrument, nil
}

func (r *Repository) UpdateInstrument(ctx context.Context, instrument *exchange.Instrument) error {
	if instrument == nil {
		return errors.New("instrument is nil")
	}
	if instrument.UID == uuid.Nil {
		return errors.New("instrument UID is required")
	}
	if !instrument.Status.IsValid() {
		return fmt.Errorf("invalid instrument status: %s", instrument.Status)
	}
	instrument.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE instruments
		SET name = $2, status = $3, updated_at = $4
		WHERE uid = $1`

	cmdTag, err := r.pool.Exec(ctx, query,
		instrument.UID, instrument.Name, instrument.Status, instrument.UpdatedAt)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return exchange.ErrInstrumentNotFound
	}
	return nil
}

func (r *Repository) ListInstruments(ctx context.Context) ([]*exchange.Instrument, error) {
	const query = `
		SELECT uid, name, status, created_at, updated_at
		FROM instruments
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []*exchange.Instrument
	for rows.Next() {
		instrument := &exchange.Instrument{}
		if err := rows.Scan(&instrument.UID, &instrument.Name, &instrument.Status,
			&instrument.CreatedAt, &instrument.UpdatedAt); err != nil {
			return nil, err
		}
		instruments = append(instruments, instrument)
	}
	return instruments, rows.Err()
}
