package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	exchange "main/internal/domain/entity/exchange"
	interfaces "main/internal/domain/interfaces"
)

// pgLockNotAvailable is raised when lock_timeout expires while waiting
// for a row lock.
const pgLockNotAvailable = "55P03"

// Repository is the Postgres ledger store. Row-level FOR UPDATE locks and
// transactional commit give matching passes their exclusive-access and
// rollback guarantees.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ interfaces.LedgerRepository = (*Repository)(nil)

// NewRepository connects the ledger store. lockTimeout bounds row lock
// acquisition inside matching passes; zero waits indefinitely.
func NewRepository(ctx context.Context, dsn string, lockTimeout time.Duration) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return &Repository{pool: pool, lockTimeout: lockTimeout}, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// Begin opens a matching-pass transaction with the configured row lock
// timeout applied for its duration.
func (r *Repository) Begin(ctx context.Context) (interfaces.LedgerTx, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, timeout); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	return &ledgerTx{tx: tx}, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// translateLockErr maps Postgres lock_timeout failures onto the domain
// error so callers can distinguish a retryable timeout from corruption.
func translateLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return exchange.ErrLockTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return exchange.ErrLockTimeout
	}
	return err
}
