package users

import (
	"context"
	"errors"
	"fmt"

	domain "main/internal/domain/entity/users"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type Repository struct {
	pool *pgxpool.Pool
}

var _ interfaces.UsersRepository = (*Repository)(nil)

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

// CreateUser inserts the user row and provisions the cash balance plus a
// zero quantity balance per existing instrument, all in one transaction.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.New("user is nil")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertUser = `
		INSERT INTO users (uid, email, password_hash, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := tx.Exec(ctx, insertUser,
		user.UID, user.Email, user.PasswordHash, user.IsActive, user.CreatedAt, user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	const insertCash = `
		INSERT INTO cash_balances (user_uid, amount, created_at, updated_at)
		VALUES ($1, 0, $2, $2)`
	if _, err := tx.Exec(ctx, insertCash, user.UID, user.CreatedAt); err != nil {
		return fmt.Errorf("provision cash balance: %w", err)
	}

	const insertQuantities = `
		INSERT INTO quantity_balances (user_uid, instrument_uid, amount, created_at, updated_at)
		SELECT $1, uid, 0, $2, $2 FROM instruments
		ON CONFLICT (user_uid, instrument_uid) DO NOTHING`
	if _, err := tx.Exec(ctx, insertQuantities, user.UID, user.CreatedAt); err != nil {
		return fmt.Errorf("provision quantity balances: %w", err)
	}

	return tx.Commit(ctx)
}

const userColumns = `uid, email, password_hash, is_active, created_at, updated_at`

func scanUserInto(row pgx.Row, user *domain.User) error {
	return row.Scan(&user.UID, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	user := &domain.User{}
	if err := scanUserInto(r.pool.QueryRow(ctx, query, email), user); err != nil {
		return nil, translateNotFound(err)
	}
	return user, nil
}

func (r *Repository) GetUser(ctx context.Context, uid uuid.UUID) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE uid = $1`, userColumns)
	user := &domain.User{}
	if err := scanUserInto(r.pool.QueryRow(ctx, query, uid), user); err != nil {
		return nil, translateNotFound(err)
	}
	return user, nil
}

func (r *Repository) CreateToken(ctx context.Context, token *domain.Token) error {
	if token == nil {
		return errors.New("token is nil")
	}
	const query = `
		INSERT INTO tokens (value, user_uid, created_at)
		VALUES ($1,$2,$3)`
	_, err := r.pool.Exec(ctx, query, token.Value, token.UserUID, token.CreatedAt)
	return err
}

func (r *Repository) GetUserByToken(ctx context.Context, token string) (*domain.User, error) {
	const query = `
		SELECT u.uid, u.email, u.password_hash, u.is_active, u.created_at, u.updated_at
		FROM users u
		JOIN tokens t ON t.user_uid = u.uid
		WHERE t.value = $1`

	user := &domain.User{}
	if err := scanUserInto(r.pool.QueryRow(ctx, query, token), user); err != nil {
		return nil, translateNotFound(err)
	}
	return user, nil
}

func translateNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	return err
}
