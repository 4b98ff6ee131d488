package interfaces

import (
	"context"

	users "main/internal/domain/entity/users"

	"github.com/google/uuid"
)

// UsersRepository stores account holders and their auth tokens. Creating a
// user provisions the cash balance and a zero quantity balance for every
// existing instrument, atomically with the user row.
type UsersRepository interface {
	CreateUser(ctx context.Context, user *users.User) error
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUser(ctx context.Context, uid uuid.UUID) (*users.User, error)

	CreateToken(ctx context.Context, token *users.Token) error
	GetUserByToken(ctx context.Context, token string) (*users.User, error)

	Close()
}
