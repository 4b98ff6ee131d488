package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. The password hash never leaves the service layer.
type User struct {
	UID          uuid.UUID `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Token is an opaque bearer token issued on authentication.
type Token struct {
	Value     string    `json:"token"`
	UserUID   uuid.UUID `json:"user_uid"`
	CreatedAt time.Time `json:"created_at"`
}
