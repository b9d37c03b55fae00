package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	// Create persists a new user. Returns ErrUserAlreadyExists on duplicate email.
	Create(ctx context.Context, u *User) error

	// GetByID returns ErrUserNotFound when the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*User, error)

	// UpdateLoginState writes the lockout columns and last login timestamp.
	UpdateLoginState(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error

	// ListActiveByRoles returns active users holding any of roles.
	ListActiveByRoles(ctx context.Context, roles ...Role) ([]*User, error)
}

type TokenRepository interface {
	Create(ctx context.Context, t *UserToken) error
	GetByRefreshHash(ctx context.Context, hash string) (*UserToken, error)

	// Revoke marks the token revoked. It reports false when no live row matched.
	Revoke(ctx context.Context, refreshHash string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error
}
