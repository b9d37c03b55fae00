// Package testutil provides in-memory repositories and fakes for service and
// handler tests.
package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
)

type UserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]domain.User)}
}

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	r.users[u.ID] = *u
	return nil
}

// Add stores u as-is, assigning an id when missing. It returns u for chaining.
func (r *UserRepo) Add(u *domain.User) *domain.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.mu.Lock()
	r.users[u.ID] = *u
	r.mu.Unlock()
	return u
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if u.Email == email && u.DeletedAt == nil {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *UserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok && u.DeletedAt == nil {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r *UserRepo) UpdateLoginState(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	stored.FailedLoginAttempts = u.FailedLoginAttempts
	stored.LockedUntil = u.LockedUntil
	stored.IsActive = u.IsActive
	stored.LastLoginAt = u.LastLoginAt
	r.users[u.ID] = stored
	return nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	stored.PasswordHash = hash
	stored.PasswordChangedAt = changedAt
	r.users[id] = stored
	return nil
}

func (r *UserRepo) ListActiveByRoles(_ context.Context, roles ...domain.Role) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.IsActive && u.DeletedAt == nil && slices.Contains(roles, u.Role) {
			out = append(out, &u)
		}
	}
	slices.SortFunc(out, func(a, b *domain.User) int { return strings.Compare(a.ID.String(), b.ID.String()) })
	return out, nil
}

type TokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.UserToken
}

func NewTokenRepo() *TokenRepo {
	return &TokenRepo{tokens: make(map[string]domain.UserToken)}
}

func (r *TokenRepo) Create(_ context.Context, t *domain.UserToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	r.tokens[t.RefreshTokenHash] = *t
	return nil
}

func (r *TokenRepo) GetByRefreshHash(_ context.Context, hash string) (*domain.UserToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[hash]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return &t, nil
}

func (r *TokenRepo) Revoke(_ context.Context, refreshHash string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[refreshHash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked, t.RevokedAt = true, &at
	r.tokens[refreshHash] = t
	return true, nil
}

func (r *TokenRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked, t.RevokedAt = true, &at
			r.tokens[k] = t
		}
	}
	return nil
}

// AuditRepo records audit rows written by the async audit worker.
type AuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *AuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *AuditRepo) Entries() []domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}
