package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if err := conn(ctx, r.db).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := conn(ctx, r.db).Where("id = ? AND deleted_at IS NULL", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := conn(ctx, r.db).
		Where("email = ? AND deleted_at IS NULL", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*domain.User
	if err := conn(ctx, r.db).Where("id IN ? AND deleted_at IS NULL", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("getting users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) UpdateLoginState(ctx context.Context, u *domain.User) error {
	err := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", u.ID).Updates(map[string]any{
		"failed_login_attempts": u.FailedLoginAttempts,
		"locked_until":          u.LockedUntil,
		"is_active":             u.IsActive,
		"last_login_at":         u.LastLoginAt,
	}).Error
	if err != nil {
		return fmt.Errorf("updating login state: %w", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	res := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":       hash,
		"password_changed_at": changedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("updating password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ListActiveByRoles(ctx context.Context, roles ...domain.Role) ([]*domain.User, error) {
	var users []*domain.User
	err := conn(ctx, r.db).
		Where("role IN ? AND is_active = ? AND deleted_at IS NULL", roles, true).
		Order("created_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("listing users by role: %w", err)
	}
	return users, nil
}

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, t *domain.UserToken) error {
	if err := conn(ctx, r.db).Create(t).Error; err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetByRefreshHash(ctx context.Context, hash string) (*domain.UserToken, error) {
	var t domain.UserToken
	err := conn(ctx, r.db).Where("refresh_token_hash = ?", hash).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &t, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, refreshHash string, at time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&domain.UserToken{}).
		Where("refresh_token_hash = ? AND revoked = ?", refreshHash, false).
		Updates(map[string]any{"revoked": true, "revoked_at": at})
	if res.Error != nil {
		return false, fmt.Errorf("revoking token: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) error {
	err := conn(ctx, r.db).Model(&domain.UserToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": at}).Error
	if err != nil {
		return fmt.Errorf("revoking user tokens: %w", err)
	}
	return nil
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	return conn(ctx, r.db).Create(entry).Error
}
