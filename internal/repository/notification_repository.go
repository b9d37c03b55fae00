package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if err := conn(ctx, r.db).Create(n).Error; err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, q *notification.ListQuery) ([]*notification.Notification, error) {
	query := conn(ctx, r.db).Where("recipient_id = ?", userID)
	if q.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []*notification.Notification
	if err := query.Order("created_at DESC").Offset(max(q.Offset, 0)).Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&notification.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error {
	res := conn(ctx, r.db).Model(&notification.Notification{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if res.Error != nil {
		return fmt.Errorf("marking notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notification.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := conn(ctx, r.db).Model(&notification.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	if res.Error != nil {
		return 0, fmt.Errorf("marking notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *NotificationRepository) GetPreference(ctx context.Context, userID uuid.UUID) (*notification.Preference, error) {
	var p notification.Preference
	err := conn(ctx, r.db).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notification.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification preference: %w", err)
	}
	return &p, nil
}

func (r *NotificationRepository) SavePreference(ctx context.Context, p *notification.Preference) error {
	if err := conn(ctx, r.db).Save(p).Error; err != nil {
		return fmt.Errorf("saving notification preference: %w", err)
	}
	return nil
}

func (r *NotificationRepository) CreateLog(ctx context.Context, l *notification.Log) error {
	if err := conn(ctx, r.db).Create(l).Error; err != nil {
		return fmt.Errorf("creating notification log: %w", err)
	}
	return nil
}
