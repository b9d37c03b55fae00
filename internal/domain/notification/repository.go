package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error

	// ListForUser orders by creation time, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID, q *ListQuery) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)

	// MarkRead returns ErrNotificationNotFound when the notification is not the user's.
	MarkRead(ctx context.Context, userID, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)

	// GetPreference returns ErrPreferenceNotFound when the user has none yet.
	GetPreference(ctx context.Context, userID uuid.UUID) (*Preference, error)
	SavePreference(ctx context.Context, p *Preference) error

	CreateLog(ctx context.Context, l *Log) error
}
