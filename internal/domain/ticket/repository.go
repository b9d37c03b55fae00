package ticket

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ticket, error)
	Update(ctx context.Context, t *Ticket) error
	List(ctx context.Context, q *ListQuery) ([]*Ticket, int64, error)

	AddComment(ctx context.Context, c *Comment) error
	ListComments(ctx context.Context, ticketID uuid.UUID) ([]*Comment, error)
}
