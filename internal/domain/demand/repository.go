package demand

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *ServiceDemand) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceDemand, error)
	GetByNumber(ctx context.Context, number int64) (*ServiceDemand, error)
	Update(ctx context.Context, d *ServiceDemand) error
	List(ctx context.Context, q *ListQuery) ([]*ServiceDemand, int64, error)
}
