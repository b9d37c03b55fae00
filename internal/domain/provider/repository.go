package provider

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Provider, error)

	// ListAbsencesOn returns the full-day and short absences that touch date.
	ListAbsencesOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]*Absence, []*ShortAbsence, error)
}
