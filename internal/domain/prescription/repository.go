package prescription

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Prescription, error)

	// FindByNote returns ErrPrescriptionNotFound when no prescription carries note.
	FindByNote(ctx context.Context, note string) (*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Prescription, error)
}
