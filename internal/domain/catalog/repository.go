package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateService(ctx context.Context, s *Service) error
	GetService(ctx context.Context, id uuid.UUID) (*Service, error)
	ListServices(ctx context.Context) ([]*Service, error)

	// CreateOverride returns ErrOverrideExists when (patient, service) is already priced.
	CreateOverride(ctx context.Context, o *PatientServicePrice) error
	GetOverride(ctx context.Context, patientID, serviceID uuid.UUID) (*PatientServicePrice, error)
	ListOverrides(ctx context.Context, patientID uuid.UUID) ([]*PatientServicePrice, error)
	DeleteOverride(ctx context.Context, id uuid.UUID) error
}
