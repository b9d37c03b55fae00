package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists when the user already has one.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error)

	CreateFamilyLink(ctx context.Context, link *FamilyLink) error

	// ListFamilyUserIDs returns the users linked to the patient as family.
	ListFamilyUserIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	IsFamilyMember(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
}
