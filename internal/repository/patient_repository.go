package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if err := conn(ctx, r.db).Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return patient.ErrPatientAlreadyExists
		}
		return fmt.Errorf("creating patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *PatientRepository) first(ctx context.Context, query string, arg any) (*patient.Patient, error) {
	var p patient.Patient
	err := conn(ctx, r.db).Where(query+" AND deleted_at IS NULL", arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*patient.Patient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*patient.Patient
	if err := conn(ctx, r.db).Where("id IN ? AND deleted_at IS NULL", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("getting patients: %w", err)
	}
	return out, nil
}

func (r *PatientRepository) CreateFamilyLink(ctx context.Context, link *patient.FamilyLink) error {
	if err := conn(ctx, r.db).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return patient.ErrFamilyLinkExists
		}
		return fmt.Errorf("creating family link: %w", err)
	}
	return nil
}

func (r *PatientRepository) ListFamilyUserIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Model(&patient.FamilyLink{}).
		Where("patient_id = ?", patientID).
		Order("created_at").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing family members: %w", err)
	}
	return ids, nil
}

func (r *PatientRepository) IsFamilyMember(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&patient.FamilyLink{}).
		Where("user_id = ? AND patient_id = ?", userID, patientID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking family link: %w", err)
	}
	return n > 0, nil
}

type ProviderRepository struct {
	db *gorm.DB
}

func NewProviderRepository(db *gorm.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

func (r *ProviderRepository) Create(ctx context.Context, p *provider.Provider) error {
	if err := conn(ctx, r.db).Create(p).Error; err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}
	return nil
}

func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*provider.Provider, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *ProviderRepository) first(ctx context.Context, query string, arg any) (*provider.Provider, error) {
	var p provider.Provider
	err := conn(ctx, r.db).Where(query+" AND deleted_at IS NULL", arg).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting provider: %w", err)
	}
	return &p, nil
}

func (r *ProviderRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*provider.Provider, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*provider.Provider
	if err := conn(ctx, r.db).Where("id IN ? AND deleted_at IS NULL", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("getting providers: %w", err)
	}
	return out, nil
}

func (r *ProviderRepository) ListAbsencesOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]*provider.Absence, []*provider.ShortAbsence, error) {
	var full []*provider.Absence
	err := conn(ctx, r.db).
		Where("provider_id = ? AND start_date <= ? AND end_date >= ?", providerID, date, date).
		Find(&full).Error
	if err != nil {
		return nil, nil, fmt.Errorf("listing absences: %w", err)
	}
	var short []*provider.ShortAbsence
	err = conn(ctx, r.db).
		Where("provider_id = ? AND date = ?", providerID, date).
		Order("start_time").
		Find(&short).Error
	if err != nil {
		return nil, nil, fmt.Errorf("listing short absences: %w", err)
	}
	return full, short, nil
}
