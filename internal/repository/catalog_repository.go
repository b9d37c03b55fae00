package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateService(ctx context.Context, s *catalog.Service) error {
	if err := conn(ctx, r.db).Create(s).Error; err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var s catalog.Service
	err := conn(ctx, r.db).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting service: %w", err)
	}
	return &s, nil
}

func (r *CatalogRepository) ListServices(ctx context.Context) ([]*catalog.Service, error) {
	var out []*catalog.Service
	if err := conn(ctx, r.db).Order("name").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) CreateOverride(ctx context.Context, o *catalog.PatientServicePrice) error {
	if err := conn(ctx, r.db).Create(o).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return catalog.ErrOverrideExists
		}
		return fmt.Errorf("creating price override: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetOverride(ctx context.Context, patientID, serviceID uuid.UUID) (*catalog.PatientServicePrice, error) {
	var o catalog.PatientServicePrice
	err := conn(ctx, r.db).Where("patient_id = ? AND service_id = ?", patientID, serviceID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, catalog.ErrOverrideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting price override: %w", err)
	}
	return &o, nil
}

func (r *CatalogRepository) ListOverrides(ctx context.Context, patientID uuid.UUID) ([]*catalog.PatientServicePrice, error) {
	var out []*catalog.PatientServicePrice
	if err := conn(ctx, r.db).Where("patient_id = ?", patientID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing price overrides: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) DeleteOverride(ctx context.Context, id uuid.UUID) error {
	res := conn(ctx, r.db).Where("id = ?", id).Delete(&catalog.PatientServicePrice{})
	if res.Error != nil {
		return fmt.Errorf("deleting price override: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrOverrideNotFound
	}
	return nil
}
