package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
)

type PrescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

func (r *PrescriptionRepository) Create(ctx context.Context, p *prescription.Prescription) error {
	if err := conn(ctx, r.db).Create(p).Error; err != nil {
		return fmt.Errorf("creating prescription: %w", err)
	}
	return nil
}

func (r *PrescriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := conn(ctx, r.db).Where("id = ? AND deleted_at IS NULL", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting prescription: %w", err)
	}
	return &p, nil
}

func (r *PrescriptionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*prescription.Prescription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []*prescription.Prescription
	if err := conn(ctx, r.db).Where("id IN ? AND deleted_at IS NULL", ids).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("getting prescriptions: %w", err)
	}
	return out, nil
}

func (r *PrescriptionRepository) FindByNote(ctx context.Context, note string) (*prescription.Prescription, error) {
	var p prescription.Prescription
	err := conn(ctx, r.db).
		Where("note = ? AND deleted_at IS NULL", note).
		Order("created_at").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, prescription.ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding prescription by note: %w", err)
	}
	return &p, nil
}

func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status prescription.Status) error {
	res := conn(ctx, r.db).Model(&prescription.Prescription{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("updating prescription status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return prescription.ErrPrescriptionNotFound
	}
	return nil
}

func (r *PrescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	var out []*prescription.Prescription
	err := conn(ctx, r.db).
		Where("patient_id = ? AND deleted_at IS NULL", patientID).
		Order("start_date DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing prescriptions: %w", err)
	}
	return out, nil
}

type DemandRepository struct {
	db *gorm.DB
}

func NewDemandRepository(db *gorm.DB) *DemandRepository {
	return &DemandRepository{db: db}
}

func (r *DemandRepository) Create(ctx context.Context, d *demand.ServiceDemand) error {
	if err := conn(ctx, r.db).Create(d).Error; err != nil {
		return fmt.Errorf("creating service demand: %w", err)
	}
	return nil
}

func (r *DemandRepository) GetByID(ctx context.Context, id uuid.UUID) (*demand.ServiceDemand, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *DemandRepository) GetByNumber(ctx context.Context, number int64) (*demand.ServiceDemand, error) {
	return r.first(ctx, "number = ?", number)
}

func (r *DemandRepository) first(ctx context.Context, query string, arg any) (*demand.ServiceDemand, error) {
	var d demand.ServiceDemand
	err := conn(ctx, r.db).Where(query, arg).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, demand.ErrDemandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting service demand: %w", err)
	}
	return &d, nil
}

func (r *DemandRepository) Update(ctx context.Context, d *demand.ServiceDemand) error {
	if err := conn(ctx, r.db).Save(d).Error; err != nil {
		return fmt.Errorf("updating service demand: %w", err)
	}
	return nil
}

func (r *DemandRepository) List(ctx context.Context, q *demand.ListQuery) ([]*demand.ServiceDemand, int64, error) {
	query := conn(ctx, r.db).Model(&demand.ServiceDemand{})
	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.ManagedBy != nil {
		query = query.Where("managed_by = ?", *q.ManagedBy)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting service demands: %w", err)
	}

	offset, limit := paginate(q.Page, q.PageSize)
	var out []*demand.ServiceDemand
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing service demands: %w", err)
	}
	return out, total, nil
}
