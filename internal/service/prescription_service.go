package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type PrescriptionService struct {
	repo     prescription.Repository
	demands  demand.Repository
	patients *PatientService
	auditSvc *AuditService
	log      *zap.Logger
	now      func() time.Time
}

func NewPrescriptionService(repo prescription.Repository, demands demand.Repository, patients *PatientService, auditSvc *AuditService, log *zap.Logger) *PrescriptionService {
	return &PrescriptionService{
		repo:     repo,
		demands:  demands,
		patients: patients,
		auditSvc: auditSvc,
		log:      log,
		now:      time.Now,
	}
}

// ForDemand returns the prescription promoted from service demand number,
// creating it on first use. The canonical note is the idempotency key, so every
// timeslot booked against the same demand shares one prescription.
func (s *PrescriptionService) ForDemand(ctx context.Context, number int64, createdBy uuid.UUID) (*prescription.Prescription, error) {
	d, err := s.demands.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.forDemand(ctx, d, createdBy)
}

func (s *PrescriptionService) forDemand(ctx context.Context, d *demand.ServiceDemand, createdBy uuid.UUID) (*prescription.Prescription, error) {
	note := prescription.DemandNote(d.Number, d.Title)

	existing, err := s.repo.FindByNote(ctx, note)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, prescription.ErrPrescriptionNotFound) {
		return nil, fmt.Errorf("looking up prescription by note: %w", err)
	}

	start := schedule.DateOnly(s.now())
	if d.PreferredStartDate != nil {
		start = schedule.DateOnly(*d.PreferredStartDate)
	}
	patientID := d.PatientID
	p := &prescription.Prescription{
		ServiceID:    d.ServiceID,
		PatientID:    &patientID,
		StartDate:    start,
		Frequency:    d.Frequency,
		Status:       prescription.StatusAccepted,
		Note:         note,
		Instructions: d.Description,
		CreatedBy:    &createdBy,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	s.log.Info("prescription promoted from service demand",
		zap.Int64("demand_number", d.Number),
		zap.String("prescription_id", p.ID.String()),
	)
	return p, nil
}

func (s *PrescriptionService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*prescription.Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PatientID != nil {
		if err := s.patients.Authorize(ctx, actor, *p.PatientID); err != nil {
			return nil, err
		}
	} else if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *PrescriptionService) ListByPatient(ctx context.Context, actor domain.Actor, patientID uuid.UUID) ([]*prescription.Prescription, error) {
	if err := s.patients.Authorize(ctx, actor, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *PrescriptionService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, next prescription.Status) (*prescription.Prescription, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if !next.IsValid() {
		return nil, invalid("status: must be one of pending, accepted, canceled, completed, rejected")
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := p.Status.TransitionTo(next)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("updating prescription status: %w", err)
	}
	p.Status = status

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "prescription",
		ResourceID:   id.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"status": strings.ToLower(string(status))},
	})
	return p, nil
}
