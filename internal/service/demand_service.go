package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
)

type DemandService struct {
	repo          demand.Repository
	catalog       catalog.Repository
	patients      *PatientService
	prescriptions *PrescriptionService
	tx            Transactor
	events        EventPublisher
	auditSvc      *AuditService
	log           *zap.Logger
	now           func() time.Time
}

type DemandDeps struct {
	Repo          demand.Repository
	Catalog       catalog.Repository
	Patients      *PatientService
	Prescriptions *PrescriptionService
	Tx            Transactor
	Events        EventPublisher
	Audit         *AuditService
}

func NewDemandService(deps DemandDeps, log *zap.Logger) *DemandService {
	return &DemandService{
		repo:          deps.Repo,
		catalog:       deps.Catalog,
		patients:      deps.Patients,
		prescriptions: deps.Prescriptions,
		tx:            deps.Tx,
		events:        deps.Events,
		auditSvc:      deps.Audit,
		log:           log,
		now:           time.Now,
	}
}

func canManageDemands(r domain.Role) bool {
	return r == domain.RoleCoordinator || r.IsAdmin()
}

func (s *DemandService) Create(ctx context.Context, actor domain.Actor, cmd *demand.CreateDemandCommand) (*demand.ServiceDemand, error) {
	if actor.Role == domain.RolePatient {
		own, err := s.patients.ScopedPatientID(ctx, actor)
		if err != nil {
			return nil, err
		}
		cmd.PatientID = *own
	} else if err := s.patients.Authorize(ctx, actor, cmd.PatientID); err != nil {
		return nil, err
	}

	var fields []string
	if strings.TrimSpace(cmd.Title) == "" {
		fields = append(fields, "title: required")
	}
	if cmd.Priority == "" {
		cmd.Priority = demand.PriorityNormal
	}
	if !cmd.Priority.IsValid() {
		fields = append(fields, "priority: must be one of Low, Normal, High, Urgent")
	}
	if cmd.ContactMethod != "" && !notification.ContactMethod(cmd.ContactMethod).IsValid() {
		fields = append(fields, "contact_method: "+notification.ErrInvalidContactMethod.Error())
	}
	if len(fields) > 0 {
		return nil, invalid(fields...)
	}
	if cmd.ServiceID != nil {
		if _, err := s.catalog.GetService(ctx, *cmd.ServiceID); err != nil {
			return nil, err
		}
	}

	d := &demand.ServiceDemand{
		PatientID:          cmd.PatientID,
		ServiceID:          cmd.ServiceID,
		Title:              strings.TrimSpace(cmd.Title),
		Description:        cmd.Description,
		Reason:             cmd.Reason,
		Priority:           cmd.Priority,
		Status:             demand.StatusPending,
		PreferredStartDate: cmd.PreferredStartDate,
		Frequency:          cmd.Frequency,
		ContactMethod:      cmd.ContactMethod,
		CoordinatorNotes:   []demand.CoordinatorNote{},
		CreatedBy:          actor.UserID,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("creating service demand: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "service_demand",
		ResourceID:   d.ID.String(),
		IPAddress:    actor.IP,
	})
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeServiceDemandCreated,
		ActorID: &actor.UserID,
		Demand:  demandSnapshot(d, actor.Role, ""),
	})
	return d, nil
}

func (s *DemandService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*demand.ServiceDemand, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.patients.Authorize(ctx, actor, d.PatientID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DemandService) List(ctx context.Context, actor domain.Actor, q demand.ListQuery) ([]*demand.ServiceDemand, int64, error) {
	if q.Status != nil && !q.Status.IsValid() {
		return nil, 0, demand.ErrInvalidStatus
	}
	switch {
	case actor.Role == domain.RolePatient:
		own, err := s.patients.ScopedPatientID(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		q.PatientID = own
	case actor.Role.IsStaff():
	default:
		if q.PatientID == nil {
			return nil, 0, invalid("patient_id: required")
		}
		if err := s.patients.Authorize(ctx, actor, *q.PatientID); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.List(ctx, &q)
}

// Transition moves a demand along its status machine. Rejection needs a reason.
// Moving to In Progress goes through Accept so the prescription exists first.
func (s *DemandService) Transition(ctx context.Context, actor domain.Actor, id uuid.UUID, next demand.Status, reason string) (*demand.ServiceDemand, error) {
	if !canManageDemands(actor.Role) {
		return nil, ErrForbidden
	}
	if next == demand.StatusInProgress {
		return s.Accept(ctx, actor, id)
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := d.Status
	if err := d.Apply(next, strings.TrimSpace(reason)); err != nil {
		return nil, err
	}
	if d.ManagedBy == nil {
		d.ManagedBy = &actor.UserID
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("updating service demand: %w", err)
	}
	s.auditTransition(ctx, actor, d, prev)
	return d, nil
}

// Accept promotes an Approved demand into its prescription and moves it to
// In Progress.
func (s *DemandService) Accept(ctx context.Context, actor domain.Actor, id uuid.UUID) (*demand.ServiceDemand, error) {
	if !canManageDemands(actor.Role) {
		return nil, ErrForbidden
	}

	var d *demand.ServiceDemand
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != demand.StatusApproved {
			return demand.ErrNotApproved
		}
		p, err := s.prescriptions.forDemand(ctx, d, actor.UserID)
		if err != nil {
			return err
		}
		if err := d.Apply(demand.StatusInProgress, ""); err != nil {
			return err
		}
		d.PrescriptionID = &p.ID
		if d.ManagedBy == nil {
			d.ManagedBy = &actor.UserID
		}
		return s.repo.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.auditTransition(ctx, actor, d, demand.StatusApproved)
	return d, nil
}

// Comment appends to the demand's note history. Coordinator and administrator
// comments reach the patient.
func (s *DemandService) Comment(ctx context.Context, actor domain.Actor, id uuid.UUID, note string) (*demand.ServiceDemand, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, invalid("comment: required")
	}
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	d.AddNote(actor.UserID, note, s.now())
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("adding service demand note: %w", err)
	}
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeServiceDemandUpdateComment,
		ActorID: &actor.UserID,
		Demand:  demandSnapshot(d, actor.Role, note),
	})
	return d, nil
}

func (s *DemandService) auditTransition(ctx context.Context, actor domain.Actor, d *demand.ServiceDemand, prev demand.Status) {
	changes := map[string]any{"status": map[string]any{"old": prev, "new": d.Status}}
	if d.RejectionReason != "" {
		changes["rejection_reason"] = d.RejectionReason
	}
	if d.PrescriptionID != nil {
		changes["prescription_id"] = d.PrescriptionID.String()
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "service_demand",
		ResourceID:   d.ID.String(),
		IPAddress:    actor.IP,
		Changes:      changes,
	})
	s.log.Info("service demand transitioned",
		zap.Int64("number", d.Number),
		zap.String("from", string(prev)),
		zap.String("to", string(d.Status)),
	)
}

func demandSnapshot(d *demand.ServiceDemand, role domain.Role, comment string) *notification.DemandSnapshot {
	return &notification.DemandSnapshot{
		DemandID:      d.ID,
		Number:        d.Number,
		Title:         d.Title,
		PatientID:     d.PatientID,
		CommenterRole: role,
		Comment:       comment,
	}
}
