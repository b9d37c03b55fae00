package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
)

type PatientService struct {
	repo     patient.Repository
	users    domain.UserRepository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, users domain.UserRepository, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		users:    users,
		auditSvc: auditSvc,
		log:      log,
	}
}

type CreatePatientCommand struct {
	UserID       uuid.UUID
	Gender       patient.Gender
	BloodType    patient.BloodType
	KatzScore    *int
	ITScore      *int
	Illness      string
	Medication   string
	CriticalInfo string
	SocialPrice  bool
}

func (s *PatientService) CreatePatient(ctx context.Context, actor domain.Actor, cmd *CreatePatientCommand) (*patient.Patient, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if err := validateCreateCommand(cmd); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RolePatient {
		return nil, invalid("user_id: user does not have the Patient role")
	}

	p := &patient.Patient{
		UserID:       cmd.UserID,
		Gender:       cmd.Gender,
		BloodType:    cmd.BloodType,
		KatzScore:    cmd.KatzScore,
		ITScore:      cmd.ITScore,
		Illness:      strings.TrimSpace(cmd.Illness),
		Medication:   strings.TrimSpace(cmd.Medication),
		CriticalInfo: strings.TrimSpace(cmd.CriticalInfo),
		SocialPrice:  cmd.SocialPrice,
		IsAlive:      true,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if !errors.Is(err, patient.ErrPatientAlreadyExists) {
			s.log.Error("failed to create patient", zap.Error(err))
		}
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "patient",
		ResourceID:   p.ID.String(),
		IPAddress:    actor.IP,
	})

	s.log.Info("patient created",
		zap.String("patient_id", p.ID.String()),
		zap.String("created_by", actor.UserID.String()),
	)

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, actor domain.Actor, id uuid.UUID) (*patient.Patient, error) {
	if err := s.Authorize(ctx, actor, id); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionRead,
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    actor.IP,
	})

	return p, nil
}

type LinkFamilyCommand struct {
	UserID       uuid.UUID
	PatientID    uuid.UUID
	Relationship string
}

func (s *PatientService) LinkFamily(ctx context.Context, actor domain.Actor, cmd *LinkFamilyCommand) (*patient.FamilyLink, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	u, err := s.users.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if u.Role != domain.RoleFamilyPatient {
		return nil, invalid("user_id: user does not have the Family Patient role")
	}
	if _, err := s.repo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, err
	}

	link := &patient.FamilyLink{
		UserID:       cmd.UserID,
		PatientID:    cmd.PatientID,
		Relationship: strings.TrimSpace(cmd.Relationship),
	}
	if err := s.repo.CreateFamilyLink(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// Authorize lets staff through, a patient through to their own record and a
// family member through to the patients they are linked to.
func (s *PatientService) Authorize(ctx context.Context, actor domain.Actor, patientID uuid.UUID) error {
	switch actor.Role {
	case domain.RolePatient:
		own, err := s.ownPatientID(ctx, actor)
		if err != nil {
			return err
		}
		if own != patientID {
			return ErrForbidden
		}
		return nil
	case domain.RoleFamilyPatient:
		ok, err := s.repo.IsFamilyMember(ctx, actor.UserID, patientID)
		if err != nil {
			return fmt.Errorf("checking family link: %w", err)
		}
		if !ok {
			return ErrForbidden
		}
		return nil
	}
	if actor.Role.IsStaff() {
		return nil
	}
	return ErrForbidden
}

// ownPatientID resolves the patient profile of a Patient-role actor.
func (s *PatientService) ownPatientID(ctx context.Context, actor domain.Actor) (uuid.UUID, error) {
	if actor.PatientID != nil {
		return *actor.PatientID, nil
	}
	p, err := s.repo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			return uuid.Nil, ErrForbidden
		}
		return uuid.Nil, err
	}
	return p.ID, nil
}

// ScopedPatientID pins a patient actor's queries to their own record. It returns
// nil for every other role.
func (s *PatientService) ScopedPatientID(ctx context.Context, actor domain.Actor) (*uuid.UUID, error) {
	if actor.Role != domain.RolePatient {
		return nil, nil
	}
	id, err := s.ownPatientID(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Recipients returns the user ids of a patient and their linked family.
func (s *PatientService) Recipients(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	family, err := s.repo.ListFamilyUserIDs(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{p.UserID}, family...), nil
}

func validateCreateCommand(cmd *CreatePatientCommand) error {
	var errs []string

	if cmd.UserID == uuid.Nil {
		errs = append(errs, "user_id is required")
	}
	if !cmd.Gender.IsValid() {
		errs = append(errs, "gender is invalid")
	}
	if !cmd.BloodType.IsValid() {
		errs = append(errs, "blood_type is invalid")
	}
	if cmd.KatzScore != nil && (*cmd.KatzScore < 0 || *cmd.KatzScore > 24) {
		errs = append(errs, "katz_score must be between 0 and 24")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
