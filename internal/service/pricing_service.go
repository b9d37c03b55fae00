package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

// Price is a resolved amount and where it came from.
type Price struct {
	Amount   decimal.Decimal     `json:"amount"`
	Source   billing.PriceSource `json:"source"`
	Billable bool                `json:"billable"`
}

type PricingService struct {
	catalog  catalog.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPricingService(repo catalog.Repository, auditSvc *AuditService, log *zap.Logger) *PricingService {
	return &PricingService{catalog: repo, auditSvc: auditSvc, log: log}
}

// Resolve prices one timeslot for patientID. A patient override wins over the
// service default and both are charged per slot as stored; price_type only
// describes how the amount was agreed. A nil service is not billable.
func (s *PricingService) Resolve(ctx context.Context, patientID uuid.UUID, svc *catalog.Service, _ *schedule.TimeSlot) (Price, error) {
	if svc == nil {
		return Price{Amount: decimal.Zero, Source: billing.SourceZero}, nil
	}

	o, err := s.catalog.GetOverride(ctx, patientID, svc.ID)
	switch {
	case err == nil:
		return Price{Amount: catalog.RoundMoney(o.CustomPrice), Source: billing.SourceOverride, Billable: true}, nil
	case errors.Is(err, catalog.ErrOverrideNotFound):
		return Price{Amount: catalog.RoundMoney(svc.Price), Source: billing.SourceServiceDefault, Billable: true}, nil
	default:
		return Price{}, fmt.Errorf("loading price override: %w", err)
	}
}

type CreateOverrideCommand struct {
	PatientID   uuid.UUID
	ServiceID   uuid.UUID
	CustomPrice decimal.Decimal
	PriceType   catalog.PriceType
	Notes       string
}

func (s *PricingService) CreateOverride(ctx context.Context, actor domain.Actor, cmd CreateOverrideCommand) (*catalog.PatientServicePrice, error) {
	if !actor.Role.IsAdmin() && actor.Role != domain.RoleCoordinator {
		return nil, ErrForbidden
	}
	if cmd.PriceType == "" {
		cmd.PriceType = catalog.PriceHourly
	}
	if !cmd.PriceType.IsValid() {
		return nil, catalog.ErrInvalidPriceType
	}

	svc, err := s.catalog.GetService(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}
	if err := catalog.ValidatePrice(svc, cmd.CustomPrice); err != nil {
		return nil, err
	}

	o := &catalog.PatientServicePrice{
		PatientID:   cmd.PatientID,
		ServiceID:   cmd.ServiceID,
		CustomPrice: catalog.RoundMoney(cmd.CustomPrice),
		PriceType:   cmd.PriceType,
		Notes:       strings.TrimSpace(cmd.Notes),
		CreatedBy:   actor.UserID,
	}
	if err := s.catalog.CreateOverride(ctx, o); err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "patient_service_price",
		ResourceID:   o.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"custom_price": o.CustomPrice.StringFixed(2), "price_type": o.PriceType},
	})
	return o, nil
}

func (s *PricingService) ListOverrides(ctx context.Context, actor domain.Actor, patientID uuid.UUID) ([]*catalog.PatientServicePrice, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	return s.catalog.ListOverrides(ctx, patientID)
}

func (s *PricingService) DeleteOverride(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Role.IsAdmin() && actor.Role != domain.RoleCoordinator {
		return ErrForbidden
	}
	return s.catalog.DeleteOverride(ctx, id)
}

type CreateServiceCommand struct {
	Name         string
	Price        decimal.Decimal
	Description  string
	IsFamilyHelp bool
}

func (s *PricingService) CreateService(ctx context.Context, actor domain.Actor, cmd CreateServiceCommand) (*catalog.Service, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return nil, invalid("name: required")
	}
	svc := &catalog.Service{
		Name:         strings.TrimSpace(cmd.Name),
		Price:        catalog.RoundMoney(cmd.Price),
		Description:  cmd.Description,
		IsFamilyHelp: cmd.IsFamilyHelp,
	}
	if err := catalog.ValidatePrice(svc, svc.Price); err != nil {
		return nil, err
	}
	if err := s.catalog.CreateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *PricingService) ListServices(ctx context.Context) ([]*catalog.Service, error) {
	return s.catalog.ListServices(ctx)
}
