package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/export"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/tracer"
)

// ContestTicketOpener files the administrator ticket that tracks a contest.
type ContestTicketOpener interface {
	OpenContestTicket(ctx context.Context, actor domain.Actor, inv *billing.Invoice, reason string, lines []*billing.InvoiceLine, total decimal.Decimal) (uuid.UUID, error)
}

type BillingService struct {
	repo          billing.Repository
	schedules     schedule.Repository
	catalog       catalog.Repository
	prescriptions prescription.Repository
	providers     provider.Repository
	users         domain.UserRepository
	pricing       *PricingService
	patients      *PatientService
	tickets       ContestTicketOpener
	tx            Transactor
	events        EventPublisher
	auditSvc      *AuditService
	metrics       *metrics.Collector
	log           *zap.Logger
	now           func() time.Time
}

type BillingDeps struct {
	Repo          billing.Repository
	Schedules     schedule.Repository
	Catalog       catalog.Repository
	Prescriptions prescription.Repository
	Providers     provider.Repository
	Users         domain.UserRepository
	Pricing       *PricingService
	Patients      *PatientService
	Tickets       ContestTicketOpener
	Tx            Transactor
	Events        EventPublisher
	Audit         *AuditService
}

func NewBillingService(deps BillingDeps, m *metrics.Collector, log *zap.Logger) *BillingService {
	return &BillingService{
		repo:          deps.Repo,
		schedules:     deps.Schedules,
		catalog:       deps.Catalog,
		prescriptions: deps.Prescriptions,
		providers:     deps.Providers,
		users:         deps.Users,
		pricing:       deps.Pricing,
		patients:      deps.Patients,
		tickets:       deps.Tickets,
		tx:            deps.Tx,
		events:        deps.Events,
		auditSvc:      deps.Audit,
		metrics:       m,
		log:           log,
		now:           time.Now,
	}
}

func canBill(r domain.Role) bool {
	return r.IsAdmin() || r == domain.RoleCoordinator
}

// ── Generation ───────────────────────────────────────────────────────────────

// Generate creates a new In Progress invoice for the patient and period. Every
// call creates a new row; callers dedupe.
func (s *BillingService) Generate(ctx context.Context, actor domain.Actor, patientID uuid.UUID, start, end time.Time) (*billing.Invoice, error) {
	if !canBill(actor.Role) {
		return nil, ErrForbidden
	}
	if _, err := s.patients.repo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	inv, err := s.generate(ctx, &actor.UserID, patientID, start, end)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "invoice",
		ResourceID:   inv.ID.String(),
		IPAddress:    actor.IP,
	})
	return inv, nil
}

func (s *BillingService) generate(ctx context.Context, actorID *uuid.UUID, patientID uuid.UUID, start, end time.Time) (*billing.Invoice, error) {
	ctx, span := tracer.Start(ctx, "billing.generate", attribute.String("patient_id", patientID.String()))
	defer span.End()

	start, end = schedule.DateOnly(start), schedule.DateOnly(end)
	if start.After(end) {
		return nil, billing.ErrInvalidPeriod
	}

	var inv *billing.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		lines, err := s.buildLines(ctx, patientID, start, end)
		if err != nil {
			return err
		}
		inv = &billing.Invoice{
			PatientID:   patientID,
			PeriodStart: start,
			PeriodEnd:   end,
			Status:      billing.InvoiceInProgress,
			Lines:       lines,
		}
		inv.Amount = inv.Total()
		return s.repo.CreateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, tracer.Fail(span, fmt.Errorf("generating invoice: %w", err))
	}

	s.metrics.InvoicesGenerated.Inc()
	s.log.Info("invoice generated",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("patient_id", patientID.String()),
		zap.Int("lines", len(inv.Lines)),
		zap.String("amount", inv.Amount.StringFixed(2)),
	)
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeInvoiceGenerated,
		ActorID: actorID,
		Invoice: invoiceSnapshot(inv),
	})
	return inv, nil
}

// buildLines prices every completed or confirmed timeslot of the patient in
// the period. Slots without a service, directly or through their
// prescription, are not billed.
func (s *BillingService) buildLines(ctx context.Context, patientID uuid.UUID, start, end time.Time) ([]*billing.InvoiceLine, error) {
	schedules, err := s.schedules.List(ctx, &schedule.ListQuery{From: start, To: end, PatientID: &patientID})
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}

	var prescriptionIDs []uuid.UUID
	for _, sc := range schedules {
		for _, t := range sc.TimeSlots {
			if t.ServiceID == nil && t.PrescriptionID != nil {
				prescriptionIDs = append(prescriptionIDs, *t.PrescriptionID)
			}
		}
	}
	prescriptionService := make(map[uuid.UUID]*uuid.UUID)
	if len(prescriptionIDs) > 0 {
		ps, err := s.prescriptions.GetByIDs(ctx, uniqueExcept(prescriptionIDs, nil))
		if err != nil {
			return nil, fmt.Errorf("loading prescriptions: %w", err)
		}
		for _, p := range ps {
			prescriptionService[p.ID] = p.ServiceID
		}
	}

	services := make(map[uuid.UUID]*catalog.Service)
	service := func(id uuid.UUID) (*catalog.Service, error) {
		if svc, ok := services[id]; ok {
			return svc, nil
		}
		svc, err := s.catalog.GetService(ctx, id)
		if errors.Is(err, catalog.ErrServiceNotFound) {
			services[id] = nil
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("loading service: %w", err)
		}
		services[id] = svc
		return svc, nil
	}

	seen := make(map[uuid.UUID]bool)
	lines := []*billing.InvoiceLine{}
	for _, sc := range schedules {
		for _, t := range sc.TimeSlots {
			if !t.Status.Billable() || seen[t.ID] {
				continue
			}
			seen[t.ID] = true

			serviceID := t.ServiceID
			if serviceID == nil && t.PrescriptionID != nil {
				serviceID = prescriptionService[*t.PrescriptionID]
			}
			if serviceID == nil {
				continue
			}
			svc, err := service(*serviceID)
			if err != nil {
				return nil, err
			}
			price, err := s.pricing.Resolve(ctx, patientID, svc, t)
			if err != nil {
				return nil, err
			}
			if !price.Billable {
				continue
			}

			lines = append(lines, &billing.InvoiceLine{
				TimeslotID:  t.ID,
				ServiceID:   svc.ID,
				ServiceName: svc.Name,
				ProviderID:  sc.ProviderID,
				Date:        schedule.DateOnly(sc.Date),
				StartTime:   t.StartTime,
				EndTime:     t.EndTime,
				Price:       price.Amount,
				PriceSource: price.Source,
				Status:      t.Status,
			})
		}
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].StartTime < lines[j].StartTime
	})
	return lines, nil
}

// Regenerate rebuilds the lines of an existing invoice in place. The invoice
// id and its contest state are kept.
func (s *BillingService) Regenerate(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*billing.Invoice, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	ctx, span := tracer.Start(ctx, "billing.regenerate", attribute.String("invoice_id", invoiceID.String()))
	defer span.End()

	var inv *billing.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		lines, err := s.buildLines(ctx, current.PatientID, current.PeriodStart, current.PeriodEnd)
		if err != nil {
			return err
		}
		current.Lines = lines
		current.Amount = current.Total()
		if err := s.repo.ReplaceLines(ctx, current.ID, lines, current.Amount); err != nil {
			return fmt.Errorf("replacing invoice lines: %w", err)
		}
		inv = current
		return nil
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "invoice",
		ResourceID:   inv.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"regenerated": true, "amount": inv.Amount.StringFixed(2)},
	})
	return inv, nil
}

// CreateSuccessor issues the single replacement invoice allowed after an
// accepted contest cancelled the original.
func (s *BillingService) CreateSuccessor(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) (*billing.Invoice, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	ctx, span := tracer.Start(ctx, "billing.successor", attribute.String("invoice_id", invoiceID.String()))
	defer span.End()

	var successor *billing.Invoice
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		original, err := s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := original.CanCreateSuccessor(); err != nil {
			return err
		}
		contest, err := s.repo.GetActiveContest(ctx, original.ID)
		if errors.Is(err, billing.ErrContestNotFound) || (err == nil && contest.Status != billing.ContestAccepted) {
			return billing.ErrNoAcceptedContest
		}
		if err != nil {
			return err
		}

		lines, err := s.buildLines(ctx, original.PatientID, original.PeriodStart, original.PeriodEnd)
		if err != nil {
			return err
		}
		successor = &billing.Invoice{
			PatientID:     original.PatientID,
			PeriodStart:   original.PeriodStart,
			PeriodEnd:     original.PeriodEnd,
			Status:        billing.InvoiceInProgress,
			PredecessorID: &original.ID,
			Lines:         lines,
		}
		successor.Amount = successor.Total()
		if err := s.repo.CreateInvoice(ctx, successor); err != nil {
			return err
		}

		original.NewInvoiceCreatedAfterContest = true
		return s.repo.UpdateInvoice(ctx, original)
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	s.metrics.InvoicesGenerated.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "invoice",
		ResourceID:   successor.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"predecessor_id": invoiceID.String()},
	})
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeInvoiceGenerated,
		ActorID: &actor.UserID,
		Invoice: invoiceSnapshot(successor),
	})
	return successor, nil
}

type CronResult struct {
	PeriodStart string      `json:"period_start"`
	PeriodEnd   string      `json:"period_end"`
	Generated   []uuid.UUID `json:"generated"`
	Skipped     int         `json:"skipped"`
	Failed      int         `json:"failed"`
}

// GenerateMonthly invoices the previous calendar month for every patient with
// billable timeslots, skipping (patient, period) pairs already invoiced.
func (s *BillingService) GenerateMonthly(ctx context.Context) (*CronResult, error) {
	start, end := billing.PreviousMonth(s.now())
	result := &CronResult{
		PeriodStart: start.Format(schedule.DateFormat),
		PeriodEnd:   end.Format(schedule.DateFormat),
		Generated:   []uuid.UUID{},
	}

	patientIDs, err := s.schedules.ListBillablePatients(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("listing billable patients: %w", err)
	}

	for _, id := range patientIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		exists, err := s.repo.HasOpenInvoice(ctx, id, start, end)
		if err != nil {
			s.log.Error("checking existing invoice", zap.String("patient_id", id.String()), zap.Error(err))
			result.Failed++
			continue
		}
		if exists {
			result.Skipped++
			continue
		}
		inv, err := s.generate(ctx, nil, id, start, end)
		if err != nil {
			s.log.Error("monthly invoice failed", zap.String("patient_id", id.String()), zap.Error(err))
			result.Failed++
			continue
		}
		result.Generated = append(result.Generated, inv.ID)
	}

	s.log.Info("monthly invoice run finished",
		zap.String("period_start", result.PeriodStart),
		zap.Int("generated", len(result.Generated)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *BillingService) GetInvoice(ctx context.Context, actor domain.Actor, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.patients.Authorize(ctx, actor, inv.PatientID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *BillingService) ListInvoices(ctx context.Context, actor domain.Actor, q billing.ListQuery) ([]*billing.Invoice, int64, error) {
	if q.Status != nil && !q.Status.IsValid() {
		return nil, 0, invalid("status: must be one of In Progress, Paid, Cancelled, Contested")
	}
	switch actor.Role {
	case domain.RolePatient:
		own, err := s.patients.ScopedPatientID(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		q.PatientID = own
	case domain.RoleFamilyPatient:
		if q.PatientID == nil {
			return nil, 0, invalid("patient_id: required")
		}
		if err := s.patients.Authorize(ctx, actor, *q.PatientID); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.ListInvoices(ctx, &q)
}

func (s *BillingService) ListContests(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID) ([]*billing.Contest, error) {
	if _, err := s.GetInvoice(ctx, actor, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListContests(ctx, invoiceID)
}

// Export renders the invoice as an XLSX workbook.
func (s *BillingService) Export(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]byte, error) {
	inv, err := s.GetInvoice(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	var providerIDs []uuid.UUID
	for _, l := range inv.Lines {
		providerIDs = append(providerIDs, l.ProviderID)
	}
	names := make(map[uuid.UUID]string)
	if len(providerIDs) > 0 {
		providers, err := s.providers.GetByIDs(ctx, uniqueExcept(providerIDs, nil))
		if err != nil {
			return nil, fmt.Errorf("loading providers: %w", err)
		}
		userToProvider := make(map[uuid.UUID]uuid.UUID, len(providers))
		var userIDs []uuid.UUID
		for _, p := range providers {
			userToProvider[p.UserID] = p.ID
			userIDs = append(userIDs, p.UserID)
		}
		users, err := s.users.GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("loading provider users: %w", err)
		}
		for _, u := range users {
			names[userToProvider[u.ID]] = u.FullName()
		}
	}
	return export.Invoice(inv, names)
}

// ── Contest ──────────────────────────────────────────────────────────────────

type ContestCommand struct {
	Reason  string
	LineIDs []uuid.UUID
}

// Contest disputes an In Progress invoice and files the administrator ticket.
func (s *BillingService) Contest(ctx context.Context, actor domain.Actor, invoiceID uuid.UUID, cmd ContestCommand) (*billing.Contest, error) {
	ctx, span := tracer.Start(ctx, "billing.contest", attribute.String("invoice_id", invoiceID.String()))
	defer span.End()

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		return nil, billing.ErrContestReasonRequired
	}

	var (
		contest *billing.Contest
		inv     *billing.Invoice
		total   decimal.Decimal
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.repo.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.patients.Authorize(ctx, actor, inv.PatientID); err != nil {
			return err
		}

		lines := inv.Lines
		if len(cmd.LineIDs) > 0 {
			lines = make([]*billing.InvoiceLine, 0, len(cmd.LineIDs))
			for _, id := range cmd.LineIDs {
				l := inv.LineByID(id)
				if l == nil {
					return billing.ErrUnknownLine
				}
				lines = append(lines, l)
			}
		}
		total = decimal.Zero
		for _, l := range lines {
			total = total.Add(l.Price)
		}
		total = catalog.RoundMoney(total)

		if _, err := s.repo.GetActiveContest(ctx, inv.ID); err == nil {
			return billing.ErrActiveContestExists
		} else if !errors.Is(err, billing.ErrContestNotFound) {
			return err
		}
		if err := inv.Contest(); err != nil {
			return err
		}
		if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("updating invoice status: %w", err)
		}

		ticketID, err := s.tickets.OpenContestTicket(ctx, actor, inv, reason, lines, total)
		if err != nil {
			return fmt.Errorf("opening contest ticket: %w", err)
		}

		contest = &billing.Contest{
			InvoiceID: inv.ID,
			CreatedBy: actor.UserID,
			Reason:    reason,
			Status:    billing.ContestInProgress,
			LineIDs:   cmd.LineIDs,
			TicketID:  &ticketID,
		}
		return s.repo.CreateContest(ctx, contest)
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	s.metrics.ContestsTotal.WithLabelValues("opened").Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "invoice_contest",
		ResourceID:   contest.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"invoice_id": invoiceID.String(), "reason": reason, "total": total.StringFixed(2)},
	})
	snap := invoiceSnapshot(inv)
	snap.Amount = total.StringFixed(2)
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeInvoiceContested,
		ActorID: &actor.UserID,
		Invoice: snap,
		Reason:  reason,
	})
	return contest, nil
}

// ResolveContest applies an administrator decision to the contest and its invoice.
func (s *BillingService) ResolveContest(ctx context.Context, actor domain.Actor, contestID uuid.UUID, decision billing.Decision) (*billing.Contest, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if !decision.IsValid() {
		return nil, billing.ErrInvalidDecision
	}

	var contest *billing.Contest
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetContest(ctx, contestID)
		if err != nil {
			return err
		}
		inv, err := s.repo.GetInvoice(ctx, c.InvoiceID)
		if err != nil {
			return err
		}
		if err := c.Resolve(inv, decision, actor.UserID, s.now()); err != nil {
			return err
		}
		if err := s.repo.UpdateContest(ctx, c); err != nil {
			return fmt.Errorf("updating contest: %w", err)
		}
		if err := s.repo.UpdateInvoice(ctx, inv); err != nil {
			return fmt.Errorf("updating invoice: %w", err)
		}
		contest = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ContestsTotal.WithLabelValues(string(decision)).Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "invoice_contest",
		ResourceID:   contestID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"decision": decision, "status": contest.Status},
	})
	s.log.Info("contest resolved",
		zap.String("contest_id", contestID.String()),
		zap.String("decision", string(decision)),
	)
	return contest, nil
}

func invoiceSnapshot(inv *billing.Invoice) *notification.InvoiceSnapshot {
	return &notification.InvoiceSnapshot{
		InvoiceID:   inv.ID,
		PatientID:   inv.PatientID,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		Amount:      inv.Amount.StringFixed(2),
	}
}
