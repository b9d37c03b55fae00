package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/delivery"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/tracer"
)

// EventPublisher is how producers hand events to the fan-out engine.
type EventPublisher interface {
	Publish(ctx context.Context, ev notification.Event)
}

// Pusher delivers a persisted notification to live websocket sessions.
type Pusher interface {
	SendToUser(userID uuid.UUID, msgType string, data any) int
}

type noopPusher struct{}

func (noopPusher) SendToUser(uuid.UUID, string, any) int { return 0 }

const dispatchTimeout = 2 * time.Minute

type NotificationService struct {
	repo      notification.Repository
	users     domain.UserRepository
	patients  patient.Repository
	providers provider.Repository
	schedules schedule.Repository
	email     delivery.Sender
	sms       delivery.Sender
	pusher    Pusher
	metrics   *metrics.Collector
	log       *zap.Logger

	countryCode string
	sendTimeout time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	queue  chan notification.Event
	closed bool
	wg     sync.WaitGroup
}

type NotificationDeps struct {
	Repo      notification.Repository
	Users     domain.UserRepository
	Patients  patient.Repository
	Providers provider.Repository
	Schedules schedule.Repository
	Email     delivery.Sender
	SMS       delivery.Sender
	Pusher    Pusher
}

func NewNotificationService(deps NotificationDeps, cfg config.DeliveryConfig, m *metrics.Collector, log *zap.Logger) *NotificationService {
	pusher := deps.Pusher
	if pusher == nil {
		pusher = noopPusher{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NotificationService{
		repo:        deps.Repo,
		users:       deps.Users,
		patients:    deps.Patients,
		providers:   deps.Providers,
		schedules:   deps.Schedules,
		email:       deps.Email,
		sms:         deps.SMS,
		pusher:      pusher,
		metrics:     m,
		log:         log.Named("notifications"),
		countryCode: cfg.DefaultCountryCode,
		sendTimeout: timeout,
		now:         time.Now,
	}
}

// ── Queue ────────────────────────────────────────────────────────────────────

// Start launches workers consuming a queue of size queueSize. Until Start is
// called, Publish dispatches synchronously.
func (s *NotificationService) Start(workers, queueSize int) {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	s.mu.Lock()
	s.queue = make(chan notification.Event, queueSize)
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for ev := range q {
				s.metrics.NotificationQueue.Dec()
				s.handle(ev)
			}
		}()
	}
	s.log.Info("notification workers started", zap.Int("workers", workers), zap.Int("queue_size", queueSize))
}

// Shutdown stops accepting events and drains the queue.
func (s *NotificationService) Shutdown() {
	s.mu.Lock()
	if s.queue == nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.log.Warn("notification shutdown timed out; queued events may be lost")
	}
}

// Publish enqueues ev. A full queue, or one not started, dispatches inline so
// no event is dropped.
func (s *NotificationService) Publish(ctx context.Context, ev notification.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}

	s.mu.RLock()
	if s.queue != nil && !s.closed {
		select {
		case s.queue <- ev:
			s.metrics.NotificationQueue.Inc()
			s.mu.RUnlock()
			return
		default:
			s.log.Warn("notification queue full, dispatching inline", zap.String("type", string(ev.Type)))
		}
	}
	s.mu.RUnlock()

	if err := s.Dispatch(context.WithoutCancel(ctx), ev); err != nil {
		s.log.Error("notification dispatch failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

func (s *NotificationService) handle(ev notification.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := s.Dispatch(ctx, ev); err != nil {
		s.log.Error("notification dispatch failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// ── Routing ──────────────────────────────────────────────────────────────────

// Dispatch resolves the recipients of ev and notifies each of them.
func (s *NotificationService) Dispatch(ctx context.Context, ev notification.Event) error {
	ctx, span := tracer.Start(ctx, "notification.dispatch")
	defer span.End()

	switch ev.Type {
	case notification.TypeScheduleCreated, notification.TypeScheduleUpdated, notification.TypeScheduleCancelled:
		return tracer.Fail(span, s.dispatchSchedule(ctx, ev))
	case notification.TypeTicketNew, notification.TypeTicketUpdated, notification.TypeTicketAssigned, notification.TypeTicketComment:
		return tracer.Fail(span, s.dispatchTicket(ctx, ev))
	case notification.TypeServiceDemandCreated, notification.TypeServiceDemandUpdateComment:
		return tracer.Fail(span, s.dispatchDemand(ctx, ev))
	case notification.TypeInvoiceContested, notification.TypeInvoiceGenerated:
		return tracer.Fail(span, s.dispatchInvoice(ctx, ev))
	}
	return fmt.Errorf("unknown notification type %q", ev.Type)
}

type parties struct {
	provider *uuid.UUID
	patient  *uuid.UUID
	family   []uuid.UUID
}

func (p parties) all() []uuid.UUID {
	var out []uuid.UUID
	if p.patient != nil {
		out = append(out, *p.patient)
	}
	if p.provider != nil {
		out = append(out, *p.provider)
	}
	return append(out, p.family...)
}

// scheduleParties maps the schedule's provider and patient profiles to users.
func (s *NotificationService) scheduleParties(ctx context.Context, snap *notification.ScheduleSnapshot) (parties, error) {
	var p parties
	prov, err := s.providers.GetByID(ctx, snap.ProviderID)
	switch {
	case err == nil:
		p.provider = &prov.UserID
	case errors.Is(err, provider.ErrProviderNotFound):
	default:
		return p, fmt.Errorf("loading provider: %w", err)
	}

	if snap.PatientID == nil {
		return p, nil
	}
	pat, err := s.patients.GetByID(ctx, *snap.PatientID)
	switch {
	case err == nil:
		p.patient = &pat.UserID
	case errors.Is(err, patient.ErrPatientNotFound):
		return p, nil
	default:
		return p, fmt.Errorf("loading patient: %w", err)
	}
	family, err := s.patients.ListFamilyUserIDs(ctx, *snap.PatientID)
	if err != nil {
		return p, fmt.Errorf("loading family links: %w", err)
	}
	p.family = family
	return p, nil
}

func (s *NotificationService) dispatchSchedule(ctx context.Context, ev notification.Event) error {
	snap := ev.Schedule
	if snap == nil {
		return errors.New("schedule event without snapshot")
	}
	p, err := s.scheduleParties(ctx, snap)
	if err != nil {
		return err
	}

	when := snap.Date.Format(schedule.DateFormat)
	if w, ok := snap.FirstSlot(); ok {
		when = fmt.Sprintf("%s at %s-%s", when, w.Start, w.End)
	}

	req := NotifyRequest{
		SenderID:   ev.ActorID,
		Type:       ev.Type,
		Priority:   notification.PriorityNormal,
		ScheduleID: &snap.ScheduleID,
		Extra: map[string]any{
			"date":  snap.Date.Format(schedule.DateFormat),
			"slots": snap.Slots,
		},
	}
	switch ev.Type {
	case notification.TypeScheduleCreated:
		req.Title = "New appointment scheduled"
		req.Message = fmt.Sprintf("An appointment has been scheduled on %s.", when)
	case notification.TypeScheduleUpdated:
		req.Title = "Appointment updated"
		req.Message = fmt.Sprintf("The appointment on %s has been updated.", when)
		if len(ev.ChangedFields) > 0 {
			req.Message += " Changed: " + strings.Join(ev.ChangedFields, ", ") + "."
			req.Extra["changed_fields"] = ev.ChangedFields
		}
	case notification.TypeScheduleCancelled:
		req.Title = "Appointment cancelled"
		req.Priority = notification.PriorityHigh
		req.Message = fmt.Sprintf("The appointment on %s has been cancelled.", when)
		if ev.Reason != "" {
			req.Message += " Reason: " + ev.Reason
			req.Extra["reason"] = ev.Reason
		}
	}

	// Only the creator of a new appointment is left out of its notice.
	var exclude *uuid.UUID
	if ev.Type == notification.TypeScheduleCreated {
		exclude = ev.ActorID
	}
	s.notifyAll(ctx, uniqueExcept(p.all(), exclude), req)

	if ev.Type == notification.TypeScheduleCancelled {
		s.deliverCancellation(ctx, p, snap, ev.Reason)
	}
	return nil
}

func (s *NotificationService) dispatchTicket(ctx context.Context, ev notification.Event) error {
	t := ev.Ticket
	if t == nil {
		return errors.New("ticket event without snapshot")
	}

	req := NotifyRequest{
		SenderID: ev.ActorID,
		Type:     ev.Type,
		Priority: notification.PriorityNormal,
		TicketID: &t.TicketID,
	}
	var recipients []uuid.UUID
	exclude := ev.ActorID

	switch ev.Type {
	case notification.TypeTicketNew:
		team, err := s.teamMembers(ctx, t.Team)
		if err != nil {
			return err
		}
		recipients = team
		req.Title = "New ticket: " + t.Title
		req.Message = fmt.Sprintf("A new ticket was opened for the %s team.", t.Team)
	case notification.TypeTicketUpdated, notification.TypeTicketAssigned:
		recipients = []uuid.UUID{t.CreatorID}
		if t.AssigneeID != nil {
			recipients = append(recipients, *t.AssigneeID)
		}
		if ev.Type == notification.TypeTicketAssigned {
			req.Title = "Ticket assigned: " + t.Title
			req.Message = "The ticket has been assigned."
		} else {
			req.Title = "Ticket updated: " + t.Title
			req.Message = "The ticket has been updated."
			if len(ev.ChangedFields) > 0 {
				req.Message = "The ticket has been updated: " + strings.Join(ev.ChangedFields, ", ") + "."
			}
		}
	case notification.TypeTicketComment:
		recipients = []uuid.UUID{t.CreatorID}
		if t.AssigneeID != nil {
			recipients = append(recipients, *t.AssigneeID)
		}
		if t.CommentAuthorID != nil && *t.CommentAuthorID == t.CreatorID {
			team, err := s.teamMembers(ctx, t.Team)
			if err != nil {
				return err
			}
			recipients = append(recipients, team...)
		}
		if t.CommentAuthorID != nil {
			exclude = t.CommentAuthorID
		}
		req.Title = "New comment on ticket: " + t.Title
		req.Message = "A new comment was added to the ticket."
	}

	s.notifyAll(ctx, uniqueExcept(recipients, exclude), req)
	return nil
}

func (s *NotificationService) dispatchDemand(ctx context.Context, ev notification.Event) error {
	d := ev.Demand
	if d == nil {
		return errors.New("service demand event without snapshot")
	}
	req := NotifyRequest{
		SenderID:        ev.ActorID,
		Type:            ev.Type,
		Priority:        notification.PriorityNormal,
		ServiceDemandID: &d.DemandID,
		Extra:           map[string]any{"number": d.Number},
	}

	switch ev.Type {
	case notification.TypeServiceDemandCreated:
		coordinators, err := s.users.ListActiveByRoles(ctx, domain.RoleCoordinator)
		if err != nil {
			return fmt.Errorf("loading coordinators: %w", err)
		}
		req.Title = fmt.Sprintf("New service demand #%d", d.Number)
		req.Message = d.Title
		s.notifyAll(ctx, uniqueExcept(userIDs(coordinators), ev.ActorID), req)
	case notification.TypeServiceDemandUpdateComment:
		if d.CommenterRole != domain.RoleCoordinator && !d.CommenterRole.IsAdmin() {
			return nil
		}
		pat, err := s.patients.GetByID(ctx, d.PatientID)
		if err != nil {
			return fmt.Errorf("loading patient: %w", err)
		}
		req.Title = fmt.Sprintf("Update on your service demand #%d", d.Number)
		req.Message = d.Comment
		s.notifyAll(ctx, []uuid.UUID{pat.UserID}, req)
	}
	return nil
}

func (s *NotificationService) dispatchInvoice(ctx context.Context, ev notification.Event) error {
	inv := ev.Invoice
	if inv == nil {
		return errors.New("invoice event without snapshot")
	}
	period := inv.PeriodStart.Format(schedule.DateFormat) + " to " + inv.PeriodEnd.Format(schedule.DateFormat)
	req := NotifyRequest{
		SenderID: ev.ActorID,
		Type:     ev.Type,
		Priority: notification.PriorityNormal,
		Extra:    map[string]any{"invoice_id": inv.InvoiceID, "amount": inv.Amount},
	}

	switch ev.Type {
	case notification.TypeInvoiceContested:
		admins, err := s.users.ListActiveByRoles(ctx, domain.RoleAdministrator)
		if err != nil {
			return fmt.Errorf("loading administrators: %w", err)
		}
		req.Title = "Invoice contested"
		req.Message = fmt.Sprintf("An invoice for %s (%s) was contested: %s", period, inv.Amount, ev.Reason)
		req.Priority = notification.PriorityHigh
		s.notifyAll(ctx, uniqueExcept(userIDs(admins), ev.ActorID), req)
	case notification.TypeInvoiceGenerated:
		pat, err := s.patients.GetByID(ctx, inv.PatientID)
		if err != nil {
			return fmt.Errorf("loading patient: %w", err)
		}
		req.Title = "New invoice available"
		req.Message = fmt.Sprintf("Your invoice for %s is available. Amount: %s.", period, inv.Amount)
		s.notifyAll(ctx, []uuid.UUID{pat.UserID}, req)
	}
	return nil
}

func (s *NotificationService) teamMembers(ctx context.Context, team domain.Role) ([]uuid.UUID, error) {
	users, err := s.users.ListActiveByRoles(ctx, team)
	if err != nil {
		return nil, fmt.Errorf("loading %s team: %w", team, err)
	}
	return userIDs(users), nil
}

func (s *NotificationService) notifyAll(ctx context.Context, recipients []uuid.UUID, req NotifyRequest) {
	for _, id := range recipients {
		r := req
		r.RecipientID = id
		if _, err := s.Notify(ctx, r); err != nil {
			s.log.Error("in-app notification failed",
				zap.String("recipient_id", id.String()),
				zap.String("type", string(req.Type)),
				zap.Error(err),
			)
		}
	}
}

type NotifyRequest struct {
	RecipientID     uuid.UUID
	SenderID        *uuid.UUID
	Type            notification.Type
	Title           string
	Message         string
	Priority        notification.Priority
	ScheduleID      *uuid.UUID
	TicketID        *uuid.UUID
	ServiceDemandID *uuid.UUID
	Extra           map[string]any
}

// Notify persists one in-app notification if the recipient's preferences allow
// it. A skipped notification returns nil without error.
func (s *NotificationService) Notify(ctx context.Context, req NotifyRequest) (*notification.Notification, error) {
	pref, err := s.preference(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if !pref.AllowsInApp(req.Type) {
		s.metrics.NotificationsTotal.WithLabelValues("in_app", "skipped").Inc()
		s.log.Debug("in-app notification skipped by preference",
			zap.String("recipient_id", req.RecipientID.String()),
			zap.String("type", string(req.Type)),
		)
		return nil, nil
	}

	if req.Priority == "" {
		req.Priority = notification.PriorityNormal
	}
	n := &notification.Notification{
		RecipientID:     req.RecipientID,
		SenderID:        req.SenderID,
		Type:            req.Type,
		Title:           req.Title,
		Message:         req.Message,
		Priority:        req.Priority,
		ScheduleID:      req.ScheduleID,
		TicketID:        req.TicketID,
		ServiceDemandID: req.ServiceDemandID,
	}
	if len(req.Extra) > 0 {
		if raw, err := json.Marshal(req.Extra); err == nil {
			n.Extra = datatypes.JSON(raw)
		}
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.metrics.NotificationsTotal.WithLabelValues("in_app", "failed").Inc()
		return nil, fmt.Errorf("persisting notification: %w", err)
	}
	s.metrics.NotificationsTotal.WithLabelValues("in_app", "sent").Inc()
	s.pusher.SendToUser(req.RecipientID, "notification", n)
	return n, nil
}

// preference loads the user's preferences, creating the defaults on first use.
func (s *NotificationService) preference(ctx context.Context, userID uuid.UUID) (*notification.Preference, error) {
	pref, err := s.repo.GetPreference(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, notification.ErrPreferenceNotFound) {
		return nil, fmt.Errorf("loading notification preference: %w", err)
	}
	pref = notification.DefaultPreference(userID)
	if err := s.repo.SavePreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("creating default notification preference: %w", err)
	}
	return pref, nil
}

// ── Inbox ────────────────────────────────────────────────────────────────────

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, q *notification.ListQuery) ([]*notification.Notification, error) {
	return s.repo.ListForUser(ctx, userID, q)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, userID, id, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

// ── Preferences ──────────────────────────────────────────────────────────────

func (s *NotificationService) GetPreference(ctx context.Context, userID uuid.UUID) (*notification.Preference, error) {
	return s.preference(ctx, userID)
}

// PreferenceUpdate carries the fields a user may change; nil leaves a field as is.
type PreferenceUpdate struct {
	EmailNotifications     *bool
	SMSNotifications       *bool
	InAppNotifications     *bool
	AppointmentReminders   *bool
	BillingNotifications   *bool
	MedicalNotifications   *bool
	MarketingNotifications *bool
	ScheduleChanges        *bool
	NewTickets             *bool
	Comments               *bool
	PreferredContactMethod *notification.ContactMethod
	PrimaryPhone           *string
}

func (s *NotificationService) UpdatePreference(ctx context.Context, userID uuid.UUID, u PreferenceUpdate) (*notification.Preference, error) {
	pref, err := s.preference(ctx, userID)
	if err != nil {
		return nil, err
	}

	if u.PreferredContactMethod != nil {
		if !u.PreferredContactMethod.IsValid() {
			return nil, notification.ErrInvalidContactMethod
		}
		pref.PreferredContactMethod = *u.PreferredContactMethod
	}
	if u.PrimaryPhone != nil {
		phone := strings.TrimSpace(*u.PrimaryPhone)
		if phone != "" {
			normalized, err := delivery.NormalizePhone(phone, s.countryCode)
			if err != nil {
				return nil, invalid("primary_phone: " + err.Error())
			}
			phone = normalized
		}
		pref.PrimaryPhone = phone
	}

	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&pref.EmailNotifications, u.EmailNotifications)
	set(&pref.SMSNotifications, u.SMSNotifications)
	set(&pref.InAppNotifications, u.InAppNotifications)
	set(&pref.AppointmentReminders, u.AppointmentReminders)
	set(&pref.BillingNotifications, u.BillingNotifications)
	set(&pref.MedicalNotifications, u.MedicalNotifications)
	set(&pref.MarketingNotifications, u.MarketingNotifications)
	set(&pref.ScheduleChanges, u.ScheduleChanges)
	set(&pref.NewTickets, u.NewTickets)
	set(&pref.Comments, u.Comments)

	if err := s.repo.SavePreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("saving notification preference: %w", err)
	}
	return pref, nil
}

func userIDs(users []*domain.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

// uniqueExcept drops duplicates and exclude, keeping first-seen order.
func uniqueExcept(ids []uuid.UUID, exclude *uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] || (exclude != nil && id == *exclude) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
