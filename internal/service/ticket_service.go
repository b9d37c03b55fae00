package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

type TicketService struct {
	repo     ticket.Repository
	users    domain.UserRepository
	events   EventPublisher
	auditSvc *AuditService
	log      *zap.Logger
	now      func() time.Time
}

func NewTicketService(repo ticket.Repository, users domain.UserRepository, events EventPublisher, auditSvc *AuditService, log *zap.Logger) *TicketService {
	return &TicketService{
		repo:     repo,
		users:    users,
		events:   events,
		auditSvc: auditSvc,
		log:      log,
		now:      time.Now,
	}
}

func (s *TicketService) Create(ctx context.Context, actor domain.Actor, cmd *ticket.CreateTicketCommand) (*ticket.Ticket, error) {
	t, err := s.create(ctx, actor, cmd)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeTicketNew,
		ActorID: &actor.UserID,
		Ticket:  ticketSnapshot(t, nil),
	})
	return t, nil
}

func (s *TicketService) create(ctx context.Context, actor domain.Actor, cmd *ticket.CreateTicketCommand) (*ticket.Ticket, error) {
	var fields []string
	if strings.TrimSpace(cmd.Title) == "" {
		fields = append(fields, "title: required")
	}
	if !ticket.ValidTeam(cmd.Team) {
		fields = append(fields, "assigned_team: "+ticket.ErrInvalidTeam.Error())
	}
	if cmd.Priority == "" {
		cmd.Priority = ticket.PriorityMedium
	}
	if !cmd.Priority.IsValid() {
		fields = append(fields, "priority: "+ticket.ErrInvalidPriority.Error())
	}
	if len(fields) > 0 {
		return nil, invalid(fields...)
	}

	t := &ticket.Ticket{
		Title:       strings.TrimSpace(cmd.Title),
		Description: cmd.Description,
		Category:    cmd.Category,
		Priority:    cmd.Priority,
		Status:      ticket.StatusOpen,
		Team:        cmd.Team,
		CreatedBy:   actor.UserID,
		InvoiceID:   cmd.InvoiceID,
		Metadata:    cmd.Metadata,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionCreate,
		ResourceType: "ticket",
		ResourceID:   t.ID.String(),
		IPAddress:    actor.IP,
	})
	s.log.Info("ticket created",
		zap.String("ticket_id", t.ID.String()),
		zap.String("team", string(t.Team)),
	)
	return t, nil
}

// OpenContestTicket files the Administrator ticket carrying a contest's reason,
// disputed lines and their total. The contest event already alerts
// administrators, so no ticket_new event is emitted.
func (s *TicketService) OpenContestTicket(ctx context.Context, actor domain.Actor, inv *billing.Invoice, reason string, lines []*billing.InvoiceLine, total decimal.Decimal) (uuid.UUID, error) {
	type contestLine struct {
		ID      uuid.UUID `json:"id"`
		Date    string    `json:"date"`
		Start   string    `json:"start_time"`
		End     string    `json:"end_time"`
		Service string    `json:"service"`
		Price   string    `json:"price"`
	}
	disputed := make([]contestLine, 0, len(lines))
	for _, l := range lines {
		disputed = append(disputed, contestLine{
			ID:      l.ID,
			Date:    l.Date.Format(schedule.DateFormat),
			Start:   l.StartTime.String(),
			End:     l.EndTime.String(),
			Service: l.ServiceName,
			Price:   l.Price.StringFixed(2),
		})
	}
	meta, err := json.Marshal(map[string]any{
		"invoice_id": inv.ID,
		"reason":     reason,
		"lines":      disputed,
		"total":      total.StringFixed(2),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding contest metadata: %w", err)
	}

	invoiceID := inv.ID
	t, err := s.create(ctx, actor, &ticket.CreateTicketCommand{
		Title: fmt.Sprintf("Invoice contest %s to %s",
			inv.PeriodStart.Format(schedule.DateFormat), inv.PeriodEnd.Format(schedule.DateFormat)),
		Description: reason,
		Category:    "billing",
		Priority:    ticket.PriorityHigh,
		Team:        domain.RoleAdministrator,
		InvoiceID:   &invoiceID,
		Metadata:    datatypes.JSON(meta),
	})
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}

// canWork reports whether actor belongs to the team that owns t.
func canWork(actor domain.Actor, t *ticket.Ticket) bool {
	return actor.Role == t.Team || actor.Role == domain.RoleAdministrator
}

func canSee(actor domain.Actor, t *ticket.Ticket) bool {
	if canWork(actor, t) || t.CreatedBy == actor.UserID {
		return true
	}
	return t.AssignedTo != nil && *t.AssignedTo == actor.UserID
}

func (s *TicketService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*ticket.Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, ErrForbidden
	}
	return t, nil
}

// List returns the actor's team queue for coordinators and administrators,
// and the actor's own tickets for everyone else.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, q ticket.ListQuery) ([]*ticket.Ticket, int64, error) {
	if q.Status != nil && !q.Status.IsValid() {
		return nil, 0, invalid("status: must be one of Open, In Progress, Resolved, Closed")
	}
	switch {
	case actor.Role == domain.RoleAdministrator:
	case ticket.ValidTeam(actor.Role):
		if q.CreatedBy == nil && q.AssignedTo == nil {
			team := actor.Role
			q.Team = &team
		}
	default:
		q.Team, q.AssignedTo = nil, nil
		q.CreatedBy = &actor.UserID
	}
	return s.repo.List(ctx, &q)
}

func (s *TicketService) Assign(ctx context.Context, actor domain.Actor, id, assigneeID uuid.UUID) (*ticket.Ticket, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canWork(actor, t) {
		return nil, ErrForbidden
	}
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if assignee.Role != t.Team || !assignee.IsActive {
		return nil, ticket.ErrAssigneeNotInTeam
	}

	t.AssignedTo = &assignee.ID
	if t.Status == ticket.StatusOpen {
		t.Status = ticket.StatusInProgress
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("assigning ticket: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "ticket",
		ResourceID:   t.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"assigned_to": assignee.ID.String()},
	})
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeTicketAssigned,
		ActorID: &actor.UserID,
		Ticket:  ticketSnapshot(t, nil),
	})
	return t, nil
}

func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, next ticket.Status) (*ticket.Ticket, error) {
	if !next.IsValid() {
		return nil, invalid("status: must be one of Open, In Progress, Resolved, Closed")
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canWork(actor, t) {
		return nil, ErrForbidden
	}
	prev := t.Status
	if t.Status, err = t.Status.TransitionTo(next); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("updating ticket status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionUpdate,
		ResourceType: "ticket",
		ResourceID:   t.ID.String(),
		IPAddress:    actor.IP,
		Changes:      map[string]any{"status": map[string]any{"old": prev, "new": t.Status}},
	})
	s.events.Publish(ctx, notification.Event{
		Type:          notification.TypeTicketUpdated,
		ActorID:       &actor.UserID,
		Ticket:        ticketSnapshot(t, nil),
		ChangedFields: []string{"status"},
	})
	return t, nil
}

func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, id uuid.UUID, body string) (*ticket.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ticket.ErrEmptyComment
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, ErrForbidden
	}

	c := &ticket.Comment{TicketID: t.ID, AuthorID: actor.UserID, Body: body}
	if err := s.repo.AddComment(ctx, c); err != nil {
		return nil, fmt.Errorf("adding ticket comment: %w", err)
	}

	author := actor.UserID
	s.events.Publish(ctx, notification.Event{
		Type:    notification.TypeTicketComment,
		ActorID: &actor.UserID,
		Ticket:  ticketSnapshot(t, &author),
	})
	return c, nil
}

func (s *TicketService) ListComments(ctx context.Context, actor domain.Actor, id uuid.UUID) ([]*ticket.Comment, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, id)
}

func ticketSnapshot(t *ticket.Ticket, commentAuthor *uuid.UUID) *notification.TicketSnapshot {
	return &notification.TicketSnapshot{
		TicketID:        t.ID,
		Title:           t.Title,
		CreatorID:       t.CreatedBy,
		AssigneeID:      t.AssignedTo,
		Team:            t.Team,
		CommentAuthorID: commentAuthor,
	}
}
