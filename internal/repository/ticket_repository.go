package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

type TicketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	if err := conn(ctx, r.db).Create(t).Error; err != nil {
		return fmt.Errorf("creating ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Ticket, error) {
	var t ticket.Ticket
	err := conn(ctx, r.db).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ticket.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting ticket: %w", err)
	}
	return &t, nil
}

func (r *TicketRepository) Update(ctx context.Context, t *ticket.Ticket) error {
	if err := conn(ctx, r.db).Save(t).Error; err != nil {
		return fmt.Errorf("updating ticket: %w", err)
	}
	return nil
}

func (r *TicketRepository) List(ctx context.Context, q *ticket.ListQuery) ([]*ticket.Ticket, int64, error) {
	query := conn(ctx, r.db).Model(&ticket.Ticket{})
	if q.Team != nil {
		query = query.Where("assigned_team = ?", *q.Team)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.CreatedBy != nil {
		query = query.Where("created_by = ?", *q.CreatedBy)
	}
	if q.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *q.AssignedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tickets: %w", err)
	}

	offset, limit := paginate(q.Page, q.PageSize)
	var out []*ticket.Ticket
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("listing tickets: %w", err)
	}
	return out, total, nil
}

func (r *TicketRepository) AddComment(ctx context.Context, c *ticket.Comment) error {
	if err := conn(ctx, r.db).Create(c).Error; err != nil {
		return fmt.Errorf("adding ticket comment: %w", err)
	}
	return nil
}

func (r *TicketRepository) ListComments(ctx context.Context, ticketID uuid.UUID) ([]*ticket.Comment, error) {
	var out []*ticket.Comment
	if err := conn(ctx, r.db).Where("ticket_id = ?", ticketID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing ticket comments: %w", err)
	}
	return out, nil
}
