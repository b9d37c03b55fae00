package ticket

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
)

type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed},
	StatusInProgress: {StatusOpen, StatusResolved, StatusClosed},
	StatusResolved:   {StatusClosed, StatusInProgress},
	StatusClosed:     {},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) TransitionTo(next Status) (Status, error) {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return next, nil
		}
	}
	return s, ErrInvalidStatusTransition
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ValidTeam reports whether role can own a ticket queue.
func ValidTeam(role domain.Role) bool {
	return role == domain.RoleCoordinator || role == domain.RoleAdministrator
}

type Ticket struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Title       string      `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description string      `gorm:"column:description;type:text" json:"description"`
	Category    string      `gorm:"column:category;type:varchar(50)" json:"category,omitempty"`
	Priority    Priority    `gorm:"column:priority;type:varchar(10);not null;default:'Medium'" json:"priority"`
	Status      Status      `gorm:"column:status;type:varchar(20);not null;default:'Open';index" json:"status"`
	Team        domain.Role `gorm:"column:assigned_team;type:varchar(30);not null;index" json:"assigned_team"`

	CreatedBy  uuid.UUID  `gorm:"column:created_by;type:uuid;not null;index" json:"created_by"`
	AssignedTo *uuid.UUID `gorm:"column:assigned_to;type:uuid;index" json:"assigned_to,omitempty"`
	InvoiceID  *uuid.UUID `gorm:"column:invoice_id;type:uuid;index" json:"invoice_id,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	TicketID uuid.UUID `gorm:"column:ticket_id;type:uuid;not null;index" json:"ticket_id"`
	AuthorID uuid.UUID `gorm:"column:author_id;type:uuid;not null" json:"author_id"`
	Body     string    `gorm:"column:body;type:text;not null" json:"body"`
}

func (Comment) TableName() string {
	return "ticket_comments"
}

type CreateTicketCommand struct {
	Title       string
	Description string
	Category    string
	Priority    Priority
	Team        domain.Role
	InvoiceID   *uuid.UUID
	Metadata    datatypes.JSON
}

type ListQuery struct {
	Team       *domain.Role
	Status     *Status
	CreatedBy  *uuid.UUID
	AssignedTo *uuid.UUID
	Page       int
	PageSize   int
}
