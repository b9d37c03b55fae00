package demand

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// State transitions:
//
//	Pending → Under Review → Approved → In Progress → Completed
//	any non-terminal → Rejected (reason required) | Cancelled
type Status string

const (
	StatusPending     Status = "Pending"
	StatusUnderReview Status = "Under Review"
	StatusApproved    Status = "Approved"
	StatusInProgress  Status = "In Progress"
	StatusCompleted   Status = "Completed"
	StatusRejected    Status = "Rejected"
	StatusCancelled   Status = "Cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusRejected, StatusCancelled},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:    {StatusInProgress, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusCancelled},
	StatusCompleted:   {},
	StatusRejected:    {},
	StatusCancelled:   {},
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) TransitionTo(next Status) (Status, error) {
	if !next.IsValid() {
		return s, ErrInvalidStatus
	}
	for _, candidate := range transitions[s] {
		if candidate == next {
			return next, nil
		}
	}
	return s, ErrInvalidStatusTransition
}

type CoordinatorNote struct {
	AuthorID  uuid.UUID `json:"author_id"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

type ServiceDemand struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Number is the human-facing sequence shown as "Service Demand #<n>".
	Number int64 `gorm:"column:number;autoIncrement;uniqueIndex;not null" json:"number"`

	PatientID uuid.UUID  `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	ServiceID *uuid.UUID `gorm:"column:service_id;type:uuid;index" json:"service_id,omitempty"`

	Title              string     `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description        string     `gorm:"column:description;type:text" json:"description"`
	Reason             string     `gorm:"column:reason;type:text" json:"reason,omitempty"`
	Priority           Priority   `gorm:"column:priority;type:varchar(10);not null;default:'Normal'" json:"priority"`
	Status             Status     `gorm:"column:status;type:varchar(20);not null;default:'Pending';index" json:"status"`
	PreferredStartDate *time.Time `gorm:"column:preferred_start_date;type:date" json:"preferred_start_date,omitempty"`
	Frequency          string     `gorm:"column:frequency;type:varchar(100)" json:"frequency,omitempty"`
	ContactMethod      string     `gorm:"column:contact_method;type:varchar(20)" json:"contact_method,omitempty"`

	ManagedBy        *uuid.UUID        `gorm:"column:managed_by;type:uuid;index" json:"managed_by,omitempty"`
	RejectionReason  string            `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	CoordinatorNotes []CoordinatorNote `gorm:"column:coordinator_notes;serializer:json" json:"coordinator_notes"`
	PrescriptionID   *uuid.UUID        `gorm:"column:prescription_id;type:uuid" json:"prescription_id,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (ServiceDemand) TableName() string {
	return "service_demands"
}

// Apply moves the demand to next, recording the rejection reason where required.
func (d *ServiceDemand) Apply(next Status, reason string) error {
	if next == StatusRejected && reason == "" {
		return ErrRejectionReasonRequired
	}
	s, err := d.Status.TransitionTo(next)
	if err != nil {
		return err
	}
	d.Status = s
	if next == StatusRejected {
		d.RejectionReason = reason
	}
	return nil
}

func (d *ServiceDemand) AddNote(author uuid.UUID, note string, at time.Time) {
	d.CoordinatorNotes = append(d.CoordinatorNotes, CoordinatorNote{AuthorID: author, Note: note, CreatedAt: at})
}

type CreateDemandCommand struct {
	PatientID          uuid.UUID
	ServiceID          *uuid.UUID
	Title              string
	Description        string
	Reason             string
	Priority           Priority
	PreferredStartDate *time.Time
	Frequency          string
	ContactMethod      string
}

type ListQuery struct {
	PatientID *uuid.UUID
	ManagedBy *uuid.UUID
	Status    *Status
	Page      int
	PageSize  int
}
