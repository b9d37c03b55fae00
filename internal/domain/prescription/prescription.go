package prescription

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusCanceled, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusRejected, StatusCanceled},
	StatusAccepted:  {StatusCompleted, StatusCanceled},
	StatusCompleted: {},
	StatusCanceled:  {},
	StatusRejected:  {},
}

func (s Status) TransitionTo(next Status) (Status, error) {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return next, nil
		}
	}
	return s, ErrInvalidStatusTransition
}

type Prescription struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	ServiceID *uuid.UUID `gorm:"column:service_id;type:uuid;index" json:"service_id,omitempty"`
	PatientID *uuid.UUID `gorm:"column:patient_id;type:uuid;index" json:"patient_id,omitempty"`

	Medication string     `gorm:"column:medication;type:text" json:"medication,omitempty"`
	StartDate  time.Time  `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate    *time.Time `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	Frequency  string     `gorm:"column:frequency;type:varchar(100)" json:"frequency,omitempty"`
	Status     Status     `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`

	// Note doubles as the idempotency key for prescriptions derived from service demands.
	Note             string `gorm:"column:note;type:text;index" json:"note,omitempty"`
	Instructions     string `gorm:"column:instructions;type:text" json:"instructions,omitempty"`
	RejectionComment string `gorm:"column:rejection_comment;type:text" json:"rejection_comment,omitempty"`

	CreatedBy *uuid.UUID `gorm:"column:created_by;type:uuid" json:"created_by,omitempty"`
}

func (Prescription) TableName() string {
	return "prescriptions"
}

func (p *Prescription) IsExpired(now time.Time) bool {
	return p.EndDate != nil && now.After(*p.EndDate)
}

var demandNotePattern = regexp.MustCompile(`^Created from Service Demand #(\d+):`)

// DemandNote is the canonical note of a prescription promoted from a service demand.
func DemandNote(demandNumber int64, title string) string {
	return fmt.Sprintf("Created from Service Demand #%d: %s", demandNumber, title)
}

// DemandNumber extracts the service demand number from a canonical note.
func DemandNumber(note string) (int64, bool) {
	m := demandNotePattern.FindStringSubmatch(note)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
