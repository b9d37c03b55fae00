package provider

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type Provider struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex" json:"user_id"`
	// ServiceID is the provider's default service, used when a slot names none.
	ServiceID  *uuid.UUID `gorm:"column:service_id;type:uuid;index" json:"service_id,omitempty"`
	IsInternal bool       `gorm:"column:is_internal;default:true" json:"is_internal"`
}

func (Provider) TableName() string {
	return "providers"
}

type AbsenceStatus string

const (
	AbsencePending  AbsenceStatus = "pending"
	AbsenceApproved AbsenceStatus = "approved"
	AbsenceRejected AbsenceStatus = "rejected"
)

// Absence is a full-day unavailability over an inclusive date range.
type Absence struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	ProviderID uuid.UUID     `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	StartDate  time.Time     `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate    time.Time     `gorm:"column:end_date;type:date;not null" json:"end_date"`
	Type       string        `gorm:"column:absence_type;type:varchar(30)" json:"absence_type"`
	Status     AbsenceStatus `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"`
}

func (Absence) TableName() string {
	return "provider_absences"
}

func (a *Absence) Covers(date time.Time) bool {
	d := schedule.DateOnly(date)
	return a.Status == AbsenceApproved && !d.Before(schedule.DateOnly(a.StartDate)) && !d.After(schedule.DateOnly(a.EndDate))
}

// ShortAbsence blocks part of a single day.
type ShortAbsence struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	ProviderID uuid.UUID      `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Date       time.Time      `gorm:"column:date;type:date;not null;index" json:"date"`
	StartTime  schedule.Clock `gorm:"column:start_time;type:time;not null" json:"start_time"`
	EndTime    schedule.Clock `gorm:"column:end_time;type:time;not null" json:"end_time"`
}

func (ShortAbsence) TableName() string {
	return "provider_short_absences"
}
