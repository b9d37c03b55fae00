package schedule

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// State transitions:
//
//	scheduled → confirmed → in_progress → completed
//	scheduled → cancelled
//	confirmed → cancelled
//	scheduled → no_show (past dates only)
//	confirmed → no_show (past dates only)
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether a slot in this status still blocks its time window.
func (s Status) Occupies() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Billable reports whether invoicing picks the slot up.
func (s Status) Billable() bool {
	return s == StatusCompleted || s == StatusConfirmed
}

// Upcoming reports whether the slot appears in weekly summaries.
func (s Status) Upcoming() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// TransitionTo validates a status change for a slot held on slotDate.
func (s Status) TransitionTo(next Status, slotDate, today time.Time) (Status, error) {
	if !next.IsValid() {
		return s, ErrInvalidStatus
	}
	allowed := false
	for _, candidate := range transitions[s] {
		if candidate == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return s, ErrInvalidStatusTransition
	}
	if next == StatusNoShow && !DateOnly(slotDate).Before(DateOnly(today)) {
		return s, ErrNoShowNotYetAllowed
	}
	return next, nil
}

// Schedule groups the timeslots of one (patient, provider, date). A nil patient
// marks blocked provider time.
type Schedule struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID  *uuid.UUID `gorm:"column:patient_id;type:uuid;index" json:"patient_id"`
	ProviderID uuid.UUID  `gorm:"column:provider_id;type:uuid;not null;index" json:"provider_id"`
	Date       time.Time  `gorm:"column:date;type:date;not null;index" json:"date"`
	CreatedBy  uuid.UUID  `gorm:"column:created_by;type:uuid;not null" json:"created_by"`

	TimeSlots []*TimeSlot `gorm:"many2many:schedule_timeslots;joinForeignKey:ScheduleID;joinReferences:TimeslotID" json:"timeslots"`
}

func (Schedule) TableName() string {
	return "schedules"
}

func (s *Schedule) IsBlockedTime() bool {
	return s.PatientID == nil
}

func (s *Schedule) HasTimeslot(id uuid.UUID) bool {
	for _, t := range s.TimeSlots {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *Schedule) TimeslotIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.TimeSlots))
	for _, t := range s.TimeSlots {
		ids = append(ids, t.ID)
	}
	return ids
}

func (s *Schedule) DateString() string {
	return s.Date.Format(DateFormat)
}

type TimeSlot struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	StartTime      Clock          `gorm:"column:start_time;type:time;not null" json:"start_time"`
	EndTime        Clock          `gorm:"column:end_time;type:time;not null" json:"end_time"`
	Description    string         `gorm:"column:description;type:text" json:"description,omitempty"`
	Status         Status         `gorm:"column:status;type:varchar(20);not null;default:'scheduled';index" json:"status"`
	ServiceID      *uuid.UUID     `gorm:"column:service_id;type:uuid;index" json:"service_id,omitempty"`
	PrescriptionID *uuid.UUID     `gorm:"column:prescription_id;type:uuid;index" json:"prescription_id,omitempty"`
	// Data is an opaque payload owned by the service integration; it is never interpreted here.
	Data datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`

	Schedules []*Schedule `gorm:"many2many:schedule_timeslots;joinForeignKey:TimeslotID;joinReferences:ScheduleID" json:"-"`
}

func (TimeSlot) TableName() string {
	return "timeslots"
}

func (t *TimeSlot) DurationMinutes() int {
	return int(t.EndTime - t.StartTime)
}

type Window struct {
	Start Clock `json:"start_time"`
	End   Clock `json:"end_time"`
}

func (w Window) Valid() bool {
	return w.Start >= Midnight && w.End <= EndOfDay && w.Start < w.End
}

func (w Window) Minutes() int {
	return int(w.End - w.Start)
}

type CreateScheduleCommand struct {
	ProviderID     uuid.UUID
	PatientID      *uuid.UUID
	Date           time.Time
	StartTime      Clock
	EndTime        Clock
	Description    string
	ServiceID      *uuid.UUID
	PrescriptionID *uuid.UUID
	// ServiceDemandNumber links the slot to a prescription derived from a service demand.
	ServiceDemandNumber *int64
	Data                datatypes.JSON
	ForceSchedule       bool
}

type RecurringScheduleCommand struct {
	CreateScheduleCommand
	Dates []string
}

type UpdateAppointmentCommand struct {
	TimeslotID    *uuid.UUID
	Date          *time.Time
	StartTime     *Clock
	EndTime       *Clock
	Description   *string
	ServiceID     *uuid.UUID
	Data          datatypes.JSON
	ForceSchedule bool
}

type ListQuery struct {
	From       time.Time
	To         time.Time
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	// Status keeps only schedules with at least one slot in this status.
	Status *Status
}

type Stats struct {
	TotalSchedules   int            `json:"total_schedules"`
	TotalTimeslots   int            `json:"total_timeslots"`
	BlockedSchedules int            `json:"blocked_schedules"`
	ByStatus         map[Status]int `json:"by_status"`
	BookedMinutes    int            `json:"booked_minutes"`
}

func ComputeStats(schedules []*Schedule) Stats {
	st := Stats{ByStatus: make(map[Status]int)}
	for _, s := range schedules {
		st.TotalSchedules++
		if s.IsBlockedTime() {
			st.BlockedSchedules++
		}
		for _, t := range s.TimeSlots {
			st.TotalTimeslots++
			st.ByStatus[t.Status]++
			if t.Status.Occupies() {
				st.BookedMinutes += t.DurationMinutes()
			}
		}
	}
	return st
}
