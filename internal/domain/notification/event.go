package notification

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

// Event is what producers hand to the fan-out engine. Each event carries a
// snapshot of its subject so deliveries still work after the row is deleted.
type Event struct {
	Type       Type
	ActorID    *uuid.UUID
	OccurredAt time.Time

	Schedule *ScheduleSnapshot
	Ticket   *TicketSnapshot
	Demand   *DemandSnapshot
	Invoice  *InvoiceSnapshot

	Reason        string
	ChangedFields []string
}

type ScheduleSnapshot struct {
	ScheduleID uuid.UUID
	ProviderID uuid.UUID
	PatientID  *uuid.UUID
	Date       time.Time
	Slots      []schedule.Window
}

func SnapshotSchedule(s *schedule.Schedule) *ScheduleSnapshot {
	snap := &ScheduleSnapshot{
		ScheduleID: s.ID,
		ProviderID: s.ProviderID,
		PatientID:  s.PatientID,
		Date:       s.Date,
	}
	for _, t := range s.TimeSlots {
		snap.Slots = append(snap.Slots, schedule.Window{Start: t.StartTime, End: t.EndTime})
	}
	return snap
}

// FirstSlot returns the earliest window, or false for an empty schedule.
func (s *ScheduleSnapshot) FirstSlot() (schedule.Window, bool) {
	if len(s.Slots) == 0 {
		return schedule.Window{}, false
	}
	first := s.Slots[0]
	for _, w := range s.Slots[1:] {
		if w.Start < first.Start {
			first = w
		}
	}
	return first, true
}

type TicketSnapshot struct {
	TicketID   uuid.UUID
	Title      string
	CreatorID  uuid.UUID
	AssigneeID *uuid.UUID
	Team       domain.Role
	// CommentAuthorID is set for comment events.
	CommentAuthorID *uuid.UUID
}

type DemandSnapshot struct {
	DemandID      uuid.UUID
	Number        int64
	Title         string
	PatientID     uuid.UUID
	CommenterRole domain.Role
	Comment       string
}

type InvoiceSnapshot struct {
	InvoiceID   uuid.UUID
	PatientID   uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Amount      string
}
