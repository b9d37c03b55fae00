package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the schedule row only; slots are attached with CreateTimeslot.
	Create(ctx context.Context, s *Schedule) error
	UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) error

	// GetByID preloads the schedule's timeslots. Returns ErrScheduleNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)

	// FindByKey returns the schedule for (date, provider, patient) or ErrScheduleNotFound.
	FindByKey(ctx context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) (*Schedule, error)

	// FindForConflictCheck returns schedules on date belonging to the provider or the patient.
	FindForConflictCheck(ctx context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) ([]*Schedule, error)

	List(ctx context.Context, q *ListQuery) ([]*Schedule, error)

	// CreateTimeslot inserts slot and attaches it to the schedule.
	CreateTimeslot(ctx context.Context, scheduleID uuid.UUID, slot *TimeSlot) error

	// GetTimeslot preloads the owning schedules. Returns ErrTimeslotNotFound.
	GetTimeslot(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	UpdateTimeslot(ctx context.Context, slot *TimeSlot) error

	// AttachTimeslots links existing slots to the schedule; links already present are kept.
	AttachTimeslots(ctx context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error
	DetachTimeslots(ctx context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error

	// DeleteOrphanTimeslots removes those of ids no schedule references any more
	// and returns the removed ids.
	DeleteOrphanTimeslots(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

	Delete(ctx context.Context, id uuid.UUID) error

	// ListBillablePatients returns patients holding billable slots in [from, to].
	ListBillablePatients(ctx context.Context, from, to time.Time) ([]uuid.UUID, error)
}
