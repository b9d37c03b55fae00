package schedule

import "errors"

var (
	ErrScheduleNotFound        = errors.New("schedule not found")
	ErrTimeslotNotFound        = errors.New("timeslot not found")
	ErrTimeslotNotInSchedule   = errors.New("timeslot does not belong to this schedule")
	ErrScheduleConflict        = errors.New("scheduling conflict detected")
	ErrInvalidStatusTransition = errors.New("invalid timeslot status transition")
	ErrNoShowNotYetAllowed     = errors.New("no_show can only be recorded for past appointments")
	ErrInvalidStatus           = errors.New("invalid timeslot status")
	ErrInvalidTimeRange        = errors.New("start_time must be before end_time")
	ErrInvalidTimeFormat       = errors.New("invalid time format, expected HH:MM")
	ErrInvalidDateFormat       = errors.New("invalid date format, expected YYYY-MM-DD")
	ErrInvalidStrategy         = errors.New("strategy must be one of smart, aggressive, conservative, timeslot_only")
	ErrTooManySchedules        = errors.New("bulk deletion accepts at most 50 schedules")
	ErrNoDates                 = errors.New("at least one date is required")
)
