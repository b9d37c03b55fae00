package schedule

import "github.com/google/uuid"

type WorkingHours struct {
	Start Clock
	End   Clock
	Step  int
	Limit int
}

// DefaultWorkingHours applies to every provider: 09:00-17:00 in 30 minute steps.
var DefaultWorkingHours = WorkingHours{
	Start: NewClock(9, 0),
	End:   NewClock(17, 0),
	Step:  30,
	Limit: 10,
}

// BookedWindows collects the occupied windows of a provider on the loaded schedules.
func BookedWindows(schedules []*Schedule, providerID uuid.UUID, excludeScheduleID *uuid.UUID) []Window {
	var booked []Window
	for _, s := range schedules {
		if s.ProviderID != providerID {
			continue
		}
		if excludeScheduleID != nil && s.ID == *excludeScheduleID {
			continue
		}
		for _, t := range s.TimeSlots {
			if t.Status.Occupies() {
				booked = append(booked, Window{Start: t.StartTime, End: t.EndTime})
			}
		}
	}
	return booked
}

// FreeWindows walks the working day and returns the first windows of the
// requested duration that do not overlap any booked window.
func FreeWindows(booked []Window, duration int, wh WorkingHours) []Window {
	if duration <= 0 || wh.Step <= 0 {
		return nil
	}
	free := []Window{}
	for start := wh.Start; start.Add(duration) <= wh.End; start = start.Add(wh.Step) {
		candidate := Window{Start: start, End: start.Add(duration)}
		clash := false
		for _, b := range booked {
			if Overlaps(candidate.Start, candidate.End, b.Start, b.End) {
				clash = true
				break
			}
		}
		if clash {
			continue
		}
		free = append(free, candidate)
		if wh.Limit > 0 && len(free) >= wh.Limit {
			break
		}
	}
	return free
}
