package schedule

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

type ConflictKind string

const (
	KindProvider       ConflictKind = "provider"
	KindPatient        ConflictKind = "patient"
	KindDoubleBooking  ConflictKind = "double_booking"
	KindSameDayBooking ConflictKind = "same_day_booking"
)

type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	}
	return 0
}

func MaxSeverity(a, b Severity) Severity {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// patientOverlapSeverity grades a patient double-presence by how long the overlap lasts.
func patientOverlapSeverity(minutes int) Severity {
	switch {
	case minutes >= 30:
		return SeverityHigh
	case minutes >= 15:
		return SeverityMedium
	}
	return SeverityLow
}

const maxSuggestions = 3

type ConflictQuery struct {
	ProviderID        uuid.UUID
	PatientID         *uuid.UUID
	Date              time.Time
	Start             Clock
	End               Clock
	ExcludeScheduleID *uuid.UUID
	ExcludeTimeslotID *uuid.UUID
}

func (q ConflictQuery) Validate() error {
	if !(Window{Start: q.Start, End: q.End}).Valid() {
		return ErrInvalidTimeRange
	}
	return nil
}

// ExistingAppointment summarises the slot a request collides with.
type ExistingAppointment struct {
	ScheduleID  uuid.UUID  `json:"schedule_id"`
	TimeslotID  uuid.UUID  `json:"timeslot_id"`
	ProviderID  uuid.UUID  `json:"provider_id"`
	PatientID   *uuid.UUID `json:"patient_id"`
	Date        string     `json:"date"`
	StartTime   Clock      `json:"start_time"`
	EndTime     Clock      `json:"end_time"`
	Status      Status     `json:"status"`
	Description string     `json:"description,omitempty"`
}

type Suggestion struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	StartTime *Clock `json:"start_time,omitempty"`
	EndTime   *Clock `json:"end_time,omitempty"`
}

type Conflict struct {
	Kind           ConflictKind        `json:"type"`
	Severity       Severity            `json:"severity"`
	Message        string              `json:"message"`
	OverlapMinutes int                 `json:"overlap_minutes"`
	Existing       ExistingAppointment `json:"existing_appointment"`
	Suggestions    []Suggestion        `json:"suggestions"`
}

type Report struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
	Severity     Severity   `json:"severity"`
}

// Blocking reports whether an unforced write must be refused.
func (r *Report) Blocking() bool {
	for _, c := range r.Conflicts {
		if c.Kind == KindProvider || c.Kind == KindDoubleBooking {
			return true
		}
	}
	return false
}

// Merge folds o into r, skipping conflicts already reported for the same slot.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	for _, c := range o.Conflicts {
		if slices.ContainsFunc(r.Conflicts, func(e Conflict) bool {
			return e.Kind == c.Kind && e.Existing.TimeslotID == c.Existing.TimeslotID
		}) {
			continue
		}
		r.Conflicts = append(r.Conflicts, c)
		r.Severity = MaxSeverity(r.Severity, c.Severity)
	}
	r.HasConflicts = len(r.Conflicts) > 0
}

func (r *Report) Kinds() []ConflictKind {
	seen := make(map[ConflictKind]bool)
	var kinds []ConflictKind
	for _, c := range r.Conflicts {
		if !seen[c.Kind] {
			seen[c.Kind] = true
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

// DetectConflicts checks the requested window against the schedules already stored
// for the provider or patient on that date.
func DetectConflicts(q ConflictQuery, existing []*Schedule) *Report {
	report := &Report{Conflicts: []Conflict{}, Severity: SeverityNone}
	date := DateOnly(q.Date)
	duration := int(q.End - q.Start)

	type key struct {
		id   uuid.UUID
		kind ConflictKind
	}
	seen := make(map[key]bool)
	add := func(k key, c Conflict) {
		if seen[k] {
			return
		}
		seen[k] = true
		report.Conflicts = append(report.Conflicts, c)
		report.Severity = MaxSeverity(report.Severity, c.Severity)
	}

	for _, s := range existing {
		if q.ExcludeScheduleID != nil && s.ID == *q.ExcludeScheduleID {
			continue
		}
		if !DateOnly(s.Date).Equal(date) {
			continue
		}
		sameProvider := s.ProviderID == q.ProviderID
		samePatient := q.PatientID != nil && s.PatientID != nil && *s.PatientID == *q.PatientID
		if !sameProvider && !samePatient {
			continue
		}

		for _, t := range s.TimeSlots {
			if q.ExcludeTimeslotID != nil && t.ID == *q.ExcludeTimeslotID {
				continue
			}
			if !t.Status.Occupies() {
				continue
			}
			ex := summarise(s, t)
			overlap := OverlapMinutes(q.Start, q.End, t.StartTime, t.EndTime)

			if sameProvider && overlap > 0 {
				add(key{t.ID, KindProvider}, Conflict{
					Kind:           KindProvider,
					Severity:       SeverityHigh,
					Message:        fmt.Sprintf("Provider already has an appointment from %s to %s on %s", t.StartTime, t.EndTime, ex.Date),
					OverlapMinutes: overlap,
					Existing:       ex,
					Suggestions:    suggest(KindProvider, q.Start, q.End, t, duration),
				})
			}
			if samePatient && !sameProvider && overlap > 0 {
				add(key{t.ID, KindPatient}, Conflict{
					Kind:           KindPatient,
					Severity:       patientOverlapSeverity(overlap),
					Message:        fmt.Sprintf("Patient already has an appointment with another provider from %s to %s (%d min overlap)", t.StartTime, t.EndTime, overlap),
					OverlapMinutes: overlap,
					Existing:       ex,
					Suggestions:    suggest(KindPatient, q.Start, q.End, t, duration),
				})
			}
			if sameProvider && samePatient {
				if overlap > 0 {
					add(key{t.ID, KindDoubleBooking}, Conflict{
						Kind:           KindDoubleBooking,
						Severity:       SeverityMedium,
						Message:        fmt.Sprintf("This patient is already booked with this provider from %s to %s", t.StartTime, t.EndTime),
						OverlapMinutes: overlap,
						Existing:       ex,
						Suggestions:    suggest(KindDoubleBooking, q.Start, q.End, t, duration),
					})
				} else {
					// One same-day notice per schedule is enough.
					add(key{s.ID, KindSameDayBooking}, Conflict{
						Kind:        KindSameDayBooking,
						Severity:    SeverityLow,
						Message:     fmt.Sprintf("This patient already sees this provider on %s from %s to %s", ex.Date, t.StartTime, t.EndTime),
						Existing:    ex,
						Suggestions: suggest(KindSameDayBooking, q.Start, q.End, t, duration),
					})
				}
			}
		}
	}

	sort.SliceStable(report.Conflicts, func(i, j int) bool {
		a, b := report.Conflicts[i], report.Conflicts[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() > b.Severity.rank()
		}
		return a.Existing.StartTime < b.Existing.StartTime
	})
	report.HasConflicts = len(report.Conflicts) > 0
	return report
}

func summarise(s *Schedule, t *TimeSlot) ExistingAppointment {
	return ExistingAppointment{
		ScheduleID:  s.ID,
		TimeslotID:  t.ID,
		ProviderID:  s.ProviderID,
		PatientID:   s.PatientID,
		Date:        s.DateString(),
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		Status:      t.Status,
		Description: t.Description,
	}
}

func suggest(kind ConflictKind, start, end Clock, existing *TimeSlot, duration int) []Suggestion {
	var out []Suggestion

	earlier := func() {
		w := Window{Start: existing.StartTime.Add(-duration), End: existing.StartTime}
		if w.Valid() {
			out = append(out, Suggestion{
				Type:      "earlier_slot",
				Message:   fmt.Sprintf("Book %s-%s instead, ending when the existing appointment starts", w.Start, w.End),
				StartTime: &w.Start,
				EndTime:   &w.End,
			})
		}
	}
	later := func() {
		w := Window{Start: existing.EndTime, End: existing.EndTime.Add(duration)}
		if w.Valid() {
			out = append(out, Suggestion{
				Type:      "later_slot",
				Message:   fmt.Sprintf("Book %s-%s instead, starting when the existing appointment ends", w.Start, w.End),
				StartTime: &w.Start,
				EndTime:   &w.End,
			})
		}
	}
	combine := func() {
		w := Window{Start: min(start, existing.StartTime), End: max(end, existing.EndTime)}
		out = append(out, Suggestion{
			Type:      "extend_existing",
			Message:   fmt.Sprintf("Extend the existing appointment to %s-%s instead of adding a new one", w.Start, w.End),
			StartTime: &w.Start,
			EndTime:   &w.End,
		})
	}

	switch kind {
	case KindProvider:
		earlier()
		later()
		out = append(out, Suggestion{
			Type:    "different_provider",
			Message: "Assign another available provider for this time window",
		})
	case KindPatient:
		earlier()
		later()
	case KindDoubleBooking:
		combine()
		earlier()
		later()
	case KindSameDayBooking:
		combine()
	}

	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
