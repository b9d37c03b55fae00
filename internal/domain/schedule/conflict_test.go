package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func existingSchedule(providerID uuid.UUID, patientID *uuid.UUID, slots ...*TimeSlot) *Schedule {
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
	}
	return &Schedule{ID: uuid.New(), ProviderID: providerID, PatientID: patientID, Date: day, TimeSlots: slots}
}

func slot(start, end Clock, status Status) *TimeSlot {
	return &TimeSlot{StartTime: start, EndTime: end, Status: status}
}

func TestOverlapMinutes(t *testing.T) {
	tests := []struct {
		name       string
		a1, a2     Clock
		b1, b2     Clock
		want       int
		overlapped bool
	}{
		{"disjoint", NewClock(9, 0), NewClock(10, 0), NewClock(11, 0), NewClock(12, 0), 0, false},
		{"touching", NewClock(9, 0), NewClock(10, 0), NewClock(10, 0), NewClock(11, 0), 0, false},
		{"partial", NewClock(9, 0), NewClock(10, 0), NewClock(9, 40), NewClock(11, 0), 20, true},
		{"contained", NewClock(9, 0), NewClock(12, 0), NewClock(10, 0), NewClock(10, 30), 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverlapMinutes(tt.a1, tt.a2, tt.b1, tt.b2))
			assert.Equal(t, tt.overlapped, Overlaps(tt.a1, tt.a2, tt.b1, tt.b2))
			assert.Equal(t, tt.want, OverlapMinutes(tt.b1, tt.b2, tt.a1, tt.a2), "symmetric")
		})
	}
}

func TestDetectConflicts_Provider(t *testing.T) {
	prov := uuid.New()
	other := uuid.New()
	existing := []*Schedule{
		existingSchedule(prov, &other, slot(NewClock(10, 0), NewClock(11, 0), StatusScheduled)),
	}
	patient := uuid.New()

	r := DetectConflicts(ConflictQuery{
		ProviderID: prov,
		PatientID:  &patient,
		Date:       day,
		Start:      NewClock(10, 30),
		End:        NewClock(11, 30),
	}, existing)

	require.True(t, r.HasConflicts)
	require.Len(t, r.Conflicts, 1)
	c := r.Conflicts[0]
	assert.Equal(t, KindProvider, c.Kind)
	assert.Equal(t, SeverityHigh, c.Severity)
	assert.Equal(t, 30, c.OverlapMinutes)
	assert.True(t, r.Blocking())

	require.Len(t, c.Suggestions, 3)
	assert.Equal(t, "earlier_slot", c.Suggestions[0].Type)
	assert.Equal(t, NewClock(9, 0), *c.Suggestions[0].StartTime)
	assert.Equal(t, "later_slot", c.Suggestions[1].Type)
	assert.Equal(t, NewClock(12, 0), *c.Suggestions[1].EndTime)
	assert.Equal(t, "different_provider", c.Suggestions[2].Type)
}

func TestDetectConflicts_PatientSeverity(t *testing.T) {
	patient := uuid.New()
	otherProvider := uuid.New()

	tests := []struct {
		end  Clock
		want Severity
	}{
		{NewClock(9, 10), SeverityLow},
		{NewClock(9, 20), SeverityMedium},
		{NewClock(9, 45), SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			existing := []*Schedule{
				existingSchedule(otherProvider, &patient, slot(NewClock(9, 0), tt.end, StatusConfirmed)),
			}
			r := DetectConflicts(ConflictQuery{
				ProviderID: uuid.New(),
				PatientID:  &patient,
				Date:       day,
				Start:      NewClock(9, 0),
				End:        NewClock(10, 0),
			}, existing)
			require.Len(t, r.Conflicts, 1)
			assert.Equal(t, KindPatient, r.Conflicts[0].Kind)
			assert.Equal(t, tt.want, r.Severity)
			assert.False(t, r.Blocking(), "patient overlaps are advisory")
		})
	}
}

func TestDetectConflicts_SameProviderAndPatient(t *testing.T) {
	prov, patient := uuid.New(), uuid.New()
	sc := existingSchedule(prov, &patient,
		slot(NewClock(9, 0), NewClock(10, 0), StatusScheduled),
		slot(NewClock(14, 0), NewClock(15, 0), StatusScheduled),
	)

	r := DetectConflicts(ConflictQuery{
		ProviderID: prov,
		PatientID:  &patient,
		Date:       day,
		Start:      NewClock(9, 30),
		End:        NewClock(10, 30),
	}, []*Schedule{sc})

	assert.ElementsMatch(t, []ConflictKind{KindProvider, KindDoubleBooking, KindSameDayBooking}, r.Kinds())
	assert.Equal(t, SeverityHigh, r.Severity)
	assert.Equal(t, KindProvider, r.Conflicts[0].Kind, "sorted by severity")

	var same *Conflict
	for i := range r.Conflicts {
		if r.Conflicts[i].Kind == KindSameDayBooking {
			same = &r.Conflicts[i]
		}
	}
	require.NotNil(t, same)
	assert.Equal(t, SeverityLow, same.Severity)
	assert.Equal(t, "extend_existing", same.Suggestions[0].Type)
	assert.Equal(t, NewClock(9, 30), *same.Suggestions[0].StartTime)
	assert.Equal(t, NewClock(15, 0), *same.Suggestions[0].EndTime)
}

func TestDetectConflicts_Ignores(t *testing.T) {
	prov, patient := uuid.New(), uuid.New()
	kept := slot(NewClock(9, 0), NewClock(10, 0), StatusScheduled)
	sc := existingSchedule(prov, &patient,
		kept,
		slot(NewClock(9, 0), NewClock(10, 0), StatusCancelled),
		slot(NewClock(9, 0), NewClock(10, 0), StatusNoShow),
	)
	otherDay := existingSchedule(prov, nil, slot(NewClock(9, 0), NewClock(10, 0), StatusScheduled))
	otherDay.Date = day.AddDate(0, 0, 1)
	unrelated := existingSchedule(uuid.New(), nil, slot(NewClock(9, 0), NewClock(10, 0), StatusScheduled))

	r := DetectConflicts(ConflictQuery{
		ProviderID:        prov,
		PatientID:         &patient,
		Date:              day,
		Start:             NewClock(9, 0),
		End:               NewClock(10, 0),
		ExcludeTimeslotID: &kept.ID,
	}, []*Schedule{sc, otherDay, unrelated})

	assert.False(t, r.HasConflicts)
	assert.Equal(t, SeverityNone, r.Severity)
	assert.NotNil(t, r.Conflicts)

	r = DetectConflicts(ConflictQuery{
		ProviderID:        prov,
		Date:              day,
		Start:             NewClock(9, 0),
		End:               NewClock(10, 0),
		ExcludeScheduleID: &sc.ID,
	}, []*Schedule{sc})
	assert.False(t, r.HasConflicts)
}

func TestConflictQuery_Validate(t *testing.T) {
	assert.ErrorIs(t, ConflictQuery{Start: NewClock(10, 0), End: NewClock(10, 0)}.Validate(), ErrInvalidTimeRange)
	assert.ErrorIs(t, ConflictQuery{Start: NewClock(10, 0), End: NewClock(9, 0)}.Validate(), ErrInvalidTimeRange)
	assert.NoError(t, ConflictQuery{Start: NewClock(10, 0), End: EndOfDay}.Validate())
}

func TestReportMerge(t *testing.T) {
	prov := uuid.New()
	booked := existingSchedule(prov, nil, slot(NewClock(14, 0), NewClock(15, 0), StatusScheduled))

	q := ConflictQuery{ProviderID: prov, Date: day, Start: NewClock(14, 30), End: NewClock(15, 30)}
	report := DetectConflicts(ConflictQuery{ProviderID: prov, Date: day, Start: NewClock(8, 0), End: NewClock(9, 0)}, []*Schedule{booked})
	require.False(t, report.HasConflicts)

	report.Merge(DetectConflicts(q, []*Schedule{booked}))
	report.Merge(DetectConflicts(q, []*Schedule{booked}))
	require.True(t, report.HasConflicts)
	assert.Len(t, report.Conflicts, 1, "same slot and kind reported once")
	assert.Equal(t, SeverityHigh, report.Severity)
	assert.True(t, report.Blocking())
}
