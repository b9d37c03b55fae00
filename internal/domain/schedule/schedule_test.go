package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	today := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		from    Status
		to      Status
		date    time.Time
		wantErr error
	}{
		{"confirm", StatusScheduled, StatusConfirmed, today, nil},
		{"cancel scheduled", StatusScheduled, StatusCancelled, today, nil},
		{"cancel confirmed", StatusConfirmed, StatusCancelled, today, nil},
		{"start", StatusConfirmed, StatusInProgress, today, nil},
		{"complete", StatusInProgress, StatusCompleted, today, nil},
		{"no show in the past", StatusScheduled, StatusNoShow, yesterday, nil},
		{"no show today", StatusConfirmed, StatusNoShow, today, ErrNoShowNotYetAllowed},
		{"skip confirmation", StatusScheduled, StatusCompleted, today, ErrInvalidStatusTransition},
		{"revive cancelled", StatusCancelled, StatusScheduled, today, ErrInvalidStatusTransition},
		{"unknown", StatusScheduled, "paused", today, ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.TransitionTo(tt.to, tt.date, today)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got)
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusScheduled.Occupies())
	assert.False(t, StatusCancelled.Occupies())
	assert.False(t, StatusNoShow.Occupies())

	assert.True(t, StatusCompleted.Billable())
	assert.True(t, StatusConfirmed.Billable())
	assert.False(t, StatusScheduled.Billable())

	assert.True(t, StatusScheduled.Upcoming())
	assert.False(t, StatusInProgress.Upcoming())
}

func TestClock(t *testing.T) {
	c, err := ParseClock("09:30:00")
	require.NoError(t, err)
	assert.Equal(t, NewClock(9, 30), c)
	assert.Equal(t, "09:30", c.String())

	_, err = ParseClock("9h30")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	raw, err := json.Marshal(struct {
		At Clock `json:"at"`
	}{NewClock(14, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"14:05"}`, string(raw))

	var back struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"07:45"}`), &back))
	assert.Equal(t, NewClock(7, 45), back.At)
	assert.Error(t, json.Unmarshal([]byte(`{"at":945}`), &back))

	var scanned Clock
	require.NoError(t, scanned.Scan([]byte("16:00:00")))
	assert.Equal(t, NewClock(16, 0), scanned)
	v, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, "16:00:00", v)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-03-10 ")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("10/03/2025")
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestPlanDeletion(t *testing.T) {
	a := &TimeSlot{ID: uuid.New()}
	b := &TimeSlot{ID: uuid.New()}
	two := &Schedule{TimeSlots: []*TimeSlot{a, b}}
	one := &Schedule{TimeSlots: []*TimeSlot{a}}

	tests := []struct {
		name       string
		s          *Schedule
		timeslot   *uuid.UUID
		strategy   DeletionStrategy
		wantDetach []uuid.UUID
		wantDelete bool
	}{
		{"smart one of two", two, &a.ID, StrategySmart, []uuid.UUID{a.ID}, false},
		{"smart last slot", one, &a.ID, StrategySmart, []uuid.UUID{a.ID}, true},
		{"smart whole schedule", two, nil, StrategySmart, []uuid.UUID{a.ID, b.ID}, true},
		{"aggressive", two, &a.ID, StrategyAggressive, []uuid.UUID{a.ID, b.ID}, true},
		{"conservative single", one, &a.ID, StrategyConservative, []uuid.UUID{a.ID}, false},
		{"conservative whole", two, nil, StrategyConservative, []uuid.UUID{a.ID, b.ID}, true},
		{"timeslot only", two, nil, StrategyTimeslotOnly, []uuid.UUID{a.ID, b.ID}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanDeletion(tt.s, tt.timeslot, tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDetach, plan.Detach)
			assert.Equal(t, tt.wantDelete, plan.DeleteSchedule)
		})
	}

	stranger := uuid.New()
	_, err := PlanDeletion(two, &stranger, StrategySmart)
	assert.ErrorIs(t, err, ErrTimeslotNotInSchedule)
	_, err = PlanDeletion(two, nil, "nuke")
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	plan, err := PlanDeletion(&Schedule{}, nil, StrategyTimeslotOnly)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategySmart, s)

	s, err = ParseStrategy("timeslot_only")
	require.NoError(t, err)
	assert.Equal(t, StrategyTimeslotOnly, s)

	_, err = ParseStrategy("everything")
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestFreeWindows(t *testing.T) {
	prov := uuid.New()
	schedules := []*Schedule{
		{ProviderID: prov, TimeSlots: []*TimeSlot{
			{StartTime: NewClock(9, 0), EndTime: NewClock(10, 0), Status: StatusConfirmed},
			{StartTime: NewClock(10, 30), EndTime: NewClock(11, 0), Status: StatusCancelled},
		}},
		{ProviderID: uuid.New(), TimeSlots: []*TimeSlot{
			{StartTime: NewClock(11, 0), EndTime: NewClock(12, 0), Status: StatusScheduled},
		}},
	}
	booked := BookedWindows(schedules, prov, nil)
	require.Len(t, booked, 1)

	free := FreeWindows(booked, 60, DefaultWorkingHours)
	require.NotEmpty(t, free)
	assert.Equal(t, Window{Start: NewClock(10, 0), End: NewClock(11, 0)}, free[0])
	assert.Len(t, free, 10, "capped at the working hours limit")

	last := FreeWindows(nil, 480, DefaultWorkingHours)
	require.Len(t, last, 1)
	assert.Equal(t, NewClock(17, 0), last[0].End)

	assert.Empty(t, FreeWindows(nil, 600, DefaultWorkingHours))
	assert.Nil(t, FreeWindows(nil, 0, DefaultWorkingHours))
}
