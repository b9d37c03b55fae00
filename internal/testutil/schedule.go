package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

// ScheduleRepo mirrors the schedules/timeslots many-to-many tables.
type ScheduleRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]schedule.Schedule
	slots     map[uuid.UUID]schedule.TimeSlot
	links     map[uuid.UUID][]uuid.UUID // schedule id -> timeslot ids
}

func NewScheduleRepo() *ScheduleRepo {
	return &ScheduleRepo{
		schedules: make(map[uuid.UUID]schedule.Schedule),
		slots:     make(map[uuid.UUID]schedule.TimeSlot),
		links:     make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *ScheduleRepo) load(id uuid.UUID) *schedule.Schedule {
	s := r.schedules[id]
	s.TimeSlots = nil
	for _, tid := range r.links[id] {
		t := r.slots[tid]
		t.Schedules = nil
		s.TimeSlots = append(s.TimeSlots, &t)
	}
	sort.Slice(s.TimeSlots, func(i, j int) bool { return s.TimeSlots[i].StartTime < s.TimeSlots[j].StartTime })
	return &s
}

func (r *ScheduleRepo) Create(_ context.Context, s *schedule.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	s.Date = schedule.DateOnly(s.Date)
	stored := *s
	stored.TimeSlots = nil
	r.schedules[s.ID] = stored
	return nil
}

func (r *ScheduleRepo) UpdateDate(_ context.Context, id uuid.UUID, date time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return schedule.ErrScheduleNotFound
	}
	s.Date = schedule.DateOnly(date)
	r.schedules[id] = s
	return nil
}

func (r *ScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return r.load(id), nil
}

func (r *ScheduleRepo) FindByKey(_ context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) (*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := schedule.DateOnly(date)
	for id, s := range r.schedules {
		if s.Date.Equal(d) && s.ProviderID == providerID && samePatient(s.PatientID, patientID) {
			return r.load(id), nil
		}
	}
	return nil, schedule.ErrScheduleNotFound
}

func (r *ScheduleRepo) FindForConflictCheck(_ context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) ([]*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := schedule.DateOnly(date)
	var out []*schedule.Schedule
	for id, s := range r.schedules {
		if !s.Date.Equal(d) {
			continue
		}
		if s.ProviderID == providerID || (patientID != nil && s.PatientID != nil && *s.PatientID == *patientID) {
			out = append(out, r.load(id))
		}
	}
	return out, nil
}

func (r *ScheduleRepo) List(_ context.Context, q *schedule.ListQuery) ([]*schedule.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, to := schedule.DateOnly(q.From), schedule.DateOnly(q.To)
	var out []*schedule.Schedule
	for id, s := range r.schedules {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		if q.ProviderID != nil && s.ProviderID != *q.ProviderID {
			continue
		}
		if q.PatientID != nil && !samePatient(s.PatientID, q.PatientID) {
			continue
		}
		loaded := r.load(id)
		if q.Status != nil && !slices.ContainsFunc(loaded.TimeSlots, func(t *schedule.TimeSlot) bool { return t.Status == *q.Status }) {
			continue
		}
		out = append(out, loaded)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ScheduleRepo) CreateTimeslot(_ context.Context, scheduleID uuid.UUID, slot *schedule.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[scheduleID]; !ok {
		return schedule.ErrScheduleNotFound
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	if slot.Status == "" {
		slot.Status = schedule.StatusScheduled
	}
	slot.CreatedAt = time.Now()
	stored := *slot
	stored.Schedules = nil
	r.slots[slot.ID] = stored
	r.links[scheduleID] = append(r.links[scheduleID], slot.ID)
	return nil
}

// Link attaches an existing timeslot to another schedule, as shared slots are.
func (r *ScheduleRepo) Link(scheduleID, timeslotID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[scheduleID] = append(r.links[scheduleID], timeslotID)
}

func (r *ScheduleRepo) GetTimeslot(_ context.Context, id uuid.UUID) (*schedule.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.slots[id]
	if !ok {
		return nil, schedule.ErrTimeslotNotFound
	}
	t.Schedules = nil
	for sid, ids := range r.links {
		if slices.Contains(ids, id) {
			s := r.schedules[sid]
			s.TimeSlots = nil
			t.Schedules = append(t.Schedules, &s)
		}
	}
	return &t, nil
}

func (r *ScheduleRepo) UpdateTimeslot(_ context.Context, slot *schedule.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.slots[slot.ID]; !ok {
		return schedule.ErrTimeslotNotFound
	}
	stored := *slot
	stored.Schedules = nil
	stored.UpdatedAt = time.Now()
	r.slots[slot.ID] = stored
	return nil
}

func (r *ScheduleRepo) AttachTimeslots(_ context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range timeslotIDs {
		if !slices.Contains(r.links[scheduleID], id) {
			r.links[scheduleID] = append(r.links[scheduleID], id)
		}
	}
	return nil
}

func (r *ScheduleRepo) DetachTimeslots(_ context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[scheduleID] = slices.DeleteFunc(r.links[scheduleID], func(id uuid.UUID) bool {
		return slices.Contains(timeslotIDs, id)
	})
	return nil
}

func (r *ScheduleRepo) DeleteOrphanTimeslots(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []uuid.UUID
	for _, id := range ids {
		if _, ok := r.slots[id]; !ok || r.referenced(id) {
			continue
		}
		delete(r.slots, id)
		removed = append(removed, id)
	}
	return removed, nil
}

func (r *ScheduleRepo) referenced(timeslotID uuid.UUID) bool {
	for _, ids := range r.links {
		if slices.Contains(ids, timeslotID) {
			return true
		}
	}
	return false
}

func (r *ScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[id]; !ok {
		return schedule.ErrScheduleNotFound
	}
	delete(r.schedules, id)
	delete(r.links, id)
	return nil
}

func (r *ScheduleRepo) ListBillablePatients(_ context.Context, from, to time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	from, to = schedule.DateOnly(from), schedule.DateOnly(to)
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for id, s := range r.schedules {
		if s.PatientID == nil || s.Date.Before(from) || s.Date.After(to) || seen[*s.PatientID] {
			continue
		}
		for _, tid := range r.links[id] {
			if r.slots[tid].Status.Billable() {
				seen[*s.PatientID] = true
				out = append(out, *s.PatientID)
				break
			}
		}
	}
	return out, nil
}

// SlotCount returns the number of stored timeslots.
func (r *ScheduleRepo) SlotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func samePatient(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
