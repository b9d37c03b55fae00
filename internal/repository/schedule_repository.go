package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, s *schedule.Schedule) error {
	if err := conn(ctx, r.db).Omit("TimeSlots").Create(s).Error; err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) UpdateDate(ctx context.Context, id uuid.UUID, date time.Time) error {
	res := conn(ctx, r.db).Model(&schedule.Schedule{}).Where("id = ?", id).Update("date", schedule.DateOnly(date))
	if res.Error != nil {
		return fmt.Errorf("updating schedule date: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return schedule.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	var s schedule.Schedule
	err := conn(ctx, r.db).Preload("TimeSlots", orderSlots).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, schedule.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return &s, nil
}

func (r *ScheduleRepository) FindByKey(ctx context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) (*schedule.Schedule, error) {
	q := conn(ctx, r.db).Preload("TimeSlots", orderSlots).
		Where("date = ? AND provider_id = ?", schedule.DateOnly(date), providerID)
	if patientID == nil {
		q = q.Where("patient_id IS NULL")
	} else {
		q = q.Where("patient_id = ?", *patientID)
	}

	var s schedule.Schedule
	err := q.Order("created_at").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, schedule.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding schedule: %w", err)
	}
	return &s, nil
}

func (r *ScheduleRepository) FindForConflictCheck(ctx context.Context, date time.Time, providerID uuid.UUID, patientID *uuid.UUID) ([]*schedule.Schedule, error) {
	q := conn(ctx, r.db).Preload("TimeSlots", orderSlots).Where("date = ?", schedule.DateOnly(date))
	if patientID == nil {
		q = q.Where("provider_id = ?", providerID)
	} else {
		q = q.Where("provider_id = ? OR patient_id = ?", providerID, *patientID)
	}

	var out []*schedule.Schedule
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("loading schedules for conflict check: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepository) List(ctx context.Context, lq *schedule.ListQuery) ([]*schedule.Schedule, error) {
	q := conn(ctx, r.db).Preload("TimeSlots", orderSlots).
		Where("date BETWEEN ? AND ?", schedule.DateOnly(lq.From), schedule.DateOnly(lq.To))
	if lq.ProviderID != nil {
		q = q.Where("provider_id = ?", *lq.ProviderID)
	}
	if lq.PatientID != nil {
		q = q.Where("patient_id = ?", *lq.PatientID)
	}
	if lq.Status != nil {
		q = q.Where(`id IN (
			SELECT st.schedule_id FROM schedule_timeslots st
			JOIN timeslots t ON t.id = st.timeslot_id
			WHERE t.status = ?)`, *lq.Status)
	}

	var out []*schedule.Schedule
	if err := q.Order("date, created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	return out, nil
}

func (r *ScheduleRepository) CreateTimeslot(ctx context.Context, scheduleID uuid.UUID, slot *schedule.TimeSlot) error {
	db := conn(ctx, r.db)
	if err := db.Omit("Schedules").Create(slot).Error; err != nil {
		return fmt.Errorf("creating timeslot: %w", err)
	}
	err := db.Exec(`INSERT INTO schedule_timeslots (schedule_id, timeslot_id) VALUES (?, ?)`, scheduleID, slot.ID).Error
	if err != nil {
		return fmt.Errorf("attaching timeslot: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) GetTimeslot(ctx context.Context, id uuid.UUID) (*schedule.TimeSlot, error) {
	var t schedule.TimeSlot
	err := conn(ctx, r.db).Preload("Schedules").Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, schedule.ErrTimeslotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting timeslot: %w", err)
	}
	return &t, nil
}

func (r *ScheduleRepository) UpdateTimeslot(ctx context.Context, slot *schedule.TimeSlot) error {
	if err := conn(ctx, r.db).Omit("Schedules").Save(slot).Error; err != nil {
		return fmt.Errorf("updating timeslot: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) AttachTimeslots(ctx context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error {
	db := conn(ctx, r.db)
	for _, id := range timeslotIDs {
		err := db.Exec(`INSERT INTO schedule_timeslots (schedule_id, timeslot_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, scheduleID, id).Error
		if err != nil {
			return fmt.Errorf("attaching timeslot: %w", err)
		}
	}
	return nil
}

func (r *ScheduleRepository) DetachTimeslots(ctx context.Context, scheduleID uuid.UUID, timeslotIDs []uuid.UUID) error {
	if len(timeslotIDs) == 0 {
		return nil
	}
	err := conn(ctx, r.db).
		Exec(`DELETE FROM schedule_timeslots WHERE schedule_id = ? AND timeslot_id IN ?`, scheduleID, timeslotIDs).Error
	if err != nil {
		return fmt.Errorf("detaching timeslots: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) DeleteOrphanTimeslots(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := conn(ctx, r.db)

	var orphans []uuid.UUID
	err := db.Model(&schedule.TimeSlot{}).
		Where("id IN ?", ids).
		Where("NOT EXISTS (SELECT 1 FROM schedule_timeslots st WHERE st.timeslot_id = timeslots.id)").
		Pluck("id", &orphans).Error
	if err != nil {
		return nil, fmt.Errorf("finding orphan timeslots: %w", err)
	}
	if len(orphans) == 0 {
		return nil, nil
	}
	if err := db.Where("id IN ?", orphans).Delete(&schedule.TimeSlot{}).Error; err != nil {
		return nil, fmt.Errorf("deleting orphan timeslots: %w", err)
	}
	return orphans, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := conn(ctx, r.db)
	if err := db.Exec(`DELETE FROM schedule_timeslots WHERE schedule_id = ?`, id).Error; err != nil {
		return fmt.Errorf("detaching schedule timeslots: %w", err)
	}
	res := db.Where("id = ?", id).Delete(&schedule.Schedule{})
	if res.Error != nil {
		return fmt.Errorf("deleting schedule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return schedule.ErrScheduleNotFound
	}
	return nil
}

func (r *ScheduleRepository) ListBillablePatients(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := conn(ctx, r.db).Raw(`
		SELECT DISTINCT s.patient_id FROM schedules s
		JOIN schedule_timeslots st ON st.schedule_id = s.id
		JOIN timeslots t ON t.id = st.timeslot_id
		WHERE s.patient_id IS NOT NULL
		  AND s.date BETWEEN ? AND ?
		  AND t.status IN ?`,
		schedule.DateOnly(from), schedule.DateOnly(to),
		[]schedule.Status{schedule.StatusCompleted, schedule.StatusConfirmed},
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing billable patients: %w", err)
	}
	return ids, nil
}

func orderSlots(db *gorm.DB) *gorm.DB {
	return db.Order("timeslots.start_time")
}
