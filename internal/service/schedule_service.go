package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/tracer"
)

const (
	maxCalendarDays     = 366
	defaultCalendarDays = 30
	maxRecurringDates   = 366
)

type ScheduleService struct {
	repo          schedule.Repository
	providers     provider.Repository
	catalog       catalog.Repository
	patients      *PatientService
	prescriptions *PrescriptionService
	tx            Transactor
	events        EventPublisher
	auditSvc      *AuditService
	metrics       *metrics.Collector
	log           *zap.Logger
	now           func() time.Time
}

type ScheduleDeps struct {
	Repo          schedule.Repository
	Providers     provider.Repository
	Catalog       catalog.Repository
	Patients      *PatientService
	Prescriptions *PrescriptionService
	Tx            Transactor
	Events        EventPublisher
	Audit         *AuditService
}

func NewScheduleService(deps ScheduleDeps, m *metrics.Collector, log *zap.Logger) *ScheduleService {
	return &ScheduleService{
		repo:          deps.Repo,
		providers:     deps.Providers,
		catalog:       deps.Catalog,
		patients:      deps.Patients,
		prescriptions: deps.Prescriptions,
		tx:            deps.Tx,
		events:        deps.Events,
		auditSvc:      deps.Audit,
		metrics:       m,
		log:           log,
		now:           time.Now,
	}
}

// ── Conflict probe ───────────────────────────────────────────────────────────

func (s *ScheduleService) CheckConflicts(ctx context.Context, actor domain.Actor, q schedule.ConflictQuery) (*schedule.Report, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.repo.FindForConflictCheck(ctx, q.Date, q.ProviderID, q.PatientID)
	if err != nil {
		return nil, fmt.Errorf("loading schedules for conflict check: %w", err)
	}
	return schedule.DetectConflicts(q, existing), nil
}

// ── Create ───────────────────────────────────────────────────────────────────

type CreatedAppointment struct {
	Schedule *schedule.Schedule `json:"schedule"`
	Timeslot *schedule.TimeSlot `json:"timeslot"`
	// Report is set when the write went through despite conflicts.
	Report *schedule.Report `json:"conflicts,omitempty"`
}

// QuickSchedule books one timeslot. Provider or double-booking conflicts reject
// the write with a ConflictError unless ForceSchedule is set.
func (s *ScheduleService) QuickSchedule(ctx context.Context, actor domain.Actor, cmd schedule.CreateScheduleCommand) (*CreatedAppointment, error) {
	ctx, span := tracer.Start(ctx, "schedule.quick",
		attribute.String("provider_id", cmd.ProviderID.String()),
		attribute.Bool("forced", cmd.ForceSchedule),
	)
	defer span.End()

	if err := s.prepare(ctx, actor, &cmd); err != nil {
		return nil, tracer.Fail(span, err)
	}

	created, err := s.createOne(ctx, actor, cmd, schedule.DateOnly(cmd.Date))
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			conflict.Data = cmd
			return nil, err
		}
		return nil, tracer.Fail(span, err)
	}
	s.publishCreated(ctx, actor, created)
	return created, nil
}

type RecurringCreated struct {
	Date       string    `json:"date"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	TimeslotID uuid.UUID `json:"timeslot_id"`
}

type SkipReason string

const (
	SkipConflict      SkipReason = "conflict"
	SkipInvalidFormat SkipReason = "invalid_format"
	SkipError         SkipReason = "error"
)

type RecurringSkipped struct {
	Date     string           `json:"date"`
	Reason   SkipReason       `json:"reason"`
	Conflict *schedule.Report `json:"conflict_details,omitempty"`
	Message  string           `json:"message,omitempty"`
}

type RecurringResult struct {
	Created        []RecurringCreated `json:"created"`
	Skipped        []RecurringSkipped `json:"skipped"`
	TotalRequested int                `json:"total_requested"`
	SuccessRate    string             `json:"success_rate"`
}

// Recurring books the same window on every listed date. Each date is its own
// unit: created dates stay committed when later dates fail.
func (s *ScheduleService) Recurring(ctx context.Context, actor domain.Actor, cmd schedule.RecurringScheduleCommand) (*RecurringResult, error) {
	ctx, span := tracer.Start(ctx, "schedule.recurring",
		attribute.String("provider_id", cmd.ProviderID.String()),
		attribute.Int("dates", len(cmd.Dates)),
	)
	defer span.End()

	if len(cmd.Dates) == 0 {
		return nil, schedule.ErrNoDates
	}
	if len(cmd.Dates) > maxRecurringDates {
		return nil, invalid(fmt.Sprintf("dates: at most %d dates per series", maxRecurringDates))
	}
	base := cmd.CreateScheduleCommand
	if err := s.prepare(ctx, actor, &base); err != nil {
		return nil, tracer.Fail(span, err)
	}

	result := &RecurringResult{
		Created:        []RecurringCreated{},
		Skipped:        []RecurringSkipped{},
		TotalRequested: len(cmd.Dates),
	}
	aggregate := &schedule.Report{Conflicts: []schedule.Conflict{}, Severity: schedule.SeverityNone}
	var rejected []string

	for _, raw := range cmd.Dates {
		date, err := schedule.ParseDate(raw)
		if err != nil {
			result.Skipped = append(result.Skipped, RecurringSkipped{Date: raw, Reason: SkipInvalidFormat, Message: err.Error()})
			continue
		}

		created, err := s.createOne(ctx, actor, base, date)
		var conflict *ConflictError
		switch {
		case err == nil:
			result.Created = append(result.Created, RecurringCreated{
				Date:       date.Format(schedule.DateFormat),
				ScheduleID: created.Schedule.ID,
				TimeslotID: created.Timeslot.ID,
			})
			s.publishCreated(ctx, actor, created)
		case errors.As(err, &conflict):
			result.Skipped = append(result.Skipped, RecurringSkipped{Date: raw, Reason: SkipConflict, Conflict: conflict.Report})
			aggregate.Conflicts = append(aggregate.Conflicts, conflict.Report.Conflicts...)
			aggregate.Severity = schedule.MaxSeverity(aggregate.Severity, conflict.Report.Severity)
			rejected = append(rejected, raw)
		default:
			s.log.Error("recurring date failed", zap.String("date", raw), zap.Error(err))
			result.Skipped = append(result.Skipped, RecurringSkipped{Date: raw, Reason: SkipError, Message: "could not create appointment"})
		}
	}

	result.SuccessRate = fmt.Sprintf("%.1f%%", float64(len(result.Created))*100/float64(result.TotalRequested))

	if len(result.Created) == 0 && len(rejected) > 0 && !base.ForceSchedule {
		aggregate.HasConflicts = true
		return nil, &ConflictError{Report: aggregate, Data: cmd, Rejected: rejected}
	}
	return result, nil
}

// prepare validates the command and fills in the default service and the
// prescription derived from a service demand.
func (s *ScheduleService) prepare(ctx context.Context, actor domain.Actor, cmd *schedule.CreateScheduleCommand) error {
	if !actor.Role.CanManageSchedules() {
		return ErrForbidden
	}
	if !(schedule.Window{Start: cmd.StartTime, End: cmd.EndTime}).Valid() {
		return schedule.ErrInvalidTimeRange
	}

	prov, err := s.providers.GetByID(ctx, cmd.ProviderID)
	if err != nil {
		return err
	}
	if actor.Role == domain.RoleProvider {
		own, err := s.ownProviderID(ctx, actor)
		if err != nil {
			return err
		}
		if own != prov.ID {
			return ErrForbidden
		}
	}
	if cmd.PatientID != nil {
		if _, err := s.patients.repo.GetByID(ctx, *cmd.PatientID); err != nil {
			return err
		}
	}

	if cmd.ServiceID == nil {
		cmd.ServiceID = prov.ServiceID
	}
	if cmd.ServiceID != nil {
		if _, err := s.catalog.GetService(ctx, *cmd.ServiceID); err != nil {
			return err
		}
	}

	if cmd.ServiceDemandNumber != nil && cmd.PrescriptionID == nil {
		p, err := s.prescriptions.ForDemand(ctx, *cmd.ServiceDemandNumber, actor.UserID)
		if err != nil {
			return err
		}
		cmd.PrescriptionID = &p.ID
	}
	cmd.Description = strings.TrimSpace(cmd.Description)
	return nil
}

// createOne runs the conflict check and the write for one date in a single transaction.
func (s *ScheduleService) createOne(ctx context.Context, actor domain.Actor, cmd schedule.CreateScheduleCommand, date time.Time) (*CreatedAppointment, error) {
	out := &CreatedAppointment{}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindForConflictCheck(ctx, date, cmd.ProviderID, cmd.PatientID)
		if err != nil {
			return fmt.Errorf("loading schedules for conflict check: %w", err)
		}
		report := schedule.DetectConflicts(schedule.ConflictQuery{
			ProviderID: cmd.ProviderID,
			PatientID:  cmd.PatientID,
			Date:       date,
			Start:      cmd.StartTime,
			End:        cmd.EndTime,
		}, existing)

		if report.HasConflicts {
			s.metrics.ScheduleConflicts.WithLabelValues(string(report.Severity), fmt.Sprint(cmd.ForceSchedule)).Inc()
			if report.Blocking() && !cmd.ForceSchedule {
				s.log.Info("schedule rejected on conflict",
					zap.String("provider_id", cmd.ProviderID.String()),
					zap.String("date", date.Format(schedule.DateFormat)),
					zap.String("severity", string(report.Severity)),
				)
				return &ConflictError{Report: report}
			}
			out.Report = report
		}

		sc, err := s.repo.FindByKey(ctx, date, cmd.ProviderID, cmd.PatientID)
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			sc = &schedule.Schedule{
				PatientID:  cmd.PatientID,
				ProviderID: cmd.ProviderID,
				Date:       date,
				CreatedBy:  actor.UserID,
			}
			err = s.repo.Create(ctx, sc)
		}
		if err != nil {
			return fmt.Errorf("resolving schedule: %w", err)
		}

		slot := &schedule.TimeSlot{
			StartTime:      cmd.StartTime,
			EndTime:        cmd.EndTime,
			Description:    cmd.Description,
			Status:         schedule.StatusScheduled,
			ServiceID:      cmd.ServiceID,
			PrescriptionID: cmd.PrescriptionID,
			Data:           cmd.Data,
		}
		if err := s.repo.CreateTimeslot(ctx, sc.ID, slot); err != nil {
			return fmt.Errorf("creating timeslot: %w", err)
		}
		sc.TimeSlots = append(sc.TimeSlots, slot)

		out.Schedule, out.Timeslot = sc, slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.TimeslotsCreated.Inc()
	return out, nil
}

func (s *ScheduleService) publishCreated(ctx context.Context, actor domain.Actor, c *CreatedAppointment) {
	snap := notification.SnapshotSchedule(c.Schedule)
	snap.Slots = []schedule.Window{{Start: c.Timeslot.StartTime, End: c.Timeslot.EndTime}}
	s.events.Publish(ctx, notification.Event{
		Type:     notification.TypeScheduleCreated,
		ActorID:  &actor.UserID,
		Schedule: snap,
	})
}

// ── Update ───────────────────────────────────────────────────────────────────

func (s *ScheduleService) UpdateAppointment(ctx context.Context, actor domain.Actor, scheduleID uuid.UUID, cmd schedule.UpdateAppointmentCommand) (*schedule.Schedule, error) {
	ctx, span := tracer.Start(ctx, "schedule.update", attribute.String("schedule_id", scheduleID.String()))
	defer span.End()

	if !actor.Role.CanManageSchedules() {
		return nil, ErrForbidden
	}

	var updated *schedule.Schedule
	var changed []string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sc, err := s.repo.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if err := s.checkProviderOwnership(ctx, actor, sc.ProviderID); err != nil {
			return err
		}

		slot, err := pickTimeslot(sc, cmd.TimeslotID)
		if err != nil {
			return err
		}

		date := schedule.DateOnly(sc.Date)
		dateChanged := cmd.Date != nil && !schedule.DateOnly(*cmd.Date).Equal(date)
		if dateChanged {
			date = schedule.DateOnly(*cmd.Date)
			changed = append(changed, "date")
		}
		start, end := slot.StartTime, slot.EndTime
		if cmd.StartTime != nil && *cmd.StartTime != start {
			start = *cmd.StartTime
			changed = append(changed, "start_time")
		}
		if cmd.EndTime != nil && *cmd.EndTime != end {
			end = *cmd.EndTime
			changed = append(changed, "end_time")
		}
		if !(schedule.Window{Start: start, End: end}).Valid() {
			return schedule.ErrInvalidTimeRange
		}

		if dateChanged || start != slot.StartTime || end != slot.EndTime {
			report, err := s.moveConflicts(ctx, sc, slot, date, start, end)
			if err != nil {
				return err
			}
			if report.HasConflicts {
				s.metrics.ScheduleConflicts.WithLabelValues(string(report.Severity), fmt.Sprint(cmd.ForceSchedule)).Inc()
				if report.Blocking() && !cmd.ForceSchedule {
					return &ConflictError{Report: report, Data: cmd}
				}
			}
		}

		if cmd.Description != nil && strings.TrimSpace(*cmd.Description) != slot.Description {
			slot.Description = strings.TrimSpace(*cmd.Description)
			changed = append(changed, "description")
		}
		if cmd.ServiceID != nil && (slot.ServiceID == nil || *slot.ServiceID != *cmd.ServiceID) {
			if _, err := s.catalog.GetService(ctx, *cmd.ServiceID); err != nil {
				return err
			}
			slot.ServiceID = cmd.ServiceID
			changed = append(changed, "service")
		}
		if cmd.Data != nil {
			slot.Data = cmd.Data
			changed = append(changed, "data")
		}
		slot.StartTime, slot.EndTime = start, end

		if err := s.repo.UpdateTimeslot(ctx, slot); err != nil {
			return fmt.Errorf("updating timeslot: %w", err)
		}
		if dateChanged {
			moved, err := s.moveSchedule(ctx, sc, date)
			if err != nil {
				return err
			}
			sc = moved
		}
		updated = sc
		return nil
	})
	if err != nil {
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			tracer.Fail(span, err)
		}
		return nil, err
	}

	if len(changed) > 0 {
		s.events.Publish(ctx, notification.Event{
			Type:          notification.TypeScheduleUpdated,
			ActorID:       &actor.UserID,
			Schedule:      notification.SnapshotSchedule(updated),
			ChangedFields: changed,
		})
	}
	return updated, nil
}

// moveConflicts checks the edited slot at its new window and, when the date
// changes, every other occupying slot of the schedule on the target date.
func (s *ScheduleService) moveConflicts(ctx context.Context, sc *schedule.Schedule, slot *schedule.TimeSlot, date time.Time, start, end schedule.Clock) (*schedule.Report, error) {
	existing, err := s.repo.FindForConflictCheck(ctx, date, sc.ProviderID, sc.PatientID)
	if err != nil {
		return nil, fmt.Errorf("loading schedules for conflict check: %w", err)
	}

	others := make([]*schedule.Schedule, 0, len(existing))
	for _, e := range existing {
		if e.ID != sc.ID {
			others = append(others, e)
		}
	}
	// The schedule as it will look after the edit, without the edited slot.
	after := *sc
	after.Date = date
	after.TimeSlots = nil
	for _, t := range sc.TimeSlots {
		if t.ID != slot.ID {
			after.TimeSlots = append(after.TimeSlots, t)
		}
	}

	q := schedule.ConflictQuery{
		ProviderID:        sc.ProviderID,
		PatientID:         sc.PatientID,
		Date:              date,
		Start:             start,
		End:               end,
		ExcludeTimeslotID: &slot.ID,
	}
	report := schedule.DetectConflicts(q, others)

	// Against its own siblings only a real overlap counts.
	own := &schedule.Report{Severity: schedule.SeverityNone}
	for _, c := range schedule.DetectConflicts(q, []*schedule.Schedule{&after}).Conflicts {
		if c.Kind != schedule.KindSameDayBooking {
			own.Conflicts = append(own.Conflicts, c)
		}
	}
	report.Merge(own)

	if schedule.DateOnly(sc.Date).Equal(date) {
		return report, nil
	}
	for _, t := range sc.TimeSlots {
		if t.ID == slot.ID || !t.Status.Occupies() {
			continue
		}
		q.Start, q.End = t.StartTime, t.EndTime
		q.ExcludeTimeslotID = &t.ID
		report.Merge(schedule.DetectConflicts(q, others))
	}
	return report, nil
}

// moveSchedule puts the schedule on date. When a schedule for the same
// provider and patient already exists there, the slots join it and the old
// schedule is removed.
func (s *ScheduleService) moveSchedule(ctx context.Context, sc *schedule.Schedule, date time.Time) (*schedule.Schedule, error) {
	target, err := s.repo.FindByKey(ctx, date, sc.ProviderID, sc.PatientID)
	switch {
	case errors.Is(err, schedule.ErrScheduleNotFound):
		if err := s.repo.UpdateDate(ctx, sc.ID, date); err != nil {
			return nil, fmt.Errorf("moving schedule: %w", err)
		}
		sc.Date = schedule.DateOnly(date)
		return sc, nil
	case err != nil:
		return nil, fmt.Errorf("loading target schedule: %w", err)
	}

	if err := s.repo.AttachTimeslots(ctx, target.ID, sc.TimeslotIDs()); err != nil {
		return nil, fmt.Errorf("merging timeslots: %w", err)
	}
	if err := s.repo.Delete(ctx, sc.ID); err != nil {
		return nil, fmt.Errorf("removing moved schedule: %w", err)
	}
	merged, err := s.repo.GetByID(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading schedule: %w", err)
	}
	return merged, nil
}

// pickTimeslot returns the named slot, or the only slot when none is named.
func pickTimeslot(sc *schedule.Schedule, id *uuid.UUID) (*schedule.TimeSlot, error) {
	if id != nil {
		for _, t := range sc.TimeSlots {
			if t.ID == *id {
				return t, nil
			}
		}
		return nil, schedule.ErrTimeslotNotInSchedule
	}
	switch len(sc.TimeSlots) {
	case 0:
		return nil, schedule.ErrTimeslotNotFound
	case 1:
		return sc.TimeSlots[0], nil
	}
	return nil, invalid("timeslot_id: required when the schedule has several timeslots")
}

// ── Delete ───────────────────────────────────────────────────────────────────

type DeletionResult struct {
	ScheduleID       uuid.UUID                 `json:"schedule_id"`
	Strategy         schedule.DeletionStrategy `json:"strategy"`
	ScheduleDeleted  bool                      `json:"schedule_deleted"`
	Detached         []uuid.UUID               `json:"detached_timeslots"`
	DeletedTimeslots []uuid.UUID               `json:"deleted_timeslots"`
}

func (s *ScheduleService) DeleteAppointment(ctx context.Context, actor domain.Actor, scheduleID uuid.UUID, timeslotID *uuid.UUID, strategy schedule.DeletionStrategy, reason string) (*DeletionResult, error) {
	ctx, span := tracer.Start(ctx, "schedule.delete",
		attribute.String("schedule_id", scheduleID.String()),
		attribute.String("strategy", string(strategy)),
	)
	defer span.End()

	if !actor.Role.CanManageSchedules() {
		return nil, ErrForbidden
	}

	var snap *notification.ScheduleSnapshot
	result := &DeletionResult{ScheduleID: scheduleID, Strategy: strategy, Detached: []uuid.UUID{}, DeletedTimeslots: []uuid.UUID{}}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sc, err := s.repo.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		if err := s.checkProviderOwnership(ctx, actor, sc.ProviderID); err != nil {
			return err
		}
		plan, err := schedule.PlanDeletion(sc, timeslotID, strategy)
		if err != nil {
			return err
		}
		if plan.Empty() {
			return nil
		}
		snap = notification.SnapshotSchedule(sc)

		if len(plan.Detach) > 0 {
			if err := s.repo.DetachTimeslots(ctx, sc.ID, plan.Detach); err != nil {
				return fmt.Errorf("detaching timeslots: %w", err)
			}
			deleted, err := s.repo.DeleteOrphanTimeslots(ctx, plan.Detach)
			if err != nil {
				return fmt.Errorf("deleting orphan timeslots: %w", err)
			}
			result.Detached = plan.Detach
			result.DeletedTimeslots = deleted
		}
		if plan.DeleteSchedule {
			if err := s.repo.Delete(ctx, sc.ID); err != nil {
				return fmt.Errorf("deleting schedule: %w", err)
			}
			result.ScheduleDeleted = true
		}
		return nil
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}
	if snap == nil {
		return result, nil
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       &actor.UserID,
		UserRole:     actor.Role,
		Action:       domain.ActionDelete,
		ResourceType: "schedule",
		ResourceID:   scheduleID.String(),
		IPAddress:    actor.IP,
		Changes: map[string]any{
			"strategy":          strategy,
			"reason":            reason,
			"schedule_deleted":  result.ScheduleDeleted,
			"deleted_timeslots": result.DeletedTimeslots,
		},
	})
	s.events.Publish(ctx, notification.Event{
		Type:     notification.TypeScheduleCancelled,
		ActorID:  &actor.UserID,
		Schedule: snap,
		Reason:   strings.TrimSpace(reason),
	})
	return result, nil
}

type BulkDeleteItem struct {
	ScheduleID uuid.UUID       `json:"schedule_id"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	Result     *DeletionResult `json:"result,omitempty"`
}

type BulkDeleteResult struct {
	Results   []BulkDeleteItem `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// BulkDelete processes each schedule independently; one failure does not stop the batch.
func (s *ScheduleService) BulkDelete(ctx context.Context, actor domain.Actor, ids []uuid.UUID, strategy schedule.DeletionStrategy, reason string) (*BulkDeleteResult, error) {
	if !actor.Role.CanManageSchedules() {
		return nil, ErrForbidden
	}
	if len(ids) == 0 {
		return nil, invalid("schedule_ids: at least one id is required")
	}
	if len(ids) > schedule.MaxBulkDelete {
		return nil, schedule.ErrTooManySchedules
	}

	out := &BulkDeleteResult{Results: make([]BulkDeleteItem, 0, len(ids))}
	for _, id := range ids {
		res, err := s.DeleteAppointment(ctx, actor, id, nil, strategy, reason)
		item := BulkDeleteItem{ScheduleID: id, Success: err == nil, Result: res}
		if err != nil {
			item.Error = publicMessage(err)
			out.Failed++
		} else {
			out.Succeeded++
		}
		out.Results = append(out.Results, item)
	}
	return out, nil
}

// ── Status ───────────────────────────────────────────────────────────────────

func (s *ScheduleService) UpdateTimeslotStatus(ctx context.Context, actor domain.Actor, timeslotID uuid.UUID, next schedule.Status) (*schedule.TimeSlot, error) {
	if !actor.Role.CanManageSchedules() {
		return nil, ErrForbidden
	}

	slot, err := s.repo.GetTimeslot(ctx, timeslotID)
	if err != nil {
		return nil, err
	}
	if len(slot.Schedules) == 0 {
		return nil, schedule.ErrTimeslotNotFound
	}
	owner := slot.Schedules[0]
	if err := s.checkProviderOwnership(ctx, actor, owner.ProviderID); err != nil {
		return nil, err
	}

	status, err := slot.Status.TransitionTo(next, owner.Date, s.now())
	if err != nil {
		return nil, err
	}
	prev := slot.Status
	slot.Status = status
	if err := s.repo.UpdateTimeslot(ctx, slot); err != nil {
		return nil, fmt.Errorf("updating timeslot status: %w", err)
	}

	s.log.Info("timeslot status changed",
		zap.String("timeslot_id", slot.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(status)),
	)

	snap := notification.SnapshotSchedule(owner)
	snap.Slots = []schedule.Window{{Start: slot.StartTime, End: slot.EndTime}}
	s.events.Publish(ctx, notification.Event{
		Type:          notification.TypeScheduleUpdated,
		ActorID:       &actor.UserID,
		Schedule:      snap,
		ChangedFields: []string{"status"},
	})
	return slot, nil
}

// ── Availability ─────────────────────────────────────────────────────────────

type AvailabilityQuery struct {
	ProviderID uuid.UUID
	Date       time.Time
	Duration   int
	ExcludeID  *uuid.UUID
}

// Availability lists up to ten free windows for the provider on the date.
// Approved full-day absences leave no window; short absences block their range.
func (s *ScheduleService) Availability(ctx context.Context, actor domain.Actor, q AvailabilityQuery) ([]schedule.Window, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if q.Duration <= 0 || q.Duration > int(schedule.EndOfDay) {
		return nil, invalid("duration: must be a positive number of minutes")
	}
	if _, err := s.providers.GetByID(ctx, q.ProviderID); err != nil {
		return nil, err
	}

	date := schedule.DateOnly(q.Date)
	absences, short, err := s.providers.ListAbsencesOn(ctx, q.ProviderID, date)
	if err != nil {
		return nil, fmt.Errorf("loading absences: %w", err)
	}
	for _, a := range absences {
		if a.Covers(date) {
			return []schedule.Window{}, nil
		}
	}

	existing, err := s.repo.FindForConflictCheck(ctx, date, q.ProviderID, nil)
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}
	booked := schedule.BookedWindows(existing, q.ProviderID, q.ExcludeID)
	for _, sa := range short {
		booked = append(booked, schedule.Window{Start: sa.StartTime, End: sa.EndTime})
	}
	return schedule.FreeWindows(booked, q.Duration, schedule.DefaultWorkingHours), nil
}

// ── Calendar ─────────────────────────────────────────────────────────────────

type Calendar struct {
	From      string               `json:"from"`
	To        string               `json:"to"`
	Schedules []*schedule.Schedule `json:"schedules"`
	Stats     schedule.Stats       `json:"stats"`
}

// Calendar lists schedules in a date range. Patients see their own, family
// members a linked patient's, providers their own.
func (s *ScheduleService) Calendar(ctx context.Context, actor domain.Actor, q schedule.ListQuery) (*Calendar, error) {
	if q.From.IsZero() {
		q.From = schedule.DateOnly(s.now())
	}
	if q.To.IsZero() {
		q.To = q.From.AddDate(0, 0, defaultCalendarDays)
	}
	q.From, q.To = schedule.DateOnly(q.From), schedule.DateOnly(q.To)
	if q.To.Before(q.From) {
		return nil, invalid("end_date: must not be before start_date")
	}
	if q.To.Sub(q.From) > maxCalendarDays*24*time.Hour {
		return nil, invalid(fmt.Sprintf("range: at most %d days", maxCalendarDays))
	}
	if q.Status != nil && !q.Status.IsValid() {
		return nil, schedule.ErrInvalidStatus
	}

	switch actor.Role {
	case domain.RolePatient:
		own, err := s.patients.ScopedPatientID(ctx, actor)
		if err != nil {
			return nil, err
		}
		q.PatientID = own
	case domain.RoleFamilyPatient:
		if q.PatientID == nil {
			return nil, invalid("patient_id: required")
		}
		if err := s.patients.Authorize(ctx, actor, *q.PatientID); err != nil {
			return nil, err
		}
	case domain.RoleProvider:
		own, err := s.ownProviderID(ctx, actor)
		if err != nil {
			return nil, err
		}
		q.ProviderID = &own
	}

	list, err := s.repo.List(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	return &Calendar{
		From:      q.From.Format(schedule.DateFormat),
		To:        q.To.Format(schedule.DateFormat),
		Schedules: list,
		Stats:     schedule.ComputeStats(list),
	}, nil
}

func (s *ScheduleService) GetSchedule(ctx context.Context, actor domain.Actor, id uuid.UUID) (*schedule.Schedule, error) {
	sc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case sc.PatientID != nil && !actor.Role.IsStaff():
		if err := s.patients.Authorize(ctx, actor, *sc.PatientID); err != nil {
			return nil, err
		}
	case !actor.Role.IsStaff():
		return nil, ErrForbidden
	}
	return sc, nil
}

// ── Ownership ────────────────────────────────────────────────────────────────

func (s *ScheduleService) ownProviderID(ctx context.Context, actor domain.Actor) (uuid.UUID, error) {
	if actor.ProviderID != nil {
		return *actor.ProviderID, nil
	}
	p, err := s.providers.GetByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return uuid.Nil, ErrForbidden
		}
		return uuid.Nil, err
	}
	return p.ID, nil
}

// checkProviderOwnership limits Provider actors to their own schedules.
func (s *ScheduleService) checkProviderOwnership(ctx context.Context, actor domain.Actor, providerID uuid.UUID) error {
	if actor.Role != domain.RoleProvider {
		return nil
	}
	own, err := s.ownProviderID(ctx, actor)
	if err != nil {
		return err
	}
	if own != providerID {
		return ErrForbidden
	}
	return nil
}
