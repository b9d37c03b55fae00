package v1

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

type scheduleRequest struct {
	ProviderID          uuid.UUID       `json:"provider_id"`
	PatientID           *uuid.UUID      `json:"patient_id,omitempty"`
	Date                string          `json:"date"`
	StartTime           string          `json:"start_time"`
	EndTime             string          `json:"end_time"`
	Description         string          `json:"description,omitempty"`
	ServiceID           *uuid.UUID      `json:"service_id,omitempty"`
	PrescriptionID      *uuid.UUID      `json:"prescription_id,omitempty"`
	ServiceDemandNumber *int64          `json:"service_demand_number,omitempty"`
	Data                json.RawMessage `json:"data,omitempty"`
	ForceSchedule       bool            `json:"force_schedule"`
}

// parseWindow parses the time fields shared by every scheduling request.
func parseWindow(start, end string) (schedule.Clock, schedule.Clock, []string) {
	var fields []string
	s, err := schedule.ParseClock(start)
	if err != nil {
		fields = append(fields, "start_time: "+err.Error())
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		fields = append(fields, "end_time: "+err.Error())
	}
	return s, e, fields
}

func (r *scheduleRequest) command(requireDate bool) (schedule.CreateScheduleCommand, error) {
	start, end, fields := parseWindow(r.StartTime, r.EndTime)
	if r.ProviderID == uuid.Nil {
		fields = append(fields, "provider_id: is required")
	}
	cmd := schedule.CreateScheduleCommand{
		ProviderID:          r.ProviderID,
		PatientID:           r.PatientID,
		StartTime:           start,
		EndTime:             end,
		Description:         strings.TrimSpace(r.Description),
		ServiceID:           r.ServiceID,
		PrescriptionID:      r.PrescriptionID,
		ServiceDemandNumber: r.ServiceDemandNumber,
		ForceSchedule:       r.ForceSchedule,
	}
	if len(r.Data) > 0 {
		cmd.Data = datatypes.JSON(r.Data)
	}
	if requireDate {
		d, err := schedule.ParseDate(r.Date)
		if err != nil {
			fields = append(fields, "date: "+err.Error())
		}
		cmd.Date = d
	}
	if len(fields) > 0 {
		return cmd, &service.ValidationError{Fields: fields}
	}
	return cmd, nil
}

// QuickSchedule books one timeslot. Unforced provider conflicts return 409.
func (h *Handler) QuickSchedule(c *gin.Context) {
	var req scheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd, err := req.command(true)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	created, err := h.schedules.QuickSchedule(c.Request.Context(), actor(c), cmd)
	if err != nil {
		h.respondServiceError(c, withRequest(err, req))
		return
	}
	respondCreated(c, created)
}

type recurringRequest struct {
	scheduleRequest
	Dates []string `json:"dates"`
}

func (h *Handler) RecurringSchedule(c *gin.Context) {
	var req recurringRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd, err := req.command(false)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	result, err := h.schedules.Recurring(c.Request.Context(), actor(c), schedule.RecurringScheduleCommand{
		CreateScheduleCommand: cmd,
		Dates:                 req.Dates,
	})
	if err != nil {
		h.respondServiceError(c, withRequest(err, req))
		return
	}
	respondCreated(c, result)
}

type checkConflictsRequest struct {
	ProviderID        uuid.UUID  `json:"provider_id"`
	PatientID         *uuid.UUID `json:"patient_id"`
	Date              string     `json:"date"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	ExcludeScheduleID *uuid.UUID `json:"exclude_schedule_id"`
	ExcludeTimeslotID *uuid.UUID `json:"exclude_timeslot_id"`
}

// CheckConflicts is a read-only probe; it never writes.
func (h *Handler) CheckConflicts(c *gin.Context) {
	var req checkConflictsRequest
	if !bindJSON(c, &req) {
		return
	}
	start, end, fields := parseWindow(req.StartTime, req.EndTime)
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		fields = append(fields, "date: "+err.Error())
	}
	if req.ProviderID == uuid.Nil {
		fields = append(fields, "provider_id: is required")
	}
	if len(fields) > 0 {
		h.respondServiceError(c, &service.ValidationError{Fields: fields})
		return
	}

	report, err := h.schedules.CheckConflicts(c.Request.Context(), actor(c), schedule.ConflictQuery{
		ProviderID:        req.ProviderID,
		PatientID:         req.PatientID,
		Date:              date,
		Start:             start,
		End:               end,
		ExcludeScheduleID: req.ExcludeScheduleID,
		ExcludeTimeslotID: req.ExcludeTimeslotID,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, report)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	sc, err := h.schedules.GetSchedule(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, sc)
}

type updateAppointmentRequest struct {
	TimeslotID    *uuid.UUID      `json:"timeslot_id"`
	Date          *string         `json:"date"`
	StartTime     *string         `json:"start_time"`
	EndTime       *string         `json:"end_time"`
	Description   *string         `json:"description"`
	ServiceID     *uuid.UUID      `json:"service_id"`
	Data          json.RawMessage `json:"data,omitempty"`
	ForceSchedule bool            `json:"force_schedule"`
}

func (r *updateAppointmentRequest) command() (schedule.UpdateAppointmentCommand, error) {
	cmd := schedule.UpdateAppointmentCommand{
		TimeslotID:    r.TimeslotID,
		Description:   r.Description,
		ServiceID:     r.ServiceID,
		ForceSchedule: r.ForceSchedule,
	}
	if len(r.Data) > 0 {
		cmd.Data = datatypes.JSON(r.Data)
	}
	var fields []string
	if r.Date != nil {
		d, err := schedule.ParseDate(*r.Date)
		if err != nil {
			fields = append(fields, "date: "+err.Error())
		}
		cmd.Date = &d
	}
	if r.StartTime != nil {
		t, err := schedule.ParseClock(*r.StartTime)
		if err != nil {
			fields = append(fields, "start_time: "+err.Error())
		}
		cmd.StartTime = &t
	}
	if r.EndTime != nil {
		t, err := schedule.ParseClock(*r.EndTime)
		if err != nil {
			fields = append(fields, "end_time: "+err.Error())
		}
		cmd.EndTime = &t
	}
	if len(fields) > 0 {
		return cmd, &service.ValidationError{Fields: fields}
	}
	return cmd, nil
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd, err := req.command()
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	sc, err := h.schedules.UpdateAppointment(c.Request.Context(), actor(c), id, cmd)
	if err != nil {
		h.respondServiceError(c, withRequest(err, req))
		return
	}
	respondOK(c, sc)
}

// DeleteAppointment applies ?strategy= (smart by default) to the schedule, or
// to one of its timeslots when ?timeslot_id= is given.
func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	timeslotID, ok := parseOptionalUUID(c, "timeslot_id")
	if !ok {
		return
	}
	strategy, err := schedule.ParseStrategy(c.Query("strategy"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	result, err := h.schedules.DeleteAppointment(c.Request.Context(), actor(c), id, timeslotID, strategy, c.Query("reason"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

type bulkDeleteRequest struct {
	ScheduleIDs []uuid.UUID `json:"schedule_ids"`
	Strategy    string      `json:"strategy"`
	Reason      string      `json:"reason"`
}

func (h *Handler) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	strategy, err := schedule.ParseStrategy(req.Strategy)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	result, err := h.schedules.BulkDelete(c.Request.Context(), actor(c), req.ScheduleIDs, strategy, req.Reason)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}

type timeslotStatusRequest struct {
	Status schedule.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateTimeslotStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req timeslotStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	slot, err := h.schedules.UpdateTimeslotStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, slot)
}

// Availability lists free windows: ?provider_id=&date=&duration=&exclude_id=.
func (h *Handler) Availability(c *gin.Context) {
	providerID, ok := parseOptionalUUID(c, "provider_id")
	if !ok {
		return
	}
	excludeID, ok := parseOptionalUUID(c, "exclude_id")
	if !ok {
		return
	}
	date, ok := parseQueryDate(c, "date")
	if !ok {
		return
	}
	var fields []string
	if providerID == nil {
		fields = append(fields, "provider_id: is required")
	}
	if date.IsZero() {
		fields = append(fields, "date: is required")
	}
	if len(fields) > 0 {
		h.respondServiceError(c, &service.ValidationError{Fields: fields})
		return
	}

	windows, err := h.schedules.Availability(c.Request.Context(), actor(c), service.AvailabilityQuery{
		ProviderID: *providerID,
		Date:       date,
		Duration:   parseQueryInt(c, "duration", 60),
		ExcludeID:  excludeID,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"date": date.Format(schedule.DateFormat), "available_slots": windows})
}

// Calendar returns schedules between ?start_date= and ?end_date= with stats.
func (h *Handler) Calendar(c *gin.Context) {
	from, ok := parseQueryDate(c, "start_date")
	if !ok {
		return
	}
	to, ok := parseQueryDate(c, "end_date")
	if !ok {
		return
	}
	providerID, ok := parseOptionalUUID(c, "provider_id")
	if !ok {
		return
	}
	patientID, ok := parseOptionalUUID(c, "patient_id")
	if !ok {
		return
	}
	q := schedule.ListQuery{From: from, To: to, ProviderID: providerID, PatientID: patientID}
	if raw := c.Query("status"); raw != "" {
		status := schedule.Status(raw)
		if !status.IsValid() {
			h.respondServiceError(c, schedule.ErrInvalidStatus)
			return
		}
		q.Status = &status
	}

	cal, err := h.schedules.Calendar(c.Request.Context(), actor(c), q)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, cal)
}
