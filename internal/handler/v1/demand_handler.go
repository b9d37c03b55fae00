package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

type createDemandRequest struct {
	PatientID          uuid.UUID       `json:"patient_id"`
	ServiceID          *uuid.UUID      `json:"service_id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Reason             string          `json:"reason"`
	Priority           demand.Priority `json:"priority"`
	PreferredStartDate *string         `json:"preferred_start_date"`
	Frequency          string          `json:"frequency"`
	ContactMethod      string          `json:"contact_method"`
}

func (h *Handler) CreateDemand(c *gin.Context) {
	var req createDemandRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := &demand.CreateDemandCommand{
		PatientID:     req.PatientID,
		ServiceID:     req.ServiceID,
		Title:         req.Title,
		Description:   req.Description,
		Reason:        req.Reason,
		Priority:      req.Priority,
		Frequency:     req.Frequency,
		ContactMethod: req.ContactMethod,
	}
	if req.PreferredStartDate != nil && *req.PreferredStartDate != "" {
		d, err := schedule.ParseDate(*req.PreferredStartDate)
		if err != nil {
			h.respondServiceError(c, &service.ValidationError{Fields: []string{"preferred_start_date: " + err.Error()}})
			return
		}
		cmd.PreferredStartDate = &d
	}

	d, err := h.demands.Create(c.Request.Context(), actor(c), cmd)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, d)
}

func (h *Handler) ListDemands(c *gin.Context) {
	patientID, ok := parseOptionalUUID(c, "patient_id")
	if !ok {
		return
	}
	managedBy, ok := parseOptionalUUID(c, "managed_by")
	if !ok {
		return
	}
	q := demand.ListQuery{
		PatientID: patientID,
		ManagedBy: managedBy,
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := demand.Status(raw)
		q.Status = &status
	}

	demands, total, err := h.demands.List(c.Request.Context(), actor(c), q)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondPaged(c, demands, total, q.Page, q.PageSize)
}

func (h *Handler) GetDemand(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	d, err := h.demands.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

type demandStatusRequest struct {
	Status demand.Status `json:"status" binding:"required"`
	Reason string        `json:"reason"`
}

// TransitionDemand moves a demand along its workflow. Moving to In Progress
// goes through acceptance so the prescription is created with it.
func (h *Handler) TransitionDemand(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req demandStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	var (
		d   *demand.ServiceDemand
		err error
	)
	if req.Status == demand.StatusInProgress {
		d, err = h.demands.Accept(c.Request.Context(), actor(c), id)
	} else {
		d, err = h.demands.Transition(c.Request.Context(), actor(c), id, req.Status, req.Reason)
	}
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

func (h *Handler) AcceptDemand(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	d, err := h.demands.Accept(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

func (h *Handler) CommentDemand(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.demands.Comment(c.Request.Context(), actor(c), id, req.Body)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}
