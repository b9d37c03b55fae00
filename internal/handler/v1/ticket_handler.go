package v1

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
)

type createTicketRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Priority    ticket.Priority `json:"priority"`
	Team        domain.Role     `json:"team"`
	InvoiceID   *uuid.UUID      `json:"invoice_id"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (h *Handler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	cmd := &ticket.CreateTicketCommand{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Team:        req.Team,
		InvoiceID:   req.InvoiceID,
	}
	if len(req.Metadata) > 0 {
		cmd.Metadata = datatypes.JSON(req.Metadata)
	}

	t, err := h.tickets.Create(c.Request.Context(), actor(c), cmd)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, t)
}

func (h *Handler) ListTickets(c *gin.Context) {
	assignedTo, ok := parseOptionalUUID(c, "assigned_to")
	if !ok {
		return
	}
	q := ticket.ListQuery{
		AssignedTo: assignedTo,
		Page:       parseQueryInt(c, "page", 1),
		PageSize:   parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := ticket.Status(raw)
		q.Status = &status
	}
	if raw := c.Query("team"); raw != "" {
		team := domain.Role(raw)
		q.Team = &team
	}

	tickets, total, err := h.tickets.List(c.Request.Context(), actor(c), q)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondPaged(c, tickets, total, q.Page, q.PageSize)
}

func (h *Handler) GetTicket(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	t, err := h.tickets.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}

type assignTicketRequest struct {
	AssigneeID uuid.UUID `json:"assignee_id"`
}

func (h *Handler) AssignTicket(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req assignTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.tickets.Assign(c.Request.Context(), actor(c), id, req.AssigneeID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}

type ticketStatusRequest struct {
	Status ticket.Status `json:"status" binding:"required"`
}

func (h *Handler) UpdateTicketStatus(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req ticketStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.tickets.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, t)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) AddTicketComment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.tickets.AddComment(c.Request.Context(), actor(c), id, req.Body)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, comment)
}

func (h *Handler) ListTicketComments(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	comments, err := h.tickets.ListComments(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if comments == nil {
		comments = []*ticket.Comment{}
	}
	respondOK(c, comments)
}
