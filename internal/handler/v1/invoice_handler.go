package v1

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) ListInvoices(c *gin.Context) {
	patientID, ok := parseOptionalUUID(c, "patient_id")
	if !ok {
		return
	}
	q := billing.ListQuery{
		PatientID: patientID,
		Page:      parseQueryInt(c, "page", 1),
		PageSize:  parseQueryInt(c, "page_size", 20),
	}
	if raw := c.Query("status"); raw != "" {
		status := billing.InvoiceStatus(raw)
		q.Status = &status
	}

	invoices, total, err := h.billing.ListInvoices(c.Request.Context(), actor(c), q)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondPaged(c, invoices, total, q.Page, q.PageSize)
}

func (h *Handler) GetInvoice(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.billing.GetInvoice(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, inv)
}

type generateInvoiceRequest struct {
	PatientID   uuid.UUID `json:"patient_id"`
	PeriodStart string    `json:"period_start"`
	PeriodEnd   string    `json:"period_end"`
}

func (h *Handler) GenerateInvoice(c *gin.Context) {
	var req generateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	var fields []string
	if req.PatientID == uuid.Nil {
		fields = append(fields, "patient_id: is required")
	}
	start, err := schedule.ParseDate(req.PeriodStart)
	if err != nil {
		fields = append(fields, "period_start: "+err.Error())
	}
	end, err := schedule.ParseDate(req.PeriodEnd)
	if err != nil {
		fields = append(fields, "period_end: "+err.Error())
	}
	if len(fields) > 0 {
		h.respondServiceError(c, &service.ValidationError{Fields: fields})
		return
	}

	inv, err := h.billing.Generate(c.Request.Context(), actor(c), req.PatientID, start, end)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, inv)
}

// RegenerateInvoice rebuilds the lines of an existing invoice from current data.
func (h *Handler) RegenerateInvoice(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.billing.Regenerate(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, inv)
}

// CreateSuccessor issues the replacement for an invoice cancelled by an accepted contest.
func (h *Handler) CreateSuccessor(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.billing.CreateSuccessor(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, inv)
}

func (h *Handler) ExportInvoice(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	data, err := h.billing.Export(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, data)
}

type contestRequest struct {
	Reason  string      `json:"reason"`
	LineIDs []uuid.UUID `json:"line_ids"`
}

func (h *Handler) ContestInvoice(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req contestRequest
	if !bindJSON(c, &req) {
		return
	}
	contest, err := h.billing.Contest(c.Request.Context(), actor(c), id, service.ContestCommand{
		Reason:  req.Reason,
		LineIDs: req.LineIDs,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondCreated(c, contest)
}

func (h *Handler) ListContests(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	contests, err := h.billing.ListContests(c.Request.Context(), actor(c), id)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if contests == nil {
		contests = []*billing.Contest{}
	}
	respondOK(c, contests)
}

type resolveContestRequest struct {
	Decision billing.Decision `json:"decision" binding:"required"`
}

func (h *Handler) ResolveContest(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req resolveContestRequest
	if !bindJSON(c, &req) {
		return
	}
	contest, err := h.billing.ResolveContest(c.Request.Context(), actor(c), id, req.Decision)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, contest)
}

type cronRequest struct {
	Token string `json:"token"`
}

// CronGenerate runs monthly generation for an external scheduler. It carries
// no user session; the shared secret comes from X-Cron-Token or the body.
func (h *Handler) CronGenerate(c *gin.Context) {
	token := c.GetHeader("X-Cron-Token")
	if token == "" {
		var req cronRequest
		if c.Request.ContentLength > 0 {
			_ = c.ShouldBindJSON(&req)
		}
		token = req.Token
	}
	token = strings.TrimSpace(token)
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		h.log.Warn("cron trigger rejected", zap.String("client_ip", c.ClientIP()))
		respondError(c, http.StatusUnauthorized, "invalid cron token")
		return
	}

	result, err := h.billing.GenerateMonthly(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	respondOK(c, result)
}
