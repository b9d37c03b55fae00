package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/demand"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/provider"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/ticket"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/service"
	"github.com/dmehra2102/prod-golang-projects/carelink/pkg/logger"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type PagedResponse[T any] struct {
	Data     []T   `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

type ConflictResponse struct {
	Error                string              `json:"error"`
	ConflictDetails      *schedule.Report    `json:"conflict_details"`
	HasConflicts         bool                `json:"has_conflicts"`
	Conflicts            []schedule.Conflict `json:"conflicts"`
	Severity             schedule.Severity   `json:"severity"`
	SchedulingData       any                 `json:"scheduling_data,omitempty"`
	RejectedDates        []string            `json:"rejected_dates,omitempty"`
	RequiresConfirmation bool                `json:"requires_confirmation"`
}

type LockoutInfo struct {
	MinutesRemaining int        `json:"minutes_remaining"`
	LockedUntil      *time.Time `json:"locked_until"`
	HardBlocked      bool       `json:"hard_blocked"`
}

type LockoutResponse struct {
	Error       string      `json:"error"`
	Warning     string      `json:"warning,omitempty"`
	LockoutInfo LockoutInfo `json:"lockout_info"`
}

type CredentialsResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondPaged[T any](c *gin.Context, items []T, total int64, page, pageSize int) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, PagedResponse[T]{Data: items, Total: total, Page: page, PageSize: pageSize})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

var notFoundErrors = []error{
	domain.ErrUserNotFound,
	patient.ErrPatientNotFound,
	provider.ErrProviderNotFound,
	catalog.ErrServiceNotFound,
	catalog.ErrOverrideNotFound,
	schedule.ErrScheduleNotFound,
	schedule.ErrTimeslotNotFound,
	billing.ErrInvoiceNotFound,
	billing.ErrContestNotFound,
	prescription.ErrPrescriptionNotFound,
	demand.ErrDemandNotFound,
	ticket.ErrTicketNotFound,
	notification.ErrNotificationNotFound,
}

// badRequestErrors are business rule and integrity failures.
var badRequestErrors = []error{
	domain.ErrUserAlreadyExists,
	domain.ErrInvalidRole,
	patient.ErrPatientAlreadyExists,
	patient.ErrFamilyLinkExists,
	catalog.ErrOverrideExists,
	catalog.ErrNegativePrice,
	catalog.ErrFamilyHelpPriceRange,
	catalog.ErrInvalidPriceType,
	schedule.ErrTimeslotNotInSchedule,
	schedule.ErrInvalidStatusTransition,
	schedule.ErrNoShowNotYetAllowed,
	schedule.ErrInvalidStatus,
	schedule.ErrInvalidTimeRange,
	schedule.ErrInvalidTimeFormat,
	schedule.ErrInvalidDateFormat,
	schedule.ErrInvalidStrategy,
	schedule.ErrTooManySchedules,
	schedule.ErrNoDates,
	billing.ErrInvoiceNotContestable,
	billing.ErrActiveContestExists,
	billing.ErrContestReasonRequired,
	billing.ErrContestNotPending,
	billing.ErrInvalidDecision,
	billing.ErrInvoiceNotCancelled,
	billing.ErrNoAcceptedContest,
	billing.ErrSuccessorExists,
	billing.ErrInvalidPeriod,
	billing.ErrUnknownLine,
	prescription.ErrInvalidStatusTransition,
	demand.ErrInvalidStatus,
	demand.ErrInvalidStatusTransition,
	demand.ErrRejectionReasonRequired,
	demand.ErrNotApproved,
	ticket.ErrInvalidStatusTransition,
	ticket.ErrInvalidTeam,
	ticket.ErrInvalidPriority,
	ticket.ErrEmptyComment,
	ticket.ErrAssigneeNotInTeam,
	notification.ErrInvalidContactMethod,
	notification.ErrInvalidWeekOffset,
	notification.ErrInvalidChannel,
	service.ErrIncorrectPassword,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondServiceError maps a service error to its status. Internal failures
// never expose their text.
func (h *Handler) respondServiceError(c *gin.Context, err error) {
	var (
		validErr    *service.ValidationError
		conflictErr *service.ConflictError
		lockErr     *service.LockoutError
		credErr     *service.CredentialsError
	)

	switch {
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})

	case errors.As(err, &conflictErr):
		report := conflictErr.Report
		c.JSON(http.StatusConflict, ConflictResponse{
			Error:                "Scheduling conflicts detected",
			ConflictDetails:      report,
			HasConflicts:         report.HasConflicts,
			Conflicts:            report.Conflicts,
			Severity:             report.Severity,
			SchedulingData:       conflictErr.Data,
			RejectedDates:        conflictErr.Rejected,
			RequiresConfirmation: true,
		})

	case errors.As(err, &lockErr):
		c.JSON(http.StatusLocked, LockoutResponse{
			Error:   lockErr.Error(),
			Warning: lockErr.Warning,
			LockoutInfo: LockoutInfo{
				MinutesRemaining: lockErr.Minutes,
				LockedUntil:      lockErr.LockedUntil,
				HardBlocked:      lockErr.Hard,
			},
		})

	case errors.As(err, &credErr):
		c.JSON(http.StatusUnauthorized, CredentialsResponse{
			Error:             credErr.Error(),
			AttemptsRemaining: credErr.AttemptsRemaining,
		})

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrEmailNotVerified),
		errors.Is(err, service.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})

	case errors.Is(err, service.ErrForbidden):
		if actor, ok := middleware.Actor(c); ok {
			h.audit.Unauthorized(c.Request.Context(), actor, c.Request.URL.Path, middleware.GetRequestID(c))
		}
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied"})

	case isAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case isAny(err, badRequestErrors):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	default:
		logger.FromContext(c.Request.Context(), h.log).Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

// withRequest attaches the decoded request to a conflict so the client can
// resubmit it with force_schedule.
func withRequest(err error, req any) error {
	var conflictErr *service.ConflictError
	if errors.As(err, &conflictErr) {
		conflictErr.Data = req
	}
	return err
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID reads a query parameter; an absent value yields nil.
func parseOptionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + key + ": must be a valid UUID"})
		return nil, false
	}
	return &id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}

// parseQueryDate reads an optional YYYY-MM-DD query parameter.
func parseQueryDate(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: key + ": " + err.Error()})
		return time.Time{}, false
	}
	return d, true
}

// actor returns the authenticated caller. Routes behind Authenticate always have one.
func actor(c *gin.Context) domain.Actor {
	a, _ := middleware.Actor(c)
	return a
}
