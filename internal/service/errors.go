package service

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func invalid(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ConflictError rejects an unforced scheduling write. Data echoes the request so
// the client can resubmit it with force_schedule.
type ConflictError struct {
	Report *schedule.Report
	Data   any
	// Rejected lists the dates of a recurring series that all conflicted.
	Rejected []string
}

func (e *ConflictError) Error() string {
	return "scheduling conflict (" + string(e.Report.Severity) + ")"
}

// LockoutError reports a soft-locked or hard-blocked account.
type LockoutError struct {
	Hard        bool
	LockedUntil *time.Time
	Minutes     int
	Warning     string
}

func (e *LockoutError) Error() string {
	if e.Hard {
		return "Your account is blocked, contact administrator."
	}
	return "Account temporarily locked due to multiple failed login attempts."
}

// CredentialsError is a failed password check on an existing account that is not
// yet locked. It matches ErrInvalidCredentials.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

type AuditEntry struct {
	UserID       *uuid.UUID
	UserRole     domain.Role
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	IPAddress    string
	RequestID    string
	Path         string
	StatusCode   int
	Changes      map[string]any
}

// publicMessage returns err's text when it is a business rule failure and a
// fixed message otherwise, so batch results never leak internal errors.
func publicMessage(err error) string {
	var (
		validation *ValidationError
		conflict   *ConflictError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &conflict):
		return err.Error()
	case errors.Is(err, ErrForbidden),
		errors.Is(err, schedule.ErrScheduleNotFound),
		errors.Is(err, schedule.ErrTimeslotNotFound),
		errors.Is(err, schedule.ErrTimeslotNotInSchedule),
		errors.Is(err, schedule.ErrInvalidStrategy):
		return err.Error()
	}
	return "internal server error"
}
