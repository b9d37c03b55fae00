package billing

import "errors"

var (
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrContestNotFound       = errors.New("contest not found")
	ErrInvoiceNotContestable = errors.New("only invoices in progress can be contested")
	ErrActiveContestExists   = errors.New("an active contest already exists for this invoice")
	ErrContestReasonRequired = errors.New("a reason is required to contest an invoice")
	ErrContestNotPending     = errors.New("contest has already been resolved")
	ErrInvalidDecision       = errors.New("decision must be accepted or rejected")
	ErrInvoiceNotCancelled   = errors.New("a successor invoice requires the original invoice to be cancelled")
	ErrNoAcceptedContest     = errors.New("a successor invoice requires an accepted contest")
	ErrSuccessorExists       = errors.New("a new invoice has already been created after this contest")
	ErrInvalidPeriod         = errors.New("period_start must not be after period_end")
	ErrUnknownLine           = errors.New("contested line does not belong to this invoice")
)
