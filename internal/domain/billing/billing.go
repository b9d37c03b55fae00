package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type InvoiceStatus string

const (
	InvoiceInProgress InvoiceStatus = "In Progress"
	InvoicePaid       InvoiceStatus = "Paid"
	InvoiceCancelled  InvoiceStatus = "Cancelled"
	InvoiceContested  InvoiceStatus = "Contested"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceInProgress, InvoicePaid, InvoiceCancelled, InvoiceContested:
		return true
	}
	return false
}

type ContestStatus string

const (
	ContestInProgress ContestStatus = "In Progress"
	ContestCancelled  ContestStatus = "Cancelled"
	ContestAccepted   ContestStatus = "Accepted"
)

// IsActive reports whether the contest still counts against the one-per-invoice rule.
func (s ContestStatus) IsActive() bool {
	return s == ContestInProgress || s == ContestAccepted
}

type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

func (d Decision) IsValid() bool {
	return d == DecisionAccepted || d == DecisionRejected
}

type PriceSource string

const (
	SourceOverride       PriceSource = "override"
	SourceServiceDefault PriceSource = "service_default"
	SourceZero           PriceSource = "zero"
)

type Invoice struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	PatientID   uuid.UUID       `gorm:"column:patient_id;type:uuid;not null;index:idx_invoice_patient_period" json:"patient_id"`
	PeriodStart time.Time       `gorm:"column:period_start;type:date;not null;index:idx_invoice_patient_period" json:"period_start"`
	PeriodEnd   time.Time       `gorm:"column:period_end;type:date;not null;index:idx_invoice_patient_period" json:"period_end"`
	Status      InvoiceStatus   `gorm:"column:status;type:varchar(20);not null;default:'In Progress';index" json:"status"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null;default:0" json:"amount"`

	NewInvoiceCreatedAfterContest bool `gorm:"column:new_invoice_created_after_contest;default:false" json:"new_invoice_created_after_contest"`
	// PredecessorID points a successor invoice back at the cancelled one it replaces.
	PredecessorID *uuid.UUID `gorm:"column:predecessor_id;type:uuid;uniqueIndex" json:"predecessor_id,omitempty"`

	Lines []*InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// Total sums the line prices.
func (i *Invoice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range i.Lines {
		total = total.Add(l.Price)
	}
	return total.Round(2)
}

func (i *Invoice) LineByID(id uuid.UUID) *InvoiceLine {
	for _, l := range i.Lines {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Contest moves an In Progress invoice to Contested.
func (i *Invoice) Contest() error {
	if i.Status != InvoiceInProgress {
		return ErrInvoiceNotContestable
	}
	i.Status = InvoiceContested
	return nil
}

// CanCreateSuccessor checks the invoice side of the successor rule; the caller
// must also hold an accepted contest.
func (i *Invoice) CanCreateSuccessor() error {
	if i.Status != InvoiceCancelled {
		return ErrInvoiceNotCancelled
	}
	if i.NewInvoiceCreatedAfterContest {
		return ErrSuccessorExists
	}
	return nil
}

type InvoiceLine struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	InvoiceID   uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null;index" json:"invoice_id"`
	TimeslotID  uuid.UUID       `gorm:"column:timeslot_id;type:uuid;not null;index" json:"timeslot_id"`
	ServiceID   uuid.UUID       `gorm:"column:service_id;type:uuid;not null" json:"service_id"`
	ServiceName string          `gorm:"column:service_name;type:varchar(255)" json:"service_name"`
	ProviderID  uuid.UUID       `gorm:"column:provider_id;type:uuid;not null" json:"provider_id"`
	Date        time.Time       `gorm:"column:date;type:date;not null" json:"date"`
	StartTime   schedule.Clock  `gorm:"column:start_time;type:time;not null" json:"start_time"`
	EndTime     schedule.Clock  `gorm:"column:end_time;type:time;not null" json:"end_time"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	PriceSource PriceSource     `gorm:"column:price_source;type:varchar(20)" json:"price_source"`
	Status      schedule.Status `gorm:"column:status;type:varchar(20)" json:"status"`
}

func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// LineKey is the comparable part of a line used to check regeneration stability.
type LineKey struct {
	Date       string
	Start      schedule.Clock
	End        schedule.Clock
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	Price      string
}

func (l *InvoiceLine) Key() LineKey {
	return LineKey{
		Date:       l.Date.Format(schedule.DateFormat),
		Start:      l.StartTime,
		End:        l.EndTime,
		ProviderID: l.ProviderID,
		ServiceID:  l.ServiceID,
		Price:      l.Price.StringFixed(2),
	}
}

type Contest struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	InvoiceID uuid.UUID     `gorm:"column:invoice_id;type:uuid;not null;index" json:"invoice_id"`
	CreatedBy uuid.UUID     `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	Reason    string        `gorm:"column:reason;type:text;not null" json:"reason"`
	Status    ContestStatus `gorm:"column:status;type:varchar(20);not null;default:'In Progress';index" json:"status"`
	LineIDs   []uuid.UUID   `gorm:"column:line_ids;serializer:json" json:"line_ids,omitempty"`
	TicketID  *uuid.UUID    `gorm:"column:ticket_id;type:uuid" json:"ticket_id,omitempty"`

	ResolvedBy *uuid.UUID `gorm:"column:resolved_by;type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
}

func (Contest) TableName() string {
	return "invoice_contests"
}

// Resolve applies an administrator decision to the contest and its invoice.
func (c *Contest) Resolve(inv *Invoice, d Decision, by uuid.UUID, at time.Time) error {
	if !d.IsValid() {
		return ErrInvalidDecision
	}
	if c.Status != ContestInProgress {
		return ErrContestNotPending
	}
	switch d {
	case DecisionAccepted:
		c.Status = ContestAccepted
		inv.Status = InvoiceCancelled
	case DecisionRejected:
		c.Status = ContestCancelled
		inv.Status = InvoiceInProgress
	}
	c.ResolvedBy = &by
	c.ResolvedAt = &at
	return nil
}

type ListQuery struct {
	PatientID  *uuid.UUID
	PatientIDs []uuid.UUID
	Status     *InvoiceStatus
	Page       int
	PageSize   int
}

// PreviousMonth returns the first and last day of the calendar month before now.
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := firstOfThis.AddDate(0, -1, 0)
	return start, firstOfThis.AddDate(0, 0, -1)
}
