package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	// CreateInvoice inserts the invoice together with its lines.
	CreateInvoice(ctx context.Context, inv *Invoice) error

	// GetInvoice preloads lines ordered by date and start time.
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error

	// ReplaceLines deletes the invoice's lines, inserts lines and stores amount.
	ReplaceLines(ctx context.Context, invoiceID uuid.UUID, lines []*InvoiceLine, amount decimal.Decimal) error

	ListInvoices(ctx context.Context, q *ListQuery) ([]*Invoice, int64, error)

	// HasOpenInvoice reports a non-cancelled invoice for exactly this patient and period.
	HasOpenInvoice(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error)

	CreateContest(ctx context.Context, c *Contest) error
	GetContest(ctx context.Context, id uuid.UUID) (*Contest, error)

	// GetActiveContest returns the In Progress or Accepted contest, or ErrContestNotFound.
	GetActiveContest(ctx context.Context, invoiceID uuid.UUID) (*Contest, error)
	UpdateContest(ctx context.Context, c *Contest) error
	ListContests(ctx context.Context, invoiceID uuid.UUID) ([]*Contest, error)
}
