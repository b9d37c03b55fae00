package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/catalog"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

type BillingRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]billing.Invoice
	lines    map[uuid.UUID][]billing.InvoiceLine
	contests map[uuid.UUID]billing.Contest
}

func NewBillingRepo() *BillingRepo {
	return &BillingRepo{
		invoices: make(map[uuid.UUID]billing.Invoice),
		lines:    make(map[uuid.UUID][]billing.InvoiceLine),
		contests: make(map[uuid.UUID]billing.Contest),
	}
}

func (r *BillingRepo) CreateInvoice(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv.PredecessorID != nil {
		for _, existing := range r.invoices {
			if existing.PredecessorID != nil && *existing.PredecessorID == *inv.PredecessorID {
				return billing.ErrSuccessorExists
			}
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	r.storeLines(inv.ID, inv.Lines)
	stored := *inv
	stored.Lines = nil
	r.invoices[inv.ID] = stored
	return nil
}

func (r *BillingRepo) storeLines(invoiceID uuid.UUID, lines []*billing.InvoiceLine) {
	stored := make([]billing.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.InvoiceID = invoiceID
		stored = append(stored, *l)
	}
	r.lines[invoiceID] = stored
}

func (r *BillingRepo) GetInvoice(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	for _, l := range r.lines[id] {
		inv.Lines = append(inv.Lines, &l)
	}
	sort.SliceStable(inv.Lines, func(i, j int) bool {
		if !inv.Lines[i].Date.Equal(inv.Lines[j].Date) {
			return inv.Lines[i].Date.Before(inv.Lines[j].Date)
		}
		return inv.Lines[i].StartTime < inv.Lines[j].StartTime
	})
	return &inv, nil
}

func (r *BillingRepo) UpdateInvoice(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return billing.ErrInvoiceNotFound
	}
	stored.Status = inv.Status
	stored.Amount = inv.Amount
	stored.NewInvoiceCreatedAfterContest = inv.NewInvoiceCreatedAfterContest
	r.invoices[inv.ID] = stored
	return nil
}

func (r *BillingRepo) ReplaceLines(_ context.Context, invoiceID uuid.UUID, lines []*billing.InvoiceLine, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.invoices[invoiceID]
	if !ok {
		return billing.ErrInvoiceNotFound
	}
	r.storeLines(invoiceID, lines)
	stored.Amount = amount
	r.invoices[invoiceID] = stored
	return nil
}

func (r *BillingRepo) ListInvoices(_ context.Context, q *billing.ListQuery) ([]*billing.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Invoice
	for _, inv := range r.invoices {
		if q.PatientID != nil && inv.PatientID != *q.PatientID {
			continue
		}
		if q.PatientIDs != nil && !slices.Contains(q.PatientIDs, inv.PatientID) {
			continue
		}
		if q.Status != nil && inv.Status != *q.Status {
			continue
		}
		out = append(out, &inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, int64(len(out)), nil
}

func (r *BillingRepo) HasOpenInvoice(_ context.Context, patientID uuid.UUID, start, end time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start, end = schedule.DateOnly(start), schedule.DateOnly(end)
	for _, inv := range r.invoices {
		if inv.PatientID == patientID && inv.PeriodStart.Equal(start) && inv.PeriodEnd.Equal(end) && inv.Status != billing.InvoiceCancelled {
			return true, nil
		}
	}
	return false, nil
}

// InvoiceCount returns the number of stored invoices.
func (r *BillingRepo) InvoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invoices)
}

func (r *BillingRepo) CreateContest(_ context.Context, c *billing.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.contests {
		if existing.InvoiceID == c.InvoiceID && existing.Status.IsActive() {
			return billing.ErrActiveContestExists
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	r.contests[c.ID] = *c
	return nil
}

func (r *BillingRepo) GetContest(_ context.Context, id uuid.UUID) (*billing.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return nil, billing.ErrContestNotFound
	}
	return &c, nil
}

func (r *BillingRepo) GetActiveContest(_ context.Context, invoiceID uuid.UUID) (*billing.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contests {
		if c.InvoiceID == invoiceID && c.Status.IsActive() {
			return &c, nil
		}
	}
	return nil, billing.ErrContestNotFound
}

func (r *BillingRepo) UpdateContest(_ context.Context, c *billing.Contest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contests[c.ID]; !ok {
		return billing.ErrContestNotFound
	}
	r.contests[c.ID] = *c
	return nil
}

func (r *BillingRepo) ListContests(_ context.Context, invoiceID uuid.UUID) ([]*billing.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Contest
	for _, c := range r.contests {
		if c.InvoiceID == invoiceID {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type CatalogRepo struct {
	mu        sync.Mutex
	services  map[uuid.UUID]catalog.Service
	overrides map[uuid.UUID]catalog.PatientServicePrice
}

func NewCatalogRepo() *CatalogRepo {
	return &CatalogRepo{
		services:  make(map[uuid.UUID]catalog.Service),
		overrides: make(map[uuid.UUID]catalog.PatientServicePrice),
	}
}

func (r *CatalogRepo) CreateService(_ context.Context, s *catalog.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.services[s.ID] = *s
	return nil
}

func (r *CatalogRepo) GetService(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	return &s, nil
}

func (r *CatalogRepo) ListServices(_ context.Context) ([]*catalog.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*catalog.Service
	for _, s := range r.services {
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CatalogRepo) CreateOverride(_ context.Context, o *catalog.PatientServicePrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.overrides {
		if existing.PatientID == o.PatientID && existing.ServiceID == o.ServiceID {
			return catalog.ErrOverrideExists
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	r.overrides[o.ID] = *o
	return nil
}

func (r *CatalogRepo) GetOverride(_ context.Context, patientID, serviceID uuid.UUID) (*catalog.PatientServicePrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.overrides {
		if o.PatientID == patientID && o.ServiceID == serviceID {
			return &o, nil
		}
	}
	return nil, catalog.ErrOverrideNotFound
}

func (r *CatalogRepo) ListOverrides(_ context.Context, patientID uuid.UUID) ([]*catalog.PatientServicePrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*catalog.PatientServicePrice
	for _, o := range r.overrides {
		if o.PatientID == patientID {
			out = append(out, &o)
		}
	}
	return out, nil
}

func (r *CatalogRepo) DeleteOverride(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[id]; !ok {
		return catalog.ErrOverrideNotFound
	}
	delete(r.overrides, id)
	return nil
}
