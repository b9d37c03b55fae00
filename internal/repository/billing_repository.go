package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
)

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

func (r *BillingRepository) CreateInvoice(ctx context.Context, inv *billing.Invoice) error {
	if err := conn(ctx, r.db).Create(inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return billing.ErrSuccessorExists
		}
		return fmt.Errorf("creating invoice: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var inv billing.Invoice
	err := conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("date, start_time") }).
		Where("id = ?", id).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting invoice: %w", err)
	}
	return &inv, nil
}

func (r *BillingRepository) UpdateInvoice(ctx context.Context, inv *billing.Invoice) error {
	err := conn(ctx, r.db).Model(&billing.Invoice{}).Where("id = ?", inv.ID).Updates(map[string]any{
		"status":                            inv.Status,
		"amount":                            inv.Amount,
		"new_invoice_created_after_contest": inv.NewInvoiceCreatedAfterContest,
	}).Error
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}
	return nil
}

func (r *BillingRepository) ReplaceLines(ctx context.Context, invoiceID uuid.UUID, lines []*billing.InvoiceLine, amount decimal.Decimal) error {
	db := conn(ctx, r.db)
	if err := db.Where("invoice_id = ?", invoiceID).Delete(&billing.InvoiceLine{}).Error; err != nil {
		return fmt.Errorf("clearing invoice lines: %w", err)
	}
	if len(lines) > 0 {
		for _, l := range lines {
			l.InvoiceID = invoiceID
		}
		if err := db.CreateInBatches(lines, 200).Error; err != nil {
			return fmt.Errorf("inserting invoice lines: %w", err)
		}
	}
	if err := db.Model(&billing.Invoice{}).Where("id = ?", invoiceID).Update("amount", amount).Error; err != nil {
		return fmt.Errorf("updating invoice amount: %w", err)
	}
	return nil
}

func (r *BillingRepository) ListInvoices(ctx context.Context, q *billing.ListQuery) ([]*billing.Invoice, int64, error) {
	query := conn(ctx, r.db).Model(&billing.Invoice{})
	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.PatientIDs != nil {
		query = query.Where("patient_id IN ?", q.PatientIDs)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting invoices: %w", err)
	}

	offset, limit := paginate(q.Page, q.PageSize)
	var out []*billing.Invoice
	err := query.Order("period_start DESC, created_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing invoices: %w", err)
	}
	return out, total, nil
}

func (r *BillingRepository) HasOpenInvoice(ctx context.Context, patientID uuid.UUID, start, end time.Time) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&billing.Invoice{}).
		Where("patient_id = ? AND period_start = ? AND period_end = ? AND status <> ?",
			patientID, start, end, billing.InvoiceCancelled).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking open invoice: %w", err)
	}
	return n > 0, nil
}

func (r *BillingRepository) CreateContest(ctx context.Context, c *billing.Contest) error {
	if err := conn(ctx, r.db).Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return billing.ErrActiveContestExists
		}
		return fmt.Errorf("creating contest: %w", err)
	}
	return nil
}

func (r *BillingRepository) GetContest(ctx context.Context, id uuid.UUID) (*billing.Contest, error) {
	var c billing.Contest
	err := conn(ctx, r.db).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrContestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting contest: %w", err)
	}
	return &c, nil
}

func (r *BillingRepository) GetActiveContest(ctx context.Context, invoiceID uuid.UUID) (*billing.Contest, error) {
	var c billing.Contest
	err := conn(ctx, r.db).
		Where("invoice_id = ? AND status IN ?", invoiceID, []billing.ContestStatus{billing.ContestInProgress, billing.ContestAccepted}).
		Order("created_at DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrContestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting active contest: %w", err)
	}
	return &c, nil
}

func (r *BillingRepository) UpdateContest(ctx context.Context, c *billing.Contest) error {
	if err := conn(ctx, r.db).Save(c).Error; err != nil {
		return fmt.Errorf("updating contest: %w", err)
	}
	return nil
}

func (r *BillingRepository) ListContests(ctx context.Context, invoiceID uuid.UUID) ([]*billing.Contest, error) {
	var out []*billing.Contest
	if err := conn(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing contests: %w", err)
	}
	return out, nil
}
