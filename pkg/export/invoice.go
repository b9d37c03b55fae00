package export

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/billing"
	"github.com/dmehra2102/prod-golang-projects/carelink/internal/domain/schedule"
)

const invoiceSheet = "Invoice"

var invoiceHeader = []string{"Date", "Start", "End", "Service", "Provider", "Status", "Price (EUR)"}

// Invoice renders the invoice lines as an XLSX workbook. providerNames maps
// provider ids to display names; unknown providers fall back to their id.
func Invoice(inv *billing.Invoice, providerNames map[uuid.UUID]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(invoiceSheet)
	if err != nil {
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	summary := [][]any{
		{"Invoice", inv.ID.String()},
		{"Period", fmt.Sprintf("%s - %s", inv.PeriodStart.Format(schedule.DateFormat), inv.PeriodEnd.Format(schedule.DateFormat))},
		{"Status", string(inv.Status)},
	}
	row := 1
	for _, r := range summary {
		if err := setRow(f, row, r); err != nil {
			return nil, err
		}
		row++
	}
	row++

	headerRow := row
	if err := setRow(f, headerRow, toAny(invoiceHeader)); err != nil {
		return nil, err
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(invoiceHeader), headerRow)
	if err := f.SetCellStyle(invoiceSheet, first, last, headerStyle); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}
	row++

	for _, l := range inv.Lines {
		provider := providerNames[l.ProviderID]
		if provider == "" {
			provider = l.ProviderID.String()
		}
		service := l.ServiceName
		if service == "" {
			service = l.ServiceID.String()
		}
		price, _ := l.Price.Round(2).Float64()
		values := []any{
			l.Date.Format(schedule.DateFormat),
			l.StartTime.String(),
			l.EndTime.String(),
			service,
			provider,
			string(l.Status),
			price,
		}
		if err := setRow(f, row, values); err != nil {
			return nil, err
		}
		row++
	}

	total, _ := inv.Amount.Round(2).Float64()
	if err := setRow(f, row+1, []any{"", "", "", "", "", "Total", total}); err != nil {
		return nil, err
	}

	for col, width := range []float64{12, 8, 8, 30, 30, 12, 12} {
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(invoiceSheet, name, name, width); err != nil {
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetSheetRow(invoiceSheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
