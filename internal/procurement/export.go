package procurement

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

const (
	summarySheet = "Summary"
	overdueSheet = "Overdue"
	dateLayout   = "2006-01-02"
)

// ExportAging writes the aging summary and the overdue list as an XLSX workbook.
func (s *service) ExportAging(ctx context.Context, actor tenancy.Actor, asOf *time.Time, w io.Writer) error {
	if w == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "export writer required")
	}
	report, err := s.AgingReport(ctx, actor, asOf)
	if err != nil {
		return err
	}
	overdue, err := s.Overdue(ctx, actor, &report.AsOf)
	if err != nil {
		return err
	}

	f, err := buildAgingWorkbook(report, overdue)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build aging workbook")
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write aging workbook")
	}
	return nil
}

func buildAgingWorkbook(report *AgingReport, overdue []OverduePayable) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	summaryRows := [][]any{
		{"As of", report.AsOf.Format(dateLayout)},
		{"Bucket", "Count", "Outstanding"},
	}
	for _, bucket := range report.Buckets {
		summaryRows = append(summaryRows, []any{string(bucket.Bucket), bucket.Count, bucket.Outstanding.InexactFloat64()})
	}
	summaryRows = append(summaryRows, []any{"TOTAL", report.TotalCount, report.TotalOutstanding.InexactFloat64()})
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(overdueSheet); err != nil {
		return nil, err
	}
	overdueRows := [][]any{
		{"Supplier", "Invoice", "Due date", "Days overdue", "Bucket", "Amount", "Paid", "Outstanding"},
	}
	for _, item := range overdue {
		overdueRows = append(overdueRows, []any{
			item.Payment.SupplierName,
			item.Payment.InvoiceNumber,
			item.Payment.DueDate.Format(dateLayout),
			item.DaysOverdue,
			string(item.Bucket),
			item.Payment.Amount.InexactFloat64(),
			item.Payment.PaidAmount.InexactFloat64(),
			item.Outstanding.InexactFloat64(),
		})
	}
	if err := writeRows(f, overdueSheet, overdueRows); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(overdueSheet, "A", "A", 30); err != nil {
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
