package dashboard

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ledgerSheet is the name of the single sheet the export writes
const ledgerSheet = "Audit Ledger"

var ledgerHeaders = []string{
	"Request ID", "Date", "Member", "Form Type", "Amount (GBP)",
	"Description", "Budget Line", "Status", "Treasurer",
	"Recorded At", "Notes",
}

// Exporter writes the audit ledger as a spreadsheet for the club's
// year-end handover pack
type Exporter struct {
	source RequestSource
	logger *zap.Logger
}

// NewExporter creates the ledger exporter
func NewExporter(source RequestSource, logger *zap.Logger) *Exporter {
	return &Exporter{source: source, logger: logger}
}

// WriteLedger writes the full audit ledger as an xlsx workbook to w
func (e *Exporter) WriteLedger(ctx context.Context, w io.Writer) error {
	records, err := e.source.AuditRecords(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(ledgerSheet)
	if err != nil {
		return fmt.Errorf("create ledger sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for col, header := range ledgerHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(ledgerSheet, cell, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(ledgerHeaders), 1)
	if err := f.SetCellStyle(ledgerSheet, "A1", endHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, record := range records {
		row := i + 2
		amount, _ := record.Amount.Float64()
		values := []any{
			record.RequestID,
			record.Date,
			record.MemberName,
			record.FormType.DisplayName(),
			amount,
			record.Description,
			record.BudgetLine,
			string(record.Status),
			record.Actor,
			record.RecordedAt.Format("2006-01-02 15:04:05"),
			record.Notes,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(ledgerSheet, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.SetColWidth(ledgerSheet, "A", "A", 26); err != nil {
		return err
	}
	if err := f.SetColWidth(ledgerSheet, "F", "F", 40); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	e.logger.Info("Exported audit ledger", zap.Int("rows", len(records)))
	return nil
}
