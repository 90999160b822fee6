// Package export writes ledger data to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet     = "Monthly Summaries"
	TransactionSheet = "Transactions"
)

var (
	summaryHeader     = []interface{}{"Month", "Income", "Expenses", "Savings", "Transactions"}
	transactionHeader = []interface{}{"Date", "Description", "Amount", "Category", "Account", "Source File"}
)

// Workbook builds a workbook with one sheet of monthly summaries and one of
// transactions.
func Workbook(summaries []domain.MonthlySummary, txs []domain.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("Workbook: %w", err)
	}
	if _, err := f.NewSheet(TransactionSheet); err != nil {
		return nil, fmt.Errorf("Workbook: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("Workbook: money style: %w", err)
	}

	summaryRows := make([][]interface{}, 0, len(summaries))
	for _, s := range summaries {
		summaryRows = append(summaryRows, []interface{}{
			s.Month,
			s.TotalIncome.InexactFloat64(),
			s.TotalExpenses.InexactFloat64(),
			s.Savings.InexactFloat64(),
			s.TransactionCount,
		})
	}
	if err := writeSheet(f, SummarySheet, summaryHeader, summaryRows, money, "B", "D"); err != nil {
		return nil, fmt.Errorf("Workbook: %w", err)
	}

	txRows := make([][]interface{}, 0, len(txs))
	for _, tx := range txs {
		txRows = append(txRows, []interface{}{
			tx.Date.Format(domain.DateLayout),
			tx.Description,
			tx.Amount.InexactFloat64(),
			tx.Category,
			tx.AccountType,
			tx.SourceFileName,
		})
	}
	if err := writeSheet(f, TransactionSheet, transactionHeader, txRows, money, "C", "C"); err != nil {
		return nil, fmt.Errorf("Workbook: %w", err)
	}

	return f, nil
}

func writeSheet(f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, style int, fromCol, toCol string) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	if len(rows) > 0 {
		last := len(rows) + 1
		if err := f.SetCellStyle(sheet, fmt.Sprintf("%s2", fromCol), fmt.Sprintf("%s%d", toCol, last), style); err != nil {
			return fmt.Errorf("%s style: %w", sheet, err)
		}
	}
	return nil
}

// WriteXLSX writes the workbook to w.
func WriteXLSX(w io.Writer, summaries []domain.MonthlySummary, txs []domain.Transaction) error {
	f, err := Workbook(summaries, txs)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

// SaveXLSX writes the workbook to path.
func SaveXLSX(path string, summaries []domain.MonthlySummary, txs []domain.Transaction) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("SaveXLSX: %w", err)
	}
	if err := WriteXLSX(out, summaries, txs); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
