package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
)

type MonthlySummaryRow struct {
	Month civil.Date `bigquery:"month"` // REQUIRED, first day of the month

	TotalIncome   *big.Rat `bigquery:"total_income"`   // REQUIRED NUMERIC
	TotalExpenses *big.Rat `bigquery:"total_expenses"` // REQUIRED NUMERIC
	Savings       *big.Rat `bigquery:"savings"`        // REQUIRED NUMERIC

	TransactionCount int64 `bigquery:"transaction_count"` // REQUIRED

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// ToSummaryRows converts ledger summaries into export rows.
func ToSummaryRows(summaries []domain.MonthlySummary, exported time.Time) ([]*MonthlySummaryRow, error) {
	rows := make([]*MonthlySummaryRow, 0, len(summaries))
	for _, s := range summaries {
		month, err := time.Parse(domain.MonthLayout, s.Month)
		if err != nil {
			return nil, fmt.Errorf("ToSummaryRows: month %q: %w", s.Month, err)
		}
		rows = append(rows, &MonthlySummaryRow{
			Month:            civil.DateOf(month),
			TotalIncome:      s.TotalIncome.Rat(),
			TotalExpenses:    s.TotalExpenses.Rat(),
			Savings:          s.Savings.Rat(),
			TransactionCount: int64(s.TransactionCount),
			ExportedTS:       exported,
		})
	}
	return rows, nil
}
