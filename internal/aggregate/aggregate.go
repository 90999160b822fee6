package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/shopspring/decimal"
)

// Aggregate folds transactions and income into per-month summaries sorted by
// month. The same inputs always give the same output.
func Aggregate(transactions []domain.Transaction, income []domain.IncomeRecord) []domain.MonthlySummary {
	months := make(map[string]*domain.MonthlySummary)
	get := func(month string) *domain.MonthlySummary {
		s, ok := months[month]
		if !ok {
			s = &domain.MonthlySummary{Month: month, TotalIncome: decimal.Zero, TotalExpenses: decimal.Zero}
			months[month] = s
		}
		return s
	}

	for _, tx := range transactions {
		s := get(domain.MonthOf(tx.Date))
		s.TransactionCount++
		if tx.IsExpense() {
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount.Abs())
		}
	}

	for _, inc := range income {
		s := get(domain.MonthOf(inc.PayDate))
		s.TotalIncome = s.TotalIncome.Add(incomeAmount(inc))
	}

	out := make([]domain.MonthlySummary, 0, len(months))
	for _, s := range months {
		s.TotalIncome = s.TotalIncome.Round(2)
		s.TotalExpenses = s.TotalExpenses.Round(2)
		s.Savings = s.TotalIncome.Sub(s.TotalExpenses)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// incomeAmount is net pay, or gross pay when the payslip had no net line.
func incomeAmount(inc domain.IncomeRecord) decimal.Decimal {
	if inc.NetPay.IsZero() {
		return inc.GrossPay
	}
	return inc.NetPay
}

// Ledger is the read side needed to aggregate.
type Ledger interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	ListIncome(ctx context.Context) ([]domain.IncomeRecord, error)
}

// SummaryWriter persists summaries.
type SummaryWriter interface {
	ReplaceMonthlySummaries(ctx context.Context, summaries []domain.MonthlySummary) error
}

// Aggregator rebuilds the stored monthly summaries from the ledger.
type Aggregator struct {
	ledger Ledger
	writer SummaryWriter
}

// NewAggregator creates an Aggregator.
func NewAggregator(ledger Ledger, writer SummaryWriter) *Aggregator {
	return &Aggregator{ledger: ledger, writer: writer}
}

// Regenerate recomputes every month and replaces the stored summaries.
func (a *Aggregator) Regenerate(ctx context.Context) ([]domain.MonthlySummary, error) {
	log := logger.FromContext(ctx)

	txs, err := a.ledger.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Regenerate: list transactions: %w", err)
	}
	income, err := a.ledger.ListIncome(ctx)
	if err != nil {
		return nil, fmt.Errorf("Regenerate: list income: %w", err)
	}

	summaries := Aggregate(txs, income)
	if err := a.writer.ReplaceMonthlySummaries(ctx, summaries); err != nil {
		return nil, fmt.Errorf("Regenerate: replace summaries: %w", err)
	}

	log.Info().
		Int("months", len(summaries)).
		Int("transactions", len(txs)).
		Int("income_records", len(income)).
		Msg("Monthly summaries regenerated")

	return summaries, nil
}
