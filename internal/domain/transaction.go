package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO form every extractor normalizes dates to.
const DateLayout = "2006-01-02"

// MonthLayout is the key format of monthly summaries.
const MonthLayout = "2006-01"

// DocumentKind is derived from the file name and never changes afterwards.
type DocumentKind string

const (
	KindCardStatementA DocumentKind = "CARD_STATEMENT_A"
	KindCardStatementB DocumentKind = "CARD_STATEMENT_B"
	KindPayslip        DocumentKind = "PAYSLIP"
	KindUnknown        DocumentKind = "UNKNOWN"
)

// AccountType records which kind of account a transaction was booked on.
func (k DocumentKind) AccountType() string {
	switch k {
	case KindCardStatementA, KindCardStatementB:
		return "CREDIT_CARD"
	case KindPayslip:
		return "PAYROLL"
	default:
		return "UNKNOWN"
	}
}

// RawDocument is produced once per ingestion attempt.
type RawDocument struct {
	FilePath string
	FileName string
	ByteSize int64
	Text     string
}

// DraftTransaction is an extracted, not yet persisted transaction.
// Expenses are negative, credits positive.
type DraftTransaction struct {
	Date            time.Time
	Description     string
	Amount          decimal.Decimal
	RawCategoryHint string
}

// ContentHash returns the duplicate-detection fingerprint of the draft.
func (d DraftTransaction) ContentHash() string {
	return ContentHash(d.Date, d.Description, d.Amount)
}

// DraftIncome is the payslip counterpart of DraftTransaction.
type DraftIncome struct {
	PayDate         time.Time
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
	GrossPay        decimal.Decimal
	NetPay          decimal.Decimal
	Tax             decimal.Decimal
	Superannuation  decimal.Decimal
	OtherDeductions decimal.Decimal
}

// Transaction is a persisted ledger row.
type Transaction struct {
	ID             string
	Date           time.Time
	Description    string
	Amount         decimal.Decimal
	Category       string
	AccountType    string
	SourceFileName string
	ContentHash    string
}

// IsExpense reports whether the transaction moved money out.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IncomeRecord is a persisted payslip.
type IncomeRecord struct {
	ID              string
	PayDate         time.Time
	GrossPay        decimal.Decimal
	NetPay          decimal.Decimal
	Tax             decimal.Decimal
	Superannuation  decimal.Decimal
	OtherDeductions decimal.Decimal
	SourceFileName  string
}

// CategoryRule matches Pattern as a case-insensitive substring of a description.
type CategoryRule struct {
	ID       int64
	Pattern  string
	Category string
	Priority int
	Enabled  bool
}

// CategoryOverride is a manual recategorization anchored on a content hash.
type CategoryOverride struct {
	ContentHash string
	Category    string
	CreatedAt   time.Time
}

// ProcessedFileRecord marks a file as absorbed into the ledger.
type ProcessedFileRecord struct {
	FileName    string
	FileType    DocumentKind
	ProcessedAt time.Time
}

// MonthlySummary is fully derived from transactions and income.
type MonthlySummary struct {
	Month            string
	TotalIncome      decimal.Decimal
	TotalExpenses    decimal.Decimal
	Savings          decimal.Decimal
	TransactionCount int
}

// NormalizeDescription upper-cases and collapses whitespace.
func NormalizeDescription(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ContentHash fingerprints (date, description, amount). The source file name
// is not part of the hash.
func ContentHash(date time.Time, description string, amount decimal.Decimal) string {
	parts := []string{
		date.Format(DateLayout),
		NormalizeDescription(description),
		amount.StringFixed(2),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// MonthOf returns the YYYY-MM key for t.
func MonthOf(t time.Time) string {
	return t.Format(MonthLayout)
}

// CategoryChange is one category rewrite of a persisted transaction.
type CategoryChange struct {
	TransactionID string
	OldCategory   string
	NewCategory   string
}
