package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestContentHash(t *testing.T) {
	date := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	base := ContentHash(date, "SHELL FUEL", decimal.RequireFromString("-45.00"))

	tests := []struct {
		name        string
		date        time.Time
		description string
		amount      string
		same        bool
	}{
		{"identical", date, "SHELL FUEL", "-45.00", true},
		{"whitespace and case", date, "  shell   fuel ", "-45", true},
		{"different amount", date, "SHELL FUEL", "-45.01", false},
		{"different date", date.AddDate(0, 0, 1), "SHELL FUEL", "-45.00", false},
		{"different description", date, "SHELL COLES EXPRESS", "-45.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContentHash(tt.date, tt.description, decimal.RequireFromString(tt.amount))
			if (got == base) != tt.same {
				t.Errorf("ContentHash() equal = %v, want %v", got == base, tt.same)
			}
		})
	}
}

func TestDraftTransactionContentHash(t *testing.T) {
	d := DraftTransaction{
		Date:        time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		Description: "WOOLWORTHS",
		Amount:      decimal.RequireFromString("-120.00"),
	}
	if d.ContentHash() != ContentHash(d.Date, d.Description, d.Amount) {
		t.Error("Expected draft hash to match ContentHash")
	}
	if len(d.ContentHash()) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(d.ContentHash()))
	}
}

func TestAccountType(t *testing.T) {
	tests := map[DocumentKind]string{
		KindCardStatementA: "CREDIT_CARD",
		KindCardStatementB: "CREDIT_CARD",
		KindPayslip:        "PAYROLL",
		KindUnknown:        "UNKNOWN",
	}
	for kind, want := range tests {
		if got := kind.AccountType(); got != want {
			t.Errorf("%s.AccountType() = %q, want %q", kind, got, want)
		}
	}
}

func TestMonthOf(t *testing.T) {
	if got := MonthOf(time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)); got != "2024-12" {
		t.Errorf("MonthOf() = %q, want 2024-12", got)
	}
}
