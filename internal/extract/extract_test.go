package extract

import (
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const cardAText = `AMEX CARD STATEMENT
Account ending 1005
Date Description Amount
03/03/2024   SHELL FUEL      45.00
04/03/2024 WOOLWORTHS 1234 SYDNEY 120.00
Page 1 of 2
` + "\f" + `
10/03/2024 PAYMENT RECEIVED THANK YOU 500.00 CR
11/03/2024 this line has no amount
31/03/2024 CLOSING BALANCE 1,234.56
`

const cardBText = `WESTPAC CREDIT CARD
Statement period 01 Feb 2024 to 31 Mar 2024
28 Feb COLES 0412 SYDNEY $56.10
02 Mar 2024 PAYMENT - THANK YOU -$300.00
05 Mar NETFLIX.COM $1,016.99
07 Mar garbled ???
`

const payslipText = `ACME PTY LTD PAYSLIP
Pay date: 15/03/2024
Pay period: 01/03/2024 - 14/03/2024
Gross pay $5,000.00 $45,000.00
PAYG tax $900.00
Superannuation $475.00
Deductions: Health fund $50.00
Net pay $3,800.00
`

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCardStatementA_Extract(t *testing.T) {
	got := CardStatementA{}.Extract(cardAText)

	want := []domain.DraftTransaction{
		{Date: day(2024, 3, 3), Description: "SHELL FUEL", Amount: amount("-45.00")},
		{Date: day(2024, 3, 4), Description: "WOOLWORTHS 1234 SYDNEY", Amount: amount("-120.00")},
		{Date: day(2024, 3, 10), Description: "PAYMENT RECEIVED THANK YOU", Amount: amount("500.00")},
	}

	if got.Kind != domain.KindCardStatementA {
		t.Errorf("Kind = %s, want %s", got.Kind, domain.KindCardStatementA)
	}
	assertTransactions(t, got.Transactions, want)
	if got.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", got.SkippedLines)
	}
}

func TestCardStatementB_Extract(t *testing.T) {
	got := CardStatementB{}.Extract(cardBText)

	want := []domain.DraftTransaction{
		{Date: day(2024, 2, 28), Description: "COLES 0412 SYDNEY", Amount: amount("-56.10")},
		{Date: day(2024, 3, 2), Description: "PAYMENT - THANK YOU", Amount: amount("300.00")},
		{Date: day(2024, 3, 5), Description: "NETFLIX.COM", Amount: amount("-1016.99")},
	}

	assertTransactions(t, got.Transactions, want)
	if got.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", got.SkippedLines)
	}
}

func TestCardStatementB_YearRollover(t *testing.T) {
	text := "Statement period 15 Dec 2023 to 14 Jan 2024\n20 Dec UBER TRIP $18.40\n03 Jan UBER TRIP $22.00\n"

	got := CardStatementB{}.Extract(text)

	if len(got.Transactions) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(got.Transactions))
	}
	if !got.Transactions[0].Date.Equal(day(2023, 12, 20)) {
		t.Errorf("First date = %s, want 2023-12-20", got.Transactions[0].Date.Format(domain.DateLayout))
	}
	if !got.Transactions[1].Date.Equal(day(2024, 1, 3)) {
		t.Errorf("Second date = %s, want 2024-01-03", got.Transactions[1].Date.Format(domain.DateLayout))
	}
}

func TestCardStatementB_FourDigitDescription(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.DraftTransaction
	}{
		{
			name: "street number is not a year",
			text: "Statement period 01 Mar 2024 to 31 Mar 2024\n02 Mar 7117 GEORGE ST CAFE $5.00\n",
			want: domain.DraftTransaction{Date: day(2024, 3, 2), Description: "7117 GEORGE ST CAFE", Amount: amount("-5.00")},
		},
		{
			name: "previous year is kept",
			text: "Statement period 15 Dec 2023 to 14 Jan 2024\n20 Dec 2023 UBER TRIP $18.40\n",
			want: domain.DraftTransaction{Date: day(2023, 12, 20), Description: "UBER TRIP", Amount: amount("-18.40")},
		},
		{
			name: "year outside the period",
			text: "Statement period 01 Mar 2024 to 31 Mar 2024\n02 Mar 2019 SHOP $1.00\n",
			want: domain.DraftTransaction{Date: day(2024, 3, 2), Description: "2019 SHOP", Amount: amount("-1.00")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CardStatementB{}.Extract(tt.text)
			assertTransactions(t, got.Transactions, []domain.DraftTransaction{tt.want})
		})
	}
}

func TestCardStatementB_NoPeriodSkipsYearlessLines(t *testing.T) {
	got := CardStatementB{}.Extract("28 Feb COLES $56.10\n")

	if len(got.Transactions) != 0 {
		t.Errorf("Expected no transactions without a statement period, got %d", len(got.Transactions))
	}
	if got.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", got.SkippedLines)
	}
}

func TestPayslip_Extract(t *testing.T) {
	got := Payslip{}.Extract(payslipText)

	if got.Income == nil {
		t.Fatal("Expected an income record")
	}
	in := got.Income
	if !in.PayDate.Equal(day(2024, 3, 15)) {
		t.Errorf("PayDate = %s, want 2024-03-15", in.PayDate.Format(domain.DateLayout))
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"gross", in.GrossPay, "5000.00"},
		{"net", in.NetPay, "3800.00"},
		{"tax", in.Tax, "900.00"},
		{"super", in.Superannuation, "475.00"},
		{"deductions", in.OtherDeductions, "50.00"},
	}
	for _, c := range checks {
		if !c.got.Equal(amount(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if in.PeriodStart == nil || !in.PeriodStart.Equal(day(2024, 3, 1)) {
		t.Errorf("PeriodStart = %v, want 2024-03-01", in.PeriodStart)
	}
	if got.Score() != 1 {
		t.Errorf("Score = %d, want 1", got.Score())
	}
}

func TestPayslip_DeductionLabels(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"plain", "Deductions $50.00", "50.00"},
		{"dash in label", "Deduction - union fees $20.00", "20.00"},
		{"signed amount", "Other deductions -$12.50", "12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payslip{}.Extract("Pay date: 15/03/2024\nGross pay $5,000.00\n" + tt.line + "\n")
			if got.Income == nil {
				t.Fatal("Expected an income record")
			}
			if !got.Income.OtherDeductions.Equal(amount(tt.want)) {
				t.Errorf("OtherDeductions = %s, want %s", got.Income.OtherDeductions, tt.want)
			}
		})
	}
}

func TestPayslip_WithoutGrossPay(t *testing.T) {
	got := Payslip{}.Extract("Pay date: 15/03/2024\nNet pay $3,800.00\n")

	if got.Income != nil {
		t.Error("Expected no income record without gross pay")
	}
	if !got.Empty() {
		t.Error("Expected empty extraction")
	}
}

func TestPayslip_PayDateFallsBackToPeriodEnd(t *testing.T) {
	got := Payslip{}.Extract("Pay period 01/03/2024 to 14/03/2024\nGross earnings 2,000.00\n")

	if got.Income == nil {
		t.Fatal("Expected an income record")
	}
	if !got.Income.PayDate.Equal(day(2024, 3, 14)) {
		t.Errorf("PayDate = %s, want 2024-03-14", got.Income.PayDate.Format(domain.DateLayout))
	}
}

func TestBest(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.DocumentKind
	}{
		{"issuer A layout", cardAText, domain.KindCardStatementA},
		{"issuer B layout", cardBText, domain.KindCardStatementB},
		{"nothing recognizable ties to first", "hello world", domain.KindCardStatementA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Best(tt.text, FallbackOrder()...)
			if got.Kind != tt.want {
				t.Errorf("Best() kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestForKind(t *testing.T) {
	for _, kind := range []domain.DocumentKind{domain.KindCardStatementA, domain.KindCardStatementB, domain.KindPayslip} {
		ex, ok := ForKind(kind)
		if !ok || ex.Kind() != kind {
			t.Errorf("ForKind(%s) = %v, %v", kind, ex, ok)
		}
	}
	if _, ok := ForKind(domain.KindUnknown); ok {
		t.Error("Expected no extractor for UNKNOWN")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"45.00", "45.00", false},
		{"$1,234.50", "1234.50", false},
		{"-$300.00", "-300.00", false},
		{"$-12.00", "-12.00", false},
		{"(20.00)", "-20.00", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(amount(tt.want)) {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeLines(t *testing.T) {
	got := normalizeLines("  a   b \r\n\fPage 2 of 3\n(continued)\n\n c ")

	want := []string{"a b", "c"}
	if len(got) != len(want) {
		t.Fatalf("normalizeLines() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func assertTransactions(t *testing.T, got, want []domain.DraftTransaction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d transactions, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) {
			t.Errorf("tx %d date = %s, want %s", i, got[i].Date.Format(domain.DateLayout), want[i].Date.Format(domain.DateLayout))
		}
		if got[i].Description != want[i].Description {
			t.Errorf("tx %d description = %q, want %q", i, got[i].Description, want[i].Description)
		}
		if !got[i].Amount.Equal(want[i].Amount) {
			t.Errorf("tx %d amount = %s, want %s", i, got[i].Amount, want[i].Amount)
		}
	}
}
