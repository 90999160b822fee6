package extract

import (
	"regexp"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	payslipDate      = regexp.MustCompile(`(?i)^pay(?:ment)? date:? (\d{2}/\d{2}/\d{4})`)
	payslipPeriod    = regexp.MustCompile(`(?i)^pay period:? (\d{2}/\d{2}/\d{4}) ?(?:-|to) ?(\d{2}/\d{2}/\d{4})`)
	payslipGross     = regexp.MustCompile(`(?i)^(?:total )?gross (?:pay|earnings):? (` + amountPattern + `)`)
	payslipNet       = regexp.MustCompile(`(?i)^net (?:pay|payment):? (` + amountPattern + `)`)
	payslipTax       = regexp.MustCompile(`(?i)^(?:payg |income )?tax(?: withheld)?:? (` + amountPattern + `)`)
	payslipSuper     = regexp.MustCompile(`(?i)^super(?:annuation)?(?: guarantee)?:? (` + amountPattern + `)`)
	payslipDeduction = regexp.MustCompile(`(?i)^(?:other )?deductions?\b[^$\d]*?(` + amountPattern + `)`)
)

// Payslip reads the payslip layout. The first amount after a label wins so
// year-to-date columns are ignored:
//
//	Pay date: 15/03/2024
//	Pay period: 01/03/2024 - 14/03/2024
//	Gross pay $5,000.00 $45,000.00
//	PAYG tax $900.00
//	Superannuation $475.00
//	Net pay $3,800.00
type Payslip struct{}

func (Payslip) Kind() domain.DocumentKind { return domain.KindPayslip }

func (Payslip) Extract(text string) Extraction {
	out := Extraction{Kind: domain.KindPayslip}

	var (
		income   domain.DraftIncome
		hasGross bool
		payDate  time.Time
	)

	for _, line := range normalizeLines(text) {
		switch {
		case payslipDate.MatchString(line):
			if d, err := parseDate(payslipDate.FindStringSubmatch(line)[1], "02/01/2006"); err == nil {
				payDate = d
			} else {
				out.SkippedLines++
			}
		case payslipPeriod.MatchString(line):
			m := payslipPeriod.FindStringSubmatch(line)
			start, errStart := parseDate(m[1], "02/01/2006")
			end, errEnd := parseDate(m[2], "02/01/2006")
			if errStart != nil || errEnd != nil {
				out.SkippedLines++
				continue
			}
			income.PeriodStart, income.PeriodEnd = &start, &end
		case payslipGross.MatchString(line):
			if v, ok := firstAmount(payslipGross, line, &out); ok && !hasGross {
				income.GrossPay, hasGross = v, true
			}
		case payslipNet.MatchString(line):
			if v, ok := firstAmount(payslipNet, line, &out); ok {
				income.NetPay = v
			}
		case payslipTax.MatchString(line):
			if v, ok := firstAmount(payslipTax, line, &out); ok {
				income.Tax = v
			}
		case payslipSuper.MatchString(line):
			if v, ok := firstAmount(payslipSuper, line, &out); ok {
				income.Superannuation = v
			}
		case payslipDeduction.MatchString(line):
			if v, ok := firstAmount(payslipDeduction, line, &out); ok {
				income.OtherDeductions = income.OtherDeductions.Add(v)
			}
		}
	}

	if payDate.IsZero() && income.PeriodEnd != nil {
		payDate = *income.PeriodEnd
	}
	if !hasGross || payDate.IsZero() {
		return out
	}

	income.PayDate = payDate
	out.Income = &income
	return out
}

func firstAmount(re *regexp.Regexp, line string, out *Extraction) (decimal.Decimal, bool) {
	v, err := parseAmount(re.FindStringSubmatch(line)[1])
	if err != nil {
		out.SkippedLines++
		return decimal.Zero, false
	}
	return v.Abs(), true
}
