package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

var (
	cardBLine      = regexp.MustCompile(`^(\d{1,2} [A-Za-z]{3})( \d{4})? (.+?) (` + amountPattern + `)$`)
	cardBLineStart = regexp.MustCompile(`^\d{1,2} [A-Za-z]{3} `)
	cardBPeriod    = regexp.MustCompile(`(?i)statement period:? (\d{1,2} [A-Za-z]{3} \d{4}) (?:to|-) (\d{1,2} [A-Za-z]{3} \d{4})`)
)

// CardStatementB reads issuer B statements:
//
//	Statement period 01 Feb 2024 to 31 Mar 2024
//	28 Feb COLES 0412 SYDNEY $56.10
//	02 Mar 2024 PAYMENT - THANK YOU -$300.00
//
// Purchases are printed positive, payments and refunds negative. Lines
// without a year take it from the statement period.
type CardStatementB struct{}

func (CardStatementB) Kind() domain.DocumentKind { return domain.KindCardStatementB }

func (CardStatementB) Extract(text string) Extraction {
	out := Extraction{Kind: domain.KindCardStatementB}
	lines := normalizeLines(text)

	var periodEnd time.Time
	for _, line := range lines {
		if m := cardBPeriod.FindStringSubmatch(line); m != nil {
			if end, err := parseDate(m[2], "2 Jan 2006"); err == nil {
				periodEnd = end
			}
			break
		}
	}

	for _, line := range lines {
		m := cardBLine.FindStringSubmatch(line)
		if m == nil {
			if cardBLineStart.MatchString(line) {
				out.SkippedLines++
			}
			continue
		}

		year, rest := m[2], m[3]
		if year != "" && !plausibleYear(year, periodEnd) {
			// "02 Mar 7117 GEORGE ST": the digits open the description.
			year, rest = "", strings.TrimSpace(year)+" "+rest
		}

		date, ok := cardBDate(m[1], year, periodEnd)
		if !ok {
			out.SkippedLines++
			continue
		}
		amount, err := parseAmount(m[4])
		if err != nil {
			out.SkippedLines++
			continue
		}
		description := cleanDescription(rest)
		if isBalanceLine(description) {
			continue
		}
		if description == "" {
			out.SkippedLines++
			continue
		}

		out.Transactions = append(out.Transactions, domain.DraftTransaction{
			Date:        date,
			Description: description,
			Amount:      amount.Neg(),
		})
	}

	return out
}

// cardBDate resolves "02 Mar" plus an optional year. Without a year the period
// end decides; a month after the closing month belongs to the previous year.
func cardBDate(dayMonth, year string, periodEnd time.Time) (time.Time, bool) {
	if year != "" {
		d, err := parseDate(dayMonth+year, "2 Jan 2006")
		return d, err == nil
	}
	if periodEnd.IsZero() {
		return time.Time{}, false
	}

	d, err := parseDate(dayMonth, "2 Jan")
	if err != nil {
		return time.Time{}, false
	}
	y := periodEnd.Year()
	if d.Month() > periodEnd.Month() {
		y--
	}
	return time.Date(y, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
}

// plausibleYear accepts the closing year of the period or the one before it.
// Without a period any year from 2000 to 2099 passes.
func plausibleYear(token string, periodEnd time.Time) bool {
	y, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return false
	}
	if periodEnd.IsZero() {
		return y >= 2000 && y <= 2099
	}
	return y >= periodEnd.Year()-1 && y <= periodEnd.Year()
}
