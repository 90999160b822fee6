package extract

import (
	"regexp"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

var (
	cardALine      = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4}) (.+?) (` + amountPattern + `)( ?CR)?$`)
	cardALineStart = regexp.MustCompile(`^\d{2}/\d{2}/\d{4} `)
)

// CardStatementA reads issuer A statements:
//
//	03/03/2024 SHELL FUEL 45.00
//	10/03/2024 PAYMENT RECEIVED THANK YOU 500.00 CR
//
// Charges are printed positive and credits carry a CR suffix.
type CardStatementA struct{}

func (CardStatementA) Kind() domain.DocumentKind { return domain.KindCardStatementA }

func (CardStatementA) Extract(text string) Extraction {
	out := Extraction{Kind: domain.KindCardStatementA}

	for _, line := range normalizeLines(text) {
		m := cardALine.FindStringSubmatch(line)
		if m == nil {
			if cardALineStart.MatchString(line) {
				out.SkippedLines++
			}
			continue
		}

		date, err := parseDate(m[1], "02/01/2006")
		if err != nil {
			out.SkippedLines++
			continue
		}
		amount, err := parseAmount(m[3])
		if err != nil {
			out.SkippedLines++
			continue
		}
		description := cleanDescription(m[2])
		if isBalanceLine(description) {
			continue
		}
		if description == "" {
			out.SkippedLines++
			continue
		}

		if m[4] != "" {
			amount = amount.Abs()
		} else {
			amount = amount.Neg()
		}

		out.Transactions = append(out.Transactions, domain.DraftTransaction{
			Date:        date,
			Description: description,
			Amount:      amount,
		})
	}

	return out
}
