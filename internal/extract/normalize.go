package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountPattern matches printed money values such as 1,234.50, $45.00 or -$12.00.
const amountPattern = `-?\$?-?[\d,]+\.\d{2}`

var (
	pageMarker  = regexp.MustCompile(`(?i)^page \d+( of \d+)?$`)
	continuedRe = regexp.MustCompile(`(?i)^\(?continued( on next page| from previous page)?\)?$`)
)

// normalizeLines splits text into trimmed, whitespace-collapsed lines and drops
// page-break artifacts.
func normalizeLines(text string) []string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\f", "\n").Replace(text)

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line == "" || pageMarker.MatchString(line) || continuedRe.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// parseAmount reads a printed value. Parentheses mean negative.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}
	if s == "" {
		return decimal.Zero, fmt.Errorf("parseAmount: empty value")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parseAmount: %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// parseDate tries each layout in order and returns a UTC date.
func parseDate(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("parseDate: unrecognized date %q", s)
}

var balanceLine = regexp.MustCompile(`(?i)\b(opening|closing|previous|new) balance\b|balance (brought|carried) forward`)

// isBalanceLine reports running-balance rows that look like transactions.
func isBalanceLine(description string) bool {
	return balanceLine.MatchString(description)
}

func cleanDescription(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -*")
}
