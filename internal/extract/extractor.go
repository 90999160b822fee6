// Package extract turns the plain text of a known statement layout into draft
// ledger records. Extractors are pure: they never fail, they skip what they
// cannot read and report how much they found.
package extract

import (
	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Extraction is the tagged result of one extractor run.
type Extraction struct {
	Kind         domain.DocumentKind
	Transactions []domain.DraftTransaction
	Income       *domain.DraftIncome
	SkippedLines int
}

// Score is the number of recognizable items; it is how the generic fallback
// compares two extractors.
func (e Extraction) Score() int {
	n := len(e.Transactions)
	if e.Income != nil {
		n++
	}
	return n
}

// Empty reports whether nothing recognizable was found.
func (e Extraction) Empty() bool {
	return e.Score() == 0
}

// Extractor parses one statement family.
type Extractor interface {
	Kind() domain.DocumentKind
	Extract(text string) Extraction
}

// ForKind returns the extractor registered for kind.
func ForKind(kind domain.DocumentKind) (Extractor, bool) {
	switch kind {
	case domain.KindCardStatementA:
		return CardStatementA{}, true
	case domain.KindCardStatementB:
		return CardStatementB{}, true
	case domain.KindPayslip:
		return Payslip{}, true
	default:
		return nil, false
	}
}

// FallbackOrder lists the extractors tried, in order, for UNKNOWN documents.
func FallbackOrder() []Extractor {
	return []Extractor{CardStatementA{}, CardStatementB{}}
}

// Best runs every extractor independently and keeps the one with the highest
// score. Ties keep the earlier extractor; results are never merged.
func Best(text string, extractors ...Extractor) Extraction {
	var best Extraction
	found := false
	for _, ex := range extractors {
		got := ex.Extract(text)
		if !found || got.Score() > best.Score() {
			best = got
			found = true
		}
	}
	return best
}
