package pipeline

import (
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Markers are the file name substrings that identify each document family.
type Markers struct {
	CardA   string
	CardB   string
	Payslip string
}

// DefaultMarkers returns the built-in markers.
func DefaultMarkers() Markers {
	return Markers{
		CardA:   DefaultMarkerCardA,
		CardB:   DefaultMarkerCardB,
		Payslip: DefaultMarkerPayslip,
	}
}

// Classifier derives a DocumentKind from a file name.
type Classifier struct {
	order []marker
}

type marker struct {
	substr string
	kind   domain.DocumentKind
}

// NewClassifier creates a Classifier. Blank markers fall back to the defaults.
func NewClassifier(m Markers) Classifier {
	def := DefaultMarkers()
	pick := func(v, fallback string) string {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			return v
		}
		return fallback
	}
	return Classifier{order: []marker{
		{pick(m.CardA, def.CardA), domain.KindCardStatementA},
		{pick(m.CardB, def.CardB), domain.KindCardStatementB},
		{pick(m.Payslip, def.Payslip), domain.KindPayslip},
	}}
}

// Classify checks the issuer A marker, then issuer B, then payslip. The
// first match wins; anything else is UNKNOWN.
func (c Classifier) Classify(fileName string) domain.DocumentKind {
	name := strings.ToLower(fileName)
	for _, m := range c.order {
		if strings.Contains(name, m.substr) {
			return m.kind
		}
	}
	return domain.KindUnknown
}

// Classify uses the default markers.
func Classify(fileName string) domain.DocumentKind {
	return NewClassifier(DefaultMarkers()).Classify(fileName)
}
