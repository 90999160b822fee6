package migration

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/categorize"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultMappingYAML []byte

// Outcome tells how a legacy code was resolved.
type Outcome string

const (
	OutcomeRemap        Outcome = "remap"
	OutcomeSplit        Outcome = "split"
	OutcomeSplitDefault Outcome = "split_default"
	OutcomeCurrent      Outcome = "current"
	OutcomeUnmapped     Outcome = "unmapped"
)

type splitRule struct {
	Keywords []string `yaml:"keywords"`
	Code     string   `yaml:"code"`
}

type split struct {
	Default string      `yaml:"default"`
	Rules   []splitRule `yaml:"rules"`
}

type mappingFile struct {
	Remaps map[string]string `yaml:"remaps"`
	Splits map[string]split  `yaml:"splits"`
}

// Mapping translates legacy category codes into the hierarchical scheme.
type Mapping struct {
	remaps  map[string]string
	splits  map[string]split
	current map[string]bool
}

// DefaultMapping returns the embedded legacy mapping checked against the
// default taxonomy.
func DefaultMapping() (*Mapping, error) {
	tax, err := categorize.DefaultTaxonomy()
	if err != nil {
		return nil, fmt.Errorf("DefaultMapping: %w", err)
	}
	return ParseMapping(defaultMappingYAML, tax)
}

// LoadMapping reads a mapping file from disk.
func LoadMapping(path string, tax *categorize.Taxonomy) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("LoadMapping: %w", err)
	}
	return ParseMapping(data, tax)
}

// ParseMapping decodes a YAML mapping. Every target code must exist in tax.
func ParseMapping(data []byte, tax *categorize.Taxonomy) (*Mapping, error) {
	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ParseMapping: decode: %w", err)
	}

	validator := categorize.NewCategoryValidator(tax)
	m := &Mapping{
		remaps:  make(map[string]string, len(f.Remaps)),
		splits:  make(map[string]split, len(f.Splits)),
		current: make(map[string]bool),
	}
	for _, code := range tax.Codes() {
		m.current[code] = true
	}

	for legacy, target := range f.Remaps {
		target = upper(target)
		if err := validator.ValidateCategory(target); err != nil {
			return nil, fmt.Errorf("ParseMapping: remap %s: %w", legacy, err)
		}
		m.remaps[upper(legacy)] = target
	}

	for legacy, s := range f.Splits {
		legacy = upper(legacy)
		if _, dup := m.remaps[legacy]; dup {
			return nil, fmt.Errorf("ParseMapping: %s is both a remap and a split", legacy)
		}
		s.Default = upper(s.Default)
		if err := validator.ValidateCategory(s.Default); err != nil {
			return nil, fmt.Errorf("ParseMapping: split %s default: %w", legacy, err)
		}
		for i, r := range s.Rules {
			r.Code = upper(r.Code)
			if err := validator.ValidateCategory(r.Code); err != nil {
				return nil, fmt.Errorf("ParseMapping: split %s rule %d: %w", legacy, i, err)
			}
			kw := make([]string, 0, len(r.Keywords))
			for _, k := range r.Keywords {
				if k = upper(k); k != "" {
					kw = append(kw, k)
				}
			}
			r.Keywords = kw
			s.Rules[i] = r
		}
		m.splits[legacy] = s
	}

	return m, nil
}

// Resolve returns the target code for a legacy code. text is the description
// (or rule pattern) inspected by keyword splits.
func (m *Mapping) Resolve(code, text string) (string, Outcome) {
	code = upper(code)
	if target, ok := m.remaps[code]; ok {
		if target == code {
			return code, OutcomeCurrent
		}
		return target, OutcomeRemap
	}
	if s, ok := m.splits[code]; ok {
		text = upper(text)
		for _, r := range s.Rules {
			for _, kw := range r.Keywords {
				if categorize.ContainsKeyword(text, kw) {
					return r.Code, OutcomeSplit
				}
			}
		}
		return s.Default, OutcomeSplitDefault
	}
	if m.current[code] {
		return code, OutcomeCurrent
	}
	return code, OutcomeUnmapped
}

// Kind classifies code without looking at any text. Split defaults are
// reported as OutcomeSplit.
func (m *Mapping) Kind(code string) Outcome {
	code = upper(code)
	if target, ok := m.remaps[code]; ok {
		if target == code {
			return OutcomeCurrent
		}
		return OutcomeRemap
	}
	if _, ok := m.splits[code]; ok {
		return OutcomeSplit
	}
	if m.current[code] {
		return OutcomeCurrent
	}
	return OutcomeUnmapped
}

// Legacy lists every legacy code the mapping knows, sorted.
func (m *Mapping) Legacy() []string {
	codes := make([]string, 0, len(m.remaps)+len(m.splits))
	for c := range m.remaps {
		codes = append(codes, c)
	}
	for c := range m.splits {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
