package categorize

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Other is the designated miscellaneous category.
const Other = "OTHER"

//go:embed categories.yaml
var categoriesYAML []byte

// CategoryDef describes one category code of the hierarchical scheme.
type CategoryDef struct {
	Code     string   `yaml:"code"`
	Group    string   `yaml:"group"`
	COICOP   string   `yaml:"coicop"`
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is the ordered list of known categories plus the fallback code.
type Taxonomy struct {
	Fallback   string        `yaml:"fallback"`
	Categories []CategoryDef `yaml:"categories"`
}

// KeywordSet is the default keyword list of one category.
type KeywordSet struct {
	Category string
	Keywords []string
}

var (
	defaultOnce     sync.Once
	defaultTaxonomy *Taxonomy
	defaultErr      error
)

// DefaultTaxonomy returns the embedded category scheme.
func DefaultTaxonomy() (*Taxonomy, error) {
	defaultOnce.Do(func() {
		defaultTaxonomy, defaultErr = ParseTaxonomy(categoriesYAML)
	})
	return defaultTaxonomy, defaultErr
}

// ParseTaxonomy decodes and checks a YAML category scheme.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("ParseTaxonomy: decode: %w", err)
	}
	if t.Fallback == "" {
		t.Fallback = Other
	}

	seen := make(map[string]bool, len(t.Categories))
	for i, c := range t.Categories {
		code := normalizeCategory(c.Code)
		if code == "" {
			return nil, fmt.Errorf("ParseTaxonomy: category %d has no code", i)
		}
		if seen[code] {
			return nil, fmt.Errorf("ParseTaxonomy: duplicate category %q", code)
		}
		seen[code] = true
		t.Categories[i].Code = code
		t.Categories[i].Group = normalizeCategory(c.Group)
	}
	if !seen[normalizeCategory(t.Fallback)] {
		return nil, fmt.Errorf("ParseTaxonomy: fallback %q is not a category", t.Fallback)
	}
	t.Fallback = normalizeCategory(t.Fallback)

	return &t, nil
}

// KeywordSets returns the default keyword lists in file order, upper-cased.
func (t *Taxonomy) KeywordSets() []KeywordSet {
	sets := make([]KeywordSet, 0, len(t.Categories))
	for _, c := range t.Categories {
		if len(c.Keywords) == 0 {
			continue
		}
		kw := make([]string, 0, len(c.Keywords))
		for _, k := range c.Keywords {
			if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		sets = append(sets, KeywordSet{Category: c.Code, Keywords: kw})
	}
	return sets
}

// Codes lists every category code in file order.
func (t *Taxonomy) Codes() []string {
	codes := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		codes[i] = c.Code
	}
	return codes
}

// Lookup returns the definition of code.
func (t *Taxonomy) Lookup(code string) (CategoryDef, bool) {
	code = normalizeCategory(code)
	for _, c := range t.Categories {
		if c.Code == code {
			return c, true
		}
	}
	return CategoryDef{}, false
}
