package categorize

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryValidator validates category codes against the taxonomy.
type CategoryValidator struct {
	categories map[string]bool            // Set of valid category codes
	groups     map[string]map[string]bool // Map of group -> set of codes in that group
}

// NewCategoryValidator creates a validator from the taxonomy.
func NewCategoryValidator(t *Taxonomy) *CategoryValidator {
	validator := &CategoryValidator{
		categories: make(map[string]bool),
		groups:     make(map[string]map[string]bool),
	}

	for _, c := range t.Categories {
		validator.categories[c.Code] = true
		if validator.groups[c.Group] == nil {
			validator.groups[c.Group] = make(map[string]bool)
		}
		validator.groups[c.Group][c.Code] = true
	}

	return validator
}

// ValidateCategory checks that code is a known category.
// Returns nil if valid, error if invalid.
func (v *CategoryValidator) ValidateCategory(code string) error {
	norm := normalizeCategory(code)
	if norm == "" {
		return fmt.Errorf("empty category")
	}
	if !v.categories[norm] {
		return fmt.Errorf("invalid category: %q (normalized: %q)", code, norm)
	}
	return nil
}

// ValidateInGroup checks that code is a known category of group.
func (v *CategoryValidator) ValidateInGroup(group, code string) error {
	codes, ok := v.groups[normalizeCategory(group)]
	if !ok {
		return fmt.Errorf("invalid group: %q", group)
	}
	if !codes[normalizeCategory(code)] {
		valid := make([]string, 0, len(codes))
		for c := range codes {
			valid = append(valid, c)
		}
		sort.Strings(valid)
		return fmt.Errorf("invalid category %q for group %q. Valid categories: %v", code, group, valid)
	}
	return nil
}

// Known reports whether code is a valid category.
func (v *CategoryValidator) Known(code string) bool {
	return v.categories[normalizeCategory(code)]
}

// normalizeCategory normalizes a category code for comparison.
// Converts to uppercase, trims whitespace and joins words with underscores.
func normalizeCategory(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), "_")
}
