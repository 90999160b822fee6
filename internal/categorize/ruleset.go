package categorize

import (
	"sort"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/domain"
)

// Source tells which resolution step produced a category.
type Source string

const (
	SourceOverride Source = "override"
	SourceRule     Source = "rule"
	SourceDefault  Source = "default"
	SourceFallback Source = "fallback"
)

// Resolution is the outcome of categorizing one description.
type Resolution struct {
	Category string
	Source   Source
	RuleID   int64
	// Fault is set when the fallback was forced by unusable input.
	Fault string
}

type compiledRule struct {
	id       int64
	pattern  string
	category string
}

// RuleSet is an immutable snapshot of rules, overrides and default keyword
// sets. A document is always categorized against a single RuleSet.
type RuleSet struct {
	rules     []compiledRule
	overrides map[string]string
	defaults  []KeywordSet
	fallback  string
	skipped   []domain.CategoryRule
}

// NewRuleSet builds a snapshot. Disabled rules are dropped; enabled rules are
// ordered by priority desc, id asc. Rules with a blank pattern or category are
// skipped and reported by Skipped.
func NewRuleSet(rules []domain.CategoryRule, overrides []domain.CategoryOverride, defaults []KeywordSet, fallback string) *RuleSet {
	if fallback == "" {
		fallback = Other
	}
	rs := &RuleSet{
		overrides: make(map[string]string, len(overrides)),
		defaults:  defaults,
		fallback:  fallback,
	}

	ordered := make([]domain.CategoryRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if strings.TrimSpace(r.Pattern) == "" || strings.TrimSpace(r.Category) == "" {
			rs.skipped = append(rs.skipped, r)
			continue
		}
		ordered = append(ordered, r)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	for _, r := range ordered {
		rs.rules = append(rs.rules, compiledRule{
			id:       r.ID,
			pattern:  strings.ToUpper(strings.TrimSpace(r.Pattern)),
			category: strings.TrimSpace(r.Category),
		})
	}

	for _, o := range overrides {
		if o.ContentHash != "" && strings.TrimSpace(o.Category) != "" {
			rs.overrides[o.ContentHash] = strings.TrimSpace(o.Category)
		}
	}

	return rs
}

// Resolve categorizes a transaction. An override for contentHash always wins.
func (rs *RuleSet) Resolve(contentHash, description string) Resolution {
	if contentHash != "" {
		if cat, ok := rs.overrides[contentHash]; ok {
			return Resolution{Category: cat, Source: SourceOverride}
		}
	}

	desc := strings.ToUpper(strings.TrimSpace(description))
	if desc == "" {
		return Resolution{Category: rs.fallback, Source: SourceFallback, Fault: "empty description"}
	}

	for _, r := range rs.rules {
		if strings.Contains(desc, r.pattern) {
			return Resolution{Category: r.category, Source: SourceRule, RuleID: r.id}
		}
	}

	for _, set := range rs.defaults {
		for _, kw := range set.Keywords {
			if ContainsKeyword(desc, kw) {
				return Resolution{Category: set.Category, Source: SourceDefault}
			}
		}
	}

	return Resolution{Category: rs.fallback, Source: SourceFallback}
}

// Categorize returns the category of a free-text description.
func (rs *RuleSet) Categorize(description string) string {
	return rs.Resolve("", description).Category
}

// Override returns the manual category stored for contentHash.
func (rs *RuleSet) Override(contentHash string) (string, bool) {
	cat, ok := rs.overrides[contentHash]
	return cat, ok
}

// RuleCount is the number of active rules in the snapshot.
func (rs *RuleSet) RuleCount() int {
	return len(rs.rules)
}

// Skipped lists enabled rules that could not be used.
func (rs *RuleSet) Skipped() []domain.CategoryRule {
	return rs.skipped
}
