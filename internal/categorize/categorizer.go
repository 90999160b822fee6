package categorize

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// RuleSource is the read side of the rule store.
type RuleSource interface {
	ListRules(ctx context.Context) ([]domain.CategoryRule, error)
	ListOverrides(ctx context.Context) ([]domain.CategoryOverride, error)
}

// Categorizer owns the current RuleSet. Reload swaps in a fresh snapshot;
// callers that already hold a snapshot keep using it.
type Categorizer struct {
	source   RuleSource
	taxonomy *Taxonomy
	current  atomic.Pointer[RuleSet]
}

// NewCategorizer loads the first snapshot from source.
func NewCategorizer(ctx context.Context, source RuleSource, taxonomy *Taxonomy) (*Categorizer, error) {
	c := &Categorizer{source: source, taxonomy: taxonomy}
	if _, err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the snapshot from the rule store and makes it current.
func (c *Categorizer) Reload(ctx context.Context) (*RuleSet, error) {
	log := logger.FromContext(ctx)

	rules, err := c.source.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reload: list rules: %w", err)
	}
	overrides, err := c.source.ListOverrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reload: list overrides: %w", err)
	}

	rs := NewRuleSet(rules, overrides, c.taxonomy.KeywordSets(), c.taxonomy.Fallback)
	for _, r := range rs.Skipped() {
		log.Warn().
			Str("fault", string(faults.CategorizationFault)).
			Int64("rule_id", r.ID).
			Str("pattern", r.Pattern).
			Str("category", r.Category).
			Msg("Skipping unusable category rule")
	}

	c.current.Store(rs)

	log.Debug().
		Int("rules", rs.RuleCount()).
		Int("overrides", len(overrides)).
		Msg("Category rules reloaded")

	return rs, nil
}

// Snapshot returns the current RuleSet.
func (c *Categorizer) Snapshot() *RuleSet {
	return c.current.Load()
}

// Categorize resolves a description against the current snapshot.
func (c *Categorizer) Categorize(description string) string {
	return c.Snapshot().Categorize(description)
}

// Taxonomy returns the category scheme in use.
func (c *Categorizer) Taxonomy() *Taxonomy {
	return c.taxonomy
}

// ResolveLogged resolves one transaction and logs categorization faults.
func ResolveLogged(ctx context.Context, rs *RuleSet, contentHash, description string) Resolution {
	res := rs.Resolve(contentHash, description)
	if res.Fault != "" {
		log := logger.FromContext(ctx)
		log.Warn().
			Str("fault", string(faults.CategorizationFault)).
			Str("content_hash", contentHash).
			Str("reason", res.Fault).
			Str("category", res.Category).
			Msg("Falling back to default category")
	}
	return res
}
