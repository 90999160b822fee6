package categorize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// RuleEditor is the write side of the rule store.
type RuleEditor interface {
	CreateRule(ctx context.Context, rule domain.CategoryRule) (int64, error)
	SetRuleEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteRule(ctx context.Context, id int64) error
	UpsertOverride(ctx context.Context, override domain.CategoryOverride) error
	DeleteOverride(ctx context.Context, contentHash string) error
}

// Manager applies category management edits and reloads the categorizer so
// the next categorization sees them.
type Manager struct {
	editor      RuleEditor
	categorizer *Categorizer
	validator   *CategoryValidator
	now         func() time.Time
}

// NewManager creates a Manager.
func NewManager(editor RuleEditor, categorizer *Categorizer) *Manager {
	return &Manager{
		editor:      editor,
		categorizer: categorizer,
		validator:   NewCategoryValidator(categorizer.Taxonomy()),
		now:         time.Now,
	}
}

// AddRule validates and stores a new enabled rule.
func (m *Manager) AddRule(ctx context.Context, pattern, category string, priority int) (domain.CategoryRule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return domain.CategoryRule{}, fmt.Errorf("AddRule: pattern is required")
	}
	if err := m.validator.ValidateCategory(category); err != nil {
		return domain.CategoryRule{}, fmt.Errorf("AddRule: %w", err)
	}

	rule := domain.CategoryRule{
		Pattern:  pattern,
		Category: normalizeCategory(category),
		Priority: priority,
		Enabled:  true,
	}
	id, err := m.editor.CreateRule(ctx, rule)
	if err != nil {
		return domain.CategoryRule{}, fmt.Errorf("AddRule: create: %w", err)
	}
	rule.ID = id

	log := logger.FromContext(ctx)
	log.Info().
		Int64("rule_id", id).
		Str("pattern", rule.Pattern).
		Str("category", rule.Category).
		Int("priority", priority).
		Msg("Category rule added")

	return rule, m.reload(ctx, "AddRule")
}

// SetRuleEnabled enables or disables a rule.
func (m *Manager) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := m.editor.SetRuleEnabled(ctx, id, enabled); err != nil {
		return fmt.Errorf("SetRuleEnabled: %w", err)
	}
	return m.reload(ctx, "SetRuleEnabled")
}

// DeleteRule removes a rule.
func (m *Manager) DeleteRule(ctx context.Context, id int64) error {
	if err := m.editor.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("DeleteRule: %w", err)
	}
	return m.reload(ctx, "DeleteRule")
}

// SetOverride pins the category of the transaction identified by contentHash.
func (m *Manager) SetOverride(ctx context.Context, contentHash, category string) error {
	if strings.TrimSpace(contentHash) == "" {
		return fmt.Errorf("SetOverride: content hash is required")
	}
	if err := m.validator.ValidateCategory(category); err != nil {
		return fmt.Errorf("SetOverride: %w", err)
	}

	override := domain.CategoryOverride{
		ContentHash: contentHash,
		Category:    normalizeCategory(category),
		CreatedAt:   m.now().UTC(),
	}
	if err := m.editor.UpsertOverride(ctx, override); err != nil {
		return fmt.Errorf("SetOverride: %w", err)
	}
	return m.reload(ctx, "SetOverride")
}

// ClearOverride removes a manual category.
func (m *Manager) ClearOverride(ctx context.Context, contentHash string) error {
	if err := m.editor.DeleteOverride(ctx, contentHash); err != nil {
		return fmt.Errorf("ClearOverride: %w", err)
	}
	return m.reload(ctx, "ClearOverride")
}

func (m *Manager) reload(ctx context.Context, op string) error {
	if _, err := m.categorizer.Reload(ctx); err != nil {
		return fmt.Errorf("%s: reload: %w", op, err)
	}
	return nil
}
