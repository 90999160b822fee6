package categorize

import (
	"context"
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

// Ledger is the part of the store a recategorization pass touches.
type Ledger interface {
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	ApplyCategoryChanges(ctx context.Context, changes []domain.CategoryChange) error
}

// Recategorize re-resolves every stored transaction against rs and writes
// back the ones whose category changed. Overrides come first in Resolve, so
// overridden transactions keep their manual category.
func Recategorize(ctx context.Context, rs *RuleSet, ledger Ledger) ([]domain.CategoryChange, error) {
	log := logger.FromContext(ctx)

	txs, err := ledger.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("Recategorize: list transactions: %w", err)
	}

	var changes []domain.CategoryChange
	for _, tx := range txs {
		res := ResolveLogged(ctx, rs, tx.ContentHash, tx.Description)
		if res.Category == tx.Category {
			continue
		}
		changes = append(changes, domain.CategoryChange{
			TransactionID: tx.ID,
			OldCategory:   tx.Category,
			NewCategory:   res.Category,
		})
		log.Debug().
			Str("transaction_id", tx.ID).
			Str("old", tx.Category).
			Str("new", res.Category).
			Str("source", string(res.Source)).
			Msg("Recategorized transaction")
	}

	if len(changes) == 0 {
		return nil, nil
	}
	if err := ledger.ApplyCategoryChanges(ctx, changes); err != nil {
		return nil, fmt.Errorf("Recategorize: apply changes: %w", err)
	}

	log.Info().Int("changed", len(changes)).Int("total", len(txs)).Msg("Recategorization complete")
	return changes, nil
}
