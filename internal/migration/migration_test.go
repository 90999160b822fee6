package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func legacyTx(day int, desc, amount, category string) domain.Transaction {
	date := time.Date(2023, 11, day, 0, 0, 0, 0, time.UTC)
	amt := decimal.RequireFromString(amount)
	return domain.Transaction{
		ID:             desc,
		Date:           date,
		Description:    desc,
		Amount:         amt,
		Category:       category,
		AccountType:    "CREDIT_CARD",
		SourceFileName: "legacy.pdf",
		ContentHash:    domain.ContentHash(date, desc, amt),
	}
}

// seededStore holds a ledger categorized with the legacy flat codes.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()

	_, err := s.CommitFile(ctx, store.FileCommit{
		Transactions: []domain.Transaction{
			legacyTx(1, "MCDONALDS SYDNEY", "-12.50", "DINING_OUT"),
			legacyTx(2, "THE GROUNDS CAFE", "-48.00", "DINING_OUT"),
			legacyTx(3, "WOOLWORTHS", "-120.00", "GROCERIES"),
			legacyTx(4, "UBER *TRIP", "-23.10", "TRANSPORT"),
			legacyTx(5, "NETFLIX.COM", "-16.99", "ENTERTAINMENT"),
			legacyTx(6, "MYSTERY VENDOR", "-5.00", "LEGACY_MISC"),
			legacyTx(7, "UNI FEES", "-900.00", "EDUCATION"),
		},
		Processed: domain.ProcessedFileRecord{FileName: "legacy.pdf"},
	})
	require.NoError(t, err)

	_, err = s.CreateRule(ctx, domain.CategoryRule{Pattern: "KFC", Category: "DINING_OUT", Priority: 1, Enabled: true})
	require.NoError(t, err)
	_, err = s.CreateRule(ctx, domain.CategoryRule{Pattern: "TELSTRA", Category: "UTILITIES", Priority: 1, Enabled: true})
	require.NoError(t, err)

	cafe := legacyTx(2, "THE GROUNDS CAFE", "-48.00", "DINING_OUT")
	require.NoError(t, s.UpsertOverride(ctx, domain.CategoryOverride{ContentHash: cafe.ContentHash, Category: "DINING_OUT"}))

	require.NoError(t, s.ReplaceMonthlySummaries(ctx, []domain.MonthlySummary{
		{Month: "2023-11", TotalExpenses: decimal.RequireFromString("1125.59"), TransactionCount: 7},
	}))
	return s
}

func newMigrator(t *testing.T, repo Repository) (*Migrator, string) {
	t.Helper()
	mapping, err := DefaultMapping()
	require.NoError(t, err)
	dir := t.TempDir()
	return NewMigrator(repo, mapping, NewBackups(dir)), dir
}

func categories(t *testing.T, s *memory.Store) map[string]string {
	t.Helper()
	txs, err := s.ListTransactions(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(txs))
	for _, tx := range txs {
		out[tx.Description] = tx.Category
	}
	return out
}

func TestMapping_Resolve(t *testing.T) {
	mapping, err := DefaultMapping()
	require.NoError(t, err)

	tests := []struct {
		code, text  string
		wantCode    string
		wantOutcome Outcome
	}{
		{"DINING_OUT", "MCDONALDS SYDNEY", "RESTAURANTS_TAKEAWAY", OutcomeSplit},
		{"DINING_OUT", "the grounds cafe", "RESTAURANTS_DINING", OutcomeSplitDefault},
		{"TRANSPORT", "UBER *TRIP", "TRANSPORT_RIDESHARE", OutcomeSplit},
		{"TRANSPORT", "OPAL TOPUP", "TRANSPORT_PUBLIC", OutcomeSplitDefault},
		{"UTILITIES", "TELSTRA MOBILE", "COMMUNICATION", OutcomeSplit},
		{"ENTERTAINMENT", "INSTANT TICKETS", "RECREATION_ENTERTAINMENT", OutcomeSplitDefault},
		{"GROCERIES", "anything", "FOOD_GROCERIES", OutcomeRemap},
		{"EDUCATION", "", "EDUCATION", OutcomeCurrent},
		{"FOOD_GROCERIES", "", "FOOD_GROCERIES", OutcomeCurrent},
		{"LEGACY_MISC", "", "LEGACY_MISC", OutcomeUnmapped},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.text, func(t *testing.T) {
			code, outcome := mapping.Resolve(tt.code, tt.text)
			require.Equal(t, tt.wantCode, code)
			require.Equal(t, tt.wantOutcome, outcome)
		})
	}
}

func TestParseMapping_RejectsUnknownTarget(t *testing.T) {
	mapping, err := DefaultMapping()
	require.NoError(t, err)
	require.NotEmpty(t, mapping.Legacy())

	tax := mustTaxonomy(t)
	_, err = ParseMapping([]byte("remaps:\n  FUEL: PETROL\n"), tax)
	require.Error(t, err)

	_, err = ParseMapping([]byte("splits:\n  TRANSPORT:\n    default: NOPE\n"), tax)
	require.Error(t, err)
}

func TestStateMachine(t *testing.T) {
	require.True(t, CanTransition(StateIdle, StateBackingUp))
	require.True(t, CanTransition(StateMigratingRules, StateRollingBack))
	require.False(t, CanTransition(StateIdle, StateMigratingTransactions))
	require.False(t, CanTransition(StateBackingUp, StateRollingBack))
	require.False(t, CanTransition(StateDone, StateRollingBack))
	require.True(t, StateDone.Terminal())
	require.True(t, StateRolledBack.Terminal())

	sm := newStateMachine()
	require.Error(t, sm.to(StateReporting))
	require.NoError(t, sm.to(StateBackingUp))
	require.Equal(t, StateBackingUp, sm.State())
}

func TestAnalyze_IsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m, _ := newMigrator(t, s)

	preview, err := m.Analyze(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"LEGACY_MISC"}, preview.Unmapped)

	var dining CodePreview
	for _, c := range preview.Codes {
		if c.Code == "DINING_OUT" {
			dining = c
		}
	}
	require.Equal(t, OutcomeSplit, dining.Outcome)
	require.Equal(t, 2, dining.Transactions)
	require.Equal(t, 1, dining.Rules)
	require.Equal(t, 1, dining.Overrides)
	require.Equal(t, map[string]int{"RESTAURANTS_TAKEAWAY": 2, "RESTAURANTS_DINING": 2}, dining.Targets)

	// 2 dining + groceries + transport + netflix, 2 rules, 1 override
	require.Equal(t, 8, preview.Pending)
	require.Equal(t, "DINING_OUT", categories(t, s)["MCDONALDS SYDNEY"])
}

func TestRun_MigratesEverything(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m, dir := newMigrator(t, s)

	report, entries, err := m.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, StateDone, report.FinalState)
	require.Equal(t, 5, report.TransactionsRemapped)
	require.Equal(t, 2, report.RulesRemapped)
	require.Equal(t, 1, report.OverridesRemapped)
	require.Equal(t, 1, report.SummariesCleared)
	require.Equal(t, map[string]int{"LEGACY_MISC": 1}, report.Unmapped)
	require.Len(t, entries, 8)
	require.FileExists(t, report.LogFile)

	got := categories(t, s)
	require.Equal(t, "RESTAURANTS_TAKEAWAY", got["MCDONALDS SYDNEY"])
	require.Equal(t, "RESTAURANTS_DINING", got["THE GROUNDS CAFE"])
	require.Equal(t, "FOOD_GROCERIES", got["WOOLWORTHS"])
	require.Equal(t, "TRANSPORT_RIDESHARE", got["UBER *TRIP"])
	require.Equal(t, "RECREATION_SUBSCRIPTIONS", got["NETFLIX.COM"])
	require.Equal(t, "LEGACY_MISC", got["MYSTERY VENDOR"])
	require.Equal(t, "EDUCATION", got["UNI FEES"])

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Equal(t, "RESTAURANTS_TAKEAWAY", rules[0].Category)
	require.Equal(t, "COMMUNICATION", rules[1].Category)

	overrides, err := s.ListOverrides(ctx)
	require.NoError(t, err)
	require.Equal(t, "RESTAURANTS_DINING", overrides[0].Category)

	summaries, err := s.ListMonthlySummaries(ctx)
	require.NoError(t, err)
	require.Empty(t, summaries)

	_, err = os.Stat(filepath.Join(dir, lockFileName))
	require.True(t, os.IsNotExist(err), "lock file must be released")

	// A second run finds nothing left to rewrite.
	report, entries, err = m.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, report.TransactionsRemapped)
	require.Empty(t, entries)
}

// failingRepo fails the cache-clearing step after transactions were rewritten.
type failingRepo struct {
	*memory.Store
	DeleteMonthlySummariesFunc func(ctx context.Context) (int, error)
}

func (f *failingRepo) DeleteMonthlySummaries(ctx context.Context) (int, error) {
	return f.DeleteMonthlySummariesFunc(ctx)
}

func TestRun_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	repo := &failingRepo{Store: s, DeleteMonthlySummariesFunc: func(ctx context.Context) (int, error) {
		return 0, errors.New("disk full")
	}}
	m, _ := newMigrator(t, repo)

	report, entries, err := m.Run(ctx)
	require.Error(t, err)
	require.True(t, faults.Is(err, faults.MigrationFault))
	require.Nil(t, entries)
	require.True(t, report.RolledBack)
	require.Equal(t, StateRolledBack, report.FinalState)
	require.Contains(t, report.States, StateRollingBack)

	got := categories(t, s)
	require.Equal(t, "DINING_OUT", got["MCDONALDS SYDNEY"])
	require.Equal(t, "GROCERIES", got["WOOLWORTHS"])

	rules, _ := s.ListRules(ctx)
	require.Equal(t, "DINING_OUT", rules[0].Category)

	summaries, _ := s.ListMonthlySummaries(ctx)
	require.Len(t, summaries, 1)
}

func TestRollback_NoBackup(t *testing.T) {
	m, _ := newMigrator(t, memory.NewStore())

	_, err := m.Rollback(context.Background())
	require.ErrorIs(t, err, ErrNoBackup)
}

func TestRollback_RestoresLatest(t *testing.T) {
	ctx := context.Background()
	s := seededStore(t)
	m, _ := newMigrator(t, s)

	report, _, err := m.Run(ctx)
	require.NoError(t, err)

	set, err := m.Rollback(ctx)
	require.NoError(t, err)
	require.Equal(t, report.BackupSet, set.Name)
	require.Equal(t, "DINING_OUT", categories(t, s)["MCDONALDS SYDNEY"])
}

func TestRun_Exclusive(t *testing.T) {
	s := seededStore(t)
	m, dir := newMigrator(t, s)
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte("1 stale"), 0o644))

	_, _, err := m.Run(context.Background())
	require.ErrorIs(t, err, ErrLocked)

	categoriesAfter := categories(t, s)
	require.Equal(t, "DINING_OUT", categoriesAfter["MCDONALDS SYDNEY"])
}
