package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// mockRunRecorder is a hand-written RunRecorder.
type mockRunRecorder struct {
	StartRunFunc  func(ctx context.Context, folder string, forceRefresh bool) (string, error)
	FinishRunFunc func(ctx context.Context, runID string, report BatchReport, runErr error) error
}

func (m *mockRunRecorder) StartRun(ctx context.Context, folder string, forceRefresh bool) (string, error) {
	if m.StartRunFunc != nil {
		return m.StartRunFunc(ctx, folder, forceRefresh)
	}
	return "run-1", nil
}

func (m *mockRunRecorder) FinishRun(ctx context.Context, runID string, report BatchReport, runErr error) error {
	if m.FinishRunFunc != nil {
		return m.FinishRunFunc(ctx, runID, report, runErr)
	}
	return nil
}

// mockLister is a hand-written FolderLister.
type mockLister struct {
	ListPDFsFunc func(ctx context.Context, root string) ([]string, error)
}

func (m *mockLister) ListPDFs(ctx context.Context, root string) ([]string, error) {
	return m.ListPDFsFunc(ctx, root)
}

// textByName serves document text keyed by file name.
func textByName(texts map[string]string) *mockTextSource {
	return &mockTextSource{ExtractTextFunc: func(ctx context.Context, path string) (string, error) {
		return texts[filepath.Base(path)], nil
	}}
}

type fixture struct {
	dir         string
	store       *memory.Store
	categorizer *categorize.Categorizer
	service     *Service
}

func newFixture(t *testing.T, texts map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	for name := range texts {
		writeFile(t, dir, name, 10)
	}

	s := memory.NewStore()
	tax, err := categorize.DefaultTaxonomy()
	require.NoError(t, err)
	c, err := categorize.NewCategorizer(ctx, s, tax)
	require.NoError(t, err)

	svc := NewService(NewDispatcher(textByName(texts), testConfig()), DirLister{}, c, s)
	return &fixture{dir: dir, store: s, categorizer: c, service: svc}
}

func TestIngestFolder_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText})

	report, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Parsed)
	require.Equal(t, 0, report.Failed)

	txs, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	categories := map[string]string{}
	for _, tx := range txs {
		categories[tx.Description] = tx.Category
		require.Equal(t, "CREDIT_CARD", tx.AccountType)
		require.Equal(t, "amex_march.pdf", tx.SourceFileName)
	}
	require.Equal(t, "TRANSPORT_FUEL", categories["SHELL FUEL"])
	require.Equal(t, "FOOD_GROCERIES", categories["WOOLWORTHS"])

	summaries, err := f.store.ListMonthlySummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "2024-03", summaries[0].Month)
	require.True(t, summaries[0].TotalExpenses.Equal(decimal.RequireFromString("165.00")), "got %s", summaries[0].TotalExpenses)
	require.Equal(t, 2, summaries[0].TransactionCount)
}

func TestIngestFolder_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText, "payslip_march.pdf": payslipText})

	first, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)
	require.Equal(t, 2, first.Parsed)

	second, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)
	require.Equal(t, 0, second.Parsed)
	require.Equal(t, 2, second.Skipped)
	require.Nil(t, second.Summaries)

	income, err := f.store.ListIncome(ctx)
	require.NoError(t, err)
	require.Len(t, income, 1)
}

func TestIngestFolder_ForceRefreshReplacesRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText, "payslip_march.pdf": payslipText})

	_, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)

	report, err := f.service.IngestFolder(ctx, f.dir, true)
	require.NoError(t, err)
	require.Equal(t, 2, report.Parsed)
	require.Equal(t, 0, report.Skipped)
	require.Equal(t, 0, report.Duplicates)

	txs, _ := f.store.ListTransactions(ctx)
	require.Len(t, txs, 2)
	income, _ := f.store.ListIncome(ctx)
	require.Len(t, income, 1)

	summaries, _ := f.store.ListMonthlySummaries(ctx)
	require.Len(t, summaries, 1)
	require.True(t, summaries[0].TotalIncome.Equal(decimal.RequireFromString("3800")))
	require.True(t, summaries[0].Savings.Equal(decimal.RequireFromString("3635")))
}

func TestIngestFolder_DuplicateUnderAnotherName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText, "amex_march_copy.pdf": amexText})

	report, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)
	require.Equal(t, 2, report.Parsed)
	require.Equal(t, 2, report.Duplicates)

	txs, _ := f.store.ListTransactions(ctx)
	require.Len(t, txs, 2)
}

func TestIngestFolder_FailuresDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{
		"amex_march.pdf":  amexText,
		"westpac_bad.pdf": "nothing to see here",
	})

	report, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)
	require.Equal(t, 1, report.Parsed)
	require.Equal(t, 1, report.Failed)

	var failed FileOutcome
	for _, o := range report.Files {
		if o.Status == OutcomeFailed {
			failed = o
		}
	}
	require.Equal(t, "westpac_bad.pdf", failed.FileName)
	require.Equal(t, faults.MalformedDocument, failed.ErrorKind)
	require.NotEmpty(t, failed.Reason)

	processed, err := f.service.Tracker().IsProcessed(ctx, "westpac_bad.pdf")
	require.NoError(t, err)
	require.False(t, processed)
}

func TestIngestFolder_OverrideSurvivesReingestion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText})

	_, err := f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)

	hash := domain.ContentHash(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), "SHELL FUEL", decimal.RequireFromString("-45.00"))
	manager := categorize.NewManager(f.store, f.categorizer)
	require.NoError(t, manager.SetOverride(ctx, hash, "HOUSEHOLD_GOODS"))

	_, err = f.service.IngestFolder(ctx, f.dir, true)
	require.NoError(t, err)

	_, err = categorize.Recategorize(ctx, f.categorizer.Snapshot(), f.store)
	require.NoError(t, err)

	txs, _ := f.store.ListTransactions(ctx)
	for _, tx := range txs {
		if tx.ContentHash == hash {
			require.Equal(t, "HOUSEHOLD_GOODS", tx.Category)
			return
		}
	}
	t.Fatal("SHELL FUEL transaction not found")
}

func TestIngestFolder_RuleEditsApplyToNextFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText})

	manager := categorize.NewManager(f.store, f.categorizer)
	_, err := manager.AddRule(ctx, "woolworths", "HOUSEHOLD_GOODS", 5)
	require.NoError(t, err)

	_, err = f.service.IngestFolder(ctx, f.dir, false)
	require.NoError(t, err)

	txs, _ := f.store.ListTransactions(ctx)
	for _, tx := range txs {
		if tx.Description == "WOOLWORTHS" {
			require.Equal(t, "HOUSEHOLD_GOODS", tx.Category)
		}
	}
}

func TestIngestFolder_ListingErrorAndRecorder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var finished struct {
		runID  string
		runErr error
	}
	recorder := &mockRunRecorder{
		FinishRunFunc: func(ctx context.Context, runID string, report BatchReport, runErr error) error {
			finished.runID, finished.runErr = runID, runErr
			return nil
		},
	}
	f.service.lister = &mockLister{ListPDFsFunc: func(ctx context.Context, root string) ([]string, error) {
		return nil, errors.New("permission denied")
	}}
	f.service.WithRunRecorder(recorder)

	_, err := f.service.IngestFolder(ctx, "/inbox", false)
	require.Error(t, err)
	require.Equal(t, "run-1", finished.runID)
	require.Error(t, finished.runErr)
}

func TestIngestFolder_Cancelled(t *testing.T) {
	f := newFixture(t, map[string]string{"amex_march.pdf": amexText})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.IngestFolder(ctx, f.dir, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDirLister(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.PDF", 1)
	writeFile(t, dir, "a.pdf", 1)
	writeFile(t, dir, "notes.txt", 1)

	files, err := DirLister{}.ListPDFs(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.True(t, strings.HasSuffix(files[0], "a.pdf"))

	files, err = DirLister{Subfolders: []string{"missing"}}.ListPDFs(context.Background(), dir)
	require.NoError(t, err)
	require.Empty(t, files)
}
