package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dvloznov/statement-ledger/internal/aggregate"
	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/dvloznov/statement-ledger/internal/tracker"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// OutcomeStatus is the per-file result of a batch.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// FileOutcome reports what happened to one file.
type FileOutcome struct {
	FileName   string
	Kind       domain.DocumentKind
	Status     OutcomeStatus
	Reason     string
	ErrorKind  faults.Kind
	Inserted   int
	Duplicates int
}

// BatchReport is the result of IngestFolder.
type BatchReport struct {
	Folder     string
	Parsed     int
	Skipped    int
	Failed     int
	Duplicates int
	Files      []FileOutcome
	Summaries  []domain.MonthlySummary
}

func (r *BatchReport) add(o FileOutcome) {
	r.Files = append(r.Files, o)
	switch o.Status {
	case OutcomeSucceeded:
		r.Parsed++
		r.Duplicates += o.Duplicates
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// Service ingests folders of documents into the ledger.
type Service struct {
	ingester    Ingester
	lister      FolderLister
	tracker     *tracker.Tracker
	categorizer *categorize.Categorizer
	ledger      store.LedgerRepository
	aggregator  *aggregate.Aggregator
	recorder    RunRecorder
	workers     int
}

// NewService wires a Service over repo.
func NewService(ingester Ingester, lister FolderLister, categorizer *categorize.Categorizer, repo store.Repository) *Service {
	return &Service{
		ingester:    ingester,
		lister:      lister,
		tracker:     tracker.New(repo),
		categorizer: categorizer,
		ledger:      repo,
		aggregator:  aggregate.NewAggregator(repo, repo),
		workers:     DefaultCategorizeWorkers,
	}
}

// WithRunRecorder enables batch auditing.
func (s *Service) WithRunRecorder(r RunRecorder) *Service {
	s.recorder = r
	return s
}

// Tracker returns the ingestion tracker.
func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

// Categorize resolves a description against the current rules.
func (s *Service) Categorize(description string) string {
	return s.categorizer.Categorize(description)
}

// RegenerateMonthlySummaries rebuilds every stored summary.
func (s *Service) RegenerateMonthlySummaries(ctx context.Context) ([]domain.MonthlySummary, error) {
	return s.aggregator.Regenerate(ctx)
}

// IngestFolder ingests every PDF under root, one file at a time. Per-file
// failures are reported in the BatchReport; the returned error is reserved for
// batch-level problems (listing, cancellation, summary regeneration). Files
// committed before a batch-level error stay committed.
func (s *Service) IngestFolder(ctx context.Context, root string, forceRefresh bool) (BatchReport, error) {
	log := logger.FromContext(ctx).With().Str("folder", root).Bool("force_refresh", forceRefresh).Logger()
	ctx = logger.WithContext(ctx, log)

	report := BatchReport{Folder: root}

	runID := ""
	if s.recorder != nil {
		id, err := s.recorder.StartRun(ctx, root, forceRefresh)
		if err != nil {
			log.Warn().Err(err).Msg("Could not record ingestion run start")
		}
		runID = id
	}

	batchErr := s.ingestFiles(ctx, root, forceRefresh, &report)

	if batchErr == nil && report.Parsed > 0 {
		summaries, err := s.aggregator.Regenerate(ctx)
		if err != nil {
			batchErr = fmt.Errorf("IngestFolder: regenerate summaries: %w", err)
		}
		report.Summaries = summaries
	}

	if s.recorder != nil && runID != "" {
		if err := s.recorder.FinishRun(ctx, runID, report, batchErr); err != nil {
			log.Warn().Err(err).Str("run_id", runID).Msg("Could not record ingestion run result")
		}
	}

	log.Info().
		Int("parsed", report.Parsed).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Int("duplicates", report.Duplicates).
		Msg("Folder ingestion finished")

	return report, batchErr
}

func (s *Service) ingestFiles(ctx context.Context, root string, forceRefresh bool, report *BatchReport) error {
	files, err := s.lister.ListPDFs(ctx, root)
	if err != nil {
		return fmt.Errorf("IngestFolder: list files: %w", err)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("IngestFolder: aborted: %w", err)
		}
		report.add(s.ingestFile(ctx, path, forceRefresh))
	}
	return nil
}

func (s *Service) ingestFile(ctx context.Context, path string, forceRefresh bool) FileOutcome {
	name := filepath.Base(path)
	log := logger.ForFile(ctx, name)
	ctx = logger.WithContext(ctx, log)

	if !forceRefresh {
		processed, err := s.tracker.IsProcessed(ctx, name)
		if err != nil {
			return failedOutcome(name, "", err)
		}
		if processed {
			log.Debug().Msg("Already processed, skipping")
			return FileOutcome{FileName: name, Status: OutcomeSkipped, Reason: "already processed"}
		}
	}

	var success Success
	switch res := s.ingester.Ingest(ctx, path).(type) {
	case Success:
		success = res
	case Failure:
		return FileOutcome{
			FileName:  name,
			Kind:      res.Kind,
			Status:    OutcomeFailed,
			Reason:    res.Message,
			ErrorKind: res.ErrorKind,
		}
	default:
		return failedOutcome(name, "", fmt.Errorf("unexpected ingestion result %T", res))
	}

	rs := s.categorizer.Snapshot()
	txs, err := s.categorizeDrafts(ctx, rs, success)
	if err != nil {
		return failedOutcome(name, success.Kind, err)
	}

	commit := store.FileCommit{
		Transactions: txs,
		Income:       incomeRecord(name, success.Extraction.Income),
		Processed:    s.tracker.Record(name, success.Kind),
		Replace:      forceRefresh,
	}

	result, err := s.ledger.CommitFile(ctx, commit)
	if err != nil {
		return failedOutcome(name, success.Kind, err)
	}

	log.Info().
		Int("inserted", result.Inserted).
		Int("duplicates", result.Duplicates).
		Int("replaced", result.Replaced).
		Msg("File committed")

	return FileOutcome{
		FileName:   name,
		Kind:       success.Kind,
		Status:     OutcomeSucceeded,
		Inserted:   result.Inserted,
		Duplicates: result.Duplicates,
	}
}

// categorizeDrafts resolves every draft against the single snapshot rs.
// Results keep the input order.
func (s *Service) categorizeDrafts(ctx context.Context, rs *categorize.RuleSet, success Success) ([]domain.Transaction, error) {
	drafts := success.Extraction.Transactions
	txs := make([]domain.Transaction, len(drafts))
	accountType := success.ResolvedKind.AccountType()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, d := range drafts {
		i, d := i, d
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash := d.ContentHash()
			res := categorize.ResolveLogged(gctx, rs, hash, d.Description)
			txs[i] = domain.Transaction{
				ID:             uuid.NewString(),
				Date:           d.Date,
				Description:    d.Description,
				Amount:         d.Amount,
				Category:       res.Category,
				AccountType:    accountType,
				SourceFileName: success.FileName,
				ContentHash:    hash,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("categorize: %w", err)
	}
	return txs, nil
}

func incomeRecord(fileName string, draft *domain.DraftIncome) *domain.IncomeRecord {
	if draft == nil {
		return nil
	}
	return &domain.IncomeRecord{
		ID:              uuid.NewString(),
		PayDate:         draft.PayDate,
		GrossPay:        draft.GrossPay,
		NetPay:          draft.NetPay,
		Tax:             draft.Tax,
		Superannuation:  draft.Superannuation,
		OtherDeductions: draft.OtherDeductions,
		SourceFileName:  fileName,
	}
}

func failedOutcome(name string, kind domain.DocumentKind, err error) FileOutcome {
	errKind := faults.KindOf(err)
	if faults.IsTransient(err) {
		errKind = faults.TransientIO
	}
	return FileOutcome{
		FileName:  name,
		Kind:      kind,
		Status:    OutcomeFailed,
		Reason:    err.Error(),
		ErrorKind: errKind,
	}
}
