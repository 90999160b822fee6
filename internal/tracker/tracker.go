package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/store"
)

// Tracker records which files have already been absorbed into the ledger.
type Tracker struct {
	repo store.ProcessedFileRepository
	now  func() time.Time
}

// New creates a Tracker on repo.
func New(repo store.ProcessedFileRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// IsProcessed reports whether fileName was committed before.
func (t *Tracker) IsProcessed(ctx context.Context, fileName string) (bool, error) {
	_, err := t.repo.GetProcessedFile(ctx, fileName)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsProcessed: %w", err)
	}
	return true, nil
}

// Record builds the processed-file record for fileName. The service passes it
// to CommitFile so the mark lands in the same transaction as the records.
func (t *Tracker) Record(fileName string, kind domain.DocumentKind) domain.ProcessedFileRecord {
	return domain.ProcessedFileRecord{
		FileName:    fileName,
		FileType:    kind,
		ProcessedAt: t.now().UTC(),
	}
}

// MarkProcessed stores a processed-file record on its own.
func (t *Tracker) MarkProcessed(ctx context.Context, fileName string, kind domain.DocumentKind) error {
	if err := t.repo.MarkProcessed(ctx, t.Record(fileName, kind)); err != nil {
		return fmt.Errorf("MarkProcessed: %w", err)
	}
	return nil
}

// Forget drops the record for fileName so the next run ingests it again.
func (t *Tracker) Forget(ctx context.Context, fileName string) (bool, error) {
	removed, err := t.repo.DeleteProcessedFile(ctx, fileName)
	if err != nil {
		return false, fmt.Errorf("Forget: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("file", fileName).Bool("removed", removed).Msg("Forgot processed file")
	return removed, nil
}

// ClearAll drops every record.
func (t *Tracker) ClearAll(ctx context.Context) (int, error) {
	n, err := t.repo.ClearProcessedFiles(ctx)
	if err != nil {
		return 0, fmt.Errorf("ClearAll: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Int("cleared", n).Msg("Cleared ingestion tracker")
	return n, nil
}

// List returns every record ordered by file name.
func (t *Tracker) List(ctx context.Context) ([]domain.ProcessedFileRecord, error) {
	records, err := t.repo.ListProcessedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return records, nil
}
