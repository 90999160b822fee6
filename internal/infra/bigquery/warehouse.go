// Package bigquery records ingestion runs and exports monthly summaries to a
// BigQuery dataset.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

// Warehouse holds a shared BigQuery client for one dataset.
type Warehouse struct {
	client  *bigquery.Client
	dataset string
}

// NewWarehouse creates a Warehouse with its own client.
func NewWarehouse(ctx context.Context, projectID, dataset string) (*Warehouse, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewWarehouse: project id is required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewWarehouse: creating client: %w", err)
	}
	return &Warehouse{client: client, dataset: dataset}, nil
}

// Close closes the BigQuery client connection.
func (w *Warehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// StartRun implements pipeline.RunRecorder.
func (w *Warehouse) StartRun(ctx context.Context, folder string, forceRefresh bool) (string, error) {
	return StartIngestionRunWithClient(ctx, w.client, w.dataset, folder, forceRefresh)
}

// FinishRun implements pipeline.RunRecorder.
func (w *Warehouse) FinishRun(ctx context.Context, runID string, report pipeline.BatchReport, runErr error) error {
	return MarkIngestionRunFinishedWithClient(ctx, w.client, w.dataset, runID, report, runErr)
}

// ExportMonthlySummaries converts and exports summaries.
func (w *Warehouse) ExportMonthlySummaries(ctx context.Context, summaries []domain.MonthlySummary) (int, error) {
	rows, err := ToSummaryRows(summaries, time.Now())
	if err != nil {
		return 0, err
	}
	if err := ExportMonthlySummariesWithClient(ctx, w.client, w.dataset, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListExportedMonths delegates to ListExportedMonthsWithClient.
func (w *Warehouse) ListExportedMonths(ctx context.Context) ([]civil.Date, error) {
	return ListExportedMonthsWithClient(ctx, w.client, w.dataset)
}

var _ pipeline.RunRecorder = (*Warehouse)(nil)
