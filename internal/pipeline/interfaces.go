package pipeline

import (
	"context"
)

// Ingester turns one file into an IngestionResult.
// This interface enables mocking the dispatcher in service tests.
type Ingester interface {
	Ingest(ctx context.Context, filePath string) IngestionResult
}

// FolderLister provides the PDF files of an ingestion folder.
type FolderLister interface {
	// ListPDFs returns the paths of every PDF under root, sorted.
	ListPDFs(ctx context.Context, root string) ([]string, error)
}

// RunRecorder audits batch runs. Recording failures never fail a batch.
type RunRecorder interface {
	// StartRun records a RUNNING batch and returns its run id.
	StartRun(ctx context.Context, folder string, forceRefresh bool) (string, error)

	// FinishRun records the final status of a batch.
	FinishRun(ctx context.Context, runID string, report BatchReport, runErr error) error
}

var _ Ingester = (*Dispatcher)(nil)
