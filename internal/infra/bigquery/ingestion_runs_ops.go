package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/statement-ledger/internal/faults"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/google/uuid"
)

const (
	ingestionRunsTable = "ingestion_runs"
	maxErrorLen        = 2000
)

// StartIngestionRunWithClient inserts a new row into ingestion_runs with
// status=RUNNING and returns the generated run_id.
func StartIngestionRunWithClient(ctx context.Context, client *bigquery.Client, dataset, folder string, forceRefresh bool) (string, error) {
	runID := uuid.NewString()

	q := client.Query(fmt.Sprintf(`
		INSERT %s.%s (
			run_id,
			folder,
			force_refresh,
			started_ts,
			status
		)
		VALUES (
			@run_id,
			@folder,
			@force_refresh,
			@started_ts,
			@status
		)
	`, dataset, ingestionRunsTable))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "folder", Value: folder},
		{Name: "force_refresh", Value: forceRefresh},
		{Name: "started_ts", Value: time.Now()},
		{Name: "status", Value: RunStatusRunning},
	}

	if err := runAndWait(ctx, q); err != nil {
		return "", fmt.Errorf("StartIngestionRun: %w", err)
	}
	return runID, nil
}

type failedFile struct {
	File      string `json:"file"`
	ErrorKind string `json:"error_kind"`
	Reason    string `json:"reason"`
}

// finishParameters builds the UPDATE parameters for a finished run.
func finishParameters(runID string, report pipeline.BatchReport, runErr error, finished time.Time) ([]bigquery.QueryParameter, error) {
	status := RunStatusSuccess
	errMsg := ""
	if runErr != nil {
		status = RunStatusFailed
		errMsg = faults.Truncate(runErr.Error(), maxErrorLen)
	}

	failed := []failedFile{}
	for _, f := range report.Files {
		if f.Status != pipeline.OutcomeFailed {
			continue
		}
		failed = append(failed, failedFile{
			File:      f.FileName,
			ErrorKind: string(f.ErrorKind),
			Reason:    faults.Truncate(f.Reason, maxErrorLen),
		})
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return nil, fmt.Errorf("encoding failed files: %w", err)
	}

	return []bigquery.QueryParameter{
		{Name: "status", Value: status},
		{Name: "finished_ts", Value: finished},
		{Name: "error_message", Value: errMsg},
		{Name: "files_parsed", Value: report.Parsed},
		{Name: "files_skipped", Value: report.Skipped},
		{Name: "files_failed", Value: report.Failed},
		{Name: "duplicate_rows", Value: report.Duplicates},
		{Name: "summary_months", Value: len(report.Summaries)},
		{Name: "failed_files", Value: string(failedJSON)},
		{Name: "run_id", Value: runID},
	}, nil
}

// MarkIngestionRunFinishedWithClient sets status, finished_ts, counters and
// error_message of a run.
func MarkIngestionRunFinishedWithClient(ctx context.Context, client *bigquery.Client, dataset, runID string, report pipeline.BatchReport, runErr error) error {
	params, err := finishParameters(runID, report, runErr, time.Now())
	if err != nil {
		return fmt.Errorf("MarkIngestionRunFinished: %w", err)
	}

	q := client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @status,
		    finished_ts = @finished_ts,
		    error_message = @error_message,
		    files_parsed = @files_parsed,
		    files_skipped = @files_skipped,
		    files_failed = @files_failed,
		    duplicate_rows = @duplicate_rows,
		    summary_months = @summary_months,
		    failed_files = PARSE_JSON(@failed_files)
		WHERE run_id = @run_id
	`, dataset, ingestionRunsTable))
	q.Parameters = params

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("MarkIngestionRunFinished: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("run_id", runID).
		Str("status", params[0].Value.(string)).
		Msg("Ingestion run recorded")
	return nil
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
