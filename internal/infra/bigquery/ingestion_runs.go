package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// Run statuses.
const (
	RunStatusRunning = "RUNNING"
	RunStatusSuccess = "SUCCESS"
	RunStatusFailed  = "FAILED"
)

type IngestionRunRow struct {
	RunID        string `bigquery:"run_id"`        // REQUIRED
	Folder       string `bigquery:"folder"`        // REQUIRED
	ForceRefresh bool   `bigquery:"force_refresh"` // REQUIRED

	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	FilesParsed     bigquery.NullInt64 `bigquery:"files_parsed"`   // NULLABLE
	FilesSkipped    bigquery.NullInt64 `bigquery:"files_skipped"`  // NULLABLE
	FilesFailed     bigquery.NullInt64 `bigquery:"files_failed"`   // NULLABLE
	DuplicateRows   bigquery.NullInt64 `bigquery:"duplicate_rows"` // NULLABLE
	SummaryMonths   bigquery.NullInt64 `bigquery:"summary_months"` // NULLABLE
	FailedFilesJSON bigquery.NullJSON  `bigquery:"failed_files"`   // NULLABLE
}
