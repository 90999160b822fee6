package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/robfig/cron/v3"
)

// NewCron returns a cron runner evaluating schedules in timezone. An unknown
// timezone falls back to UTC.
func NewCron(ctx context.Context, timezone string) *cron.Cron {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("timezone", timezone).Msg("Invalid timezone, falling back to UTC")
		loc = time.UTC
	}
	return cron.New(cron.WithLocation(loc))
}

// ScheduleIngest publishes an IngestFolderJob for folder every time spec
// fires. Publishing uses ctx so a cancelled worker stops enqueueing.
func ScheduleIngest(ctx context.Context, c *cron.Cron, spec string, pub Publisher, folder string) (cron.EntryID, error) {
	log := logger.FromContext(ctx).With().Str("folder", folder).Str("schedule", spec).Logger()

	id, err := c.AddFunc(spec, func() {
		job := &IngestFolderJob{Folder: folder}
		if err := pub.PublishIngestFolder(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to publish scheduled ingestion")
			return
		}
		log.Info().Str("job_id", job.JobID).Msg("Scheduled ingestion published")
	})
	if err != nil {
		return 0, fmt.Errorf("ScheduleIngest: %w", err)
	}
	return id, nil
}
