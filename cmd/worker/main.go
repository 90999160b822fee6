package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/statement-ledger/internal/logger"
)

func main() {
	configFile := flag.String("config", "", "Path to the config file (or set LEDGER_CONFIG)")
	runNow := flag.Bool("run-now", false, "Enqueue one ingestion immediately on startup")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	if cfg.Ingest.Folder == "" {
		log.Fatal().Msg("ingest.folder must be configured for the worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	// One worker: folder ingestions never overlap.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, 1, jobStore)

	handler := func(ctx context.Context, ingestJob *jobs.IngestFolderJob) error {
		report, err := a.Service.IngestFolder(ctx, ingestJob.Folder, ingestJob.ForceRefresh)
		if err != nil {
			return err
		}

		log.Info().
			Str("job_id", ingestJob.JobID).
			Int("parsed", report.Parsed).
			Int("failed", report.Failed).
			Msg("Scheduled ingestion completed")

		if a.Warehouse != nil && report.Parsed > 0 {
			if _, err := a.Warehouse.ExportMonthlySummaries(ctx, report.Summaries); err != nil {
				log.Warn().Err(err).Msg("Failed to export monthly summaries")
			}
		}
		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	scheduler := jobs.NewCron(ctx, cfg.Worker.Timezone)
	if _, err := jobs.ScheduleIngest(ctx, scheduler, cfg.Worker.Schedule, jobQueue, cfg.Ingest.Folder); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule ingestion")
	}
	scheduler.Start()

	if *runNow {
		if err := jobQueue.PublishIngestFolder(ctx, &jobs.IngestFolderJob{Folder: cfg.Ingest.Folder}); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue startup ingestion")
		}
	}

	log.Info().
		Str("folder", cfg.Ingest.Folder).
		Str("schedule", cfg.Worker.Schedule).
		Str("timezone", cfg.Worker.Timezone).
		Msg("Worker service started, waiting for schedule...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Stop scheduling first so nothing new is enqueued.
	<-scheduler.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
