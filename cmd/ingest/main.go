package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
)

func main() {
	configFile := flag.String("config", "", "Path to the config file (or set LEDGER_CONFIG)")
	folder := flag.String("folder", "", "Folder of PDFs to ingest (defaults to ingest.folder)")
	force := flag.Bool("force", false, "Re-ingest files that were already processed")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)

	if *folder == "" {
		*folder = cfg.Ingest.Folder
	}
	if *folder == "" {
		log.Fatal().Msg("Error: --folder is required when ingest.folder is not configured")
	}

	// Cancel between files on interrupt; committed files stay committed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Open(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	log.Info().Str("folder", *folder).Bool("force", *force).Msg("Starting ingestion")

	report, err := a.Service.IngestFolder(ctx, *folder, *force)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion aborted")
		a.Close()
		os.Exit(1)
	}

	for _, f := range report.Files {
		if f.Status == pipeline.OutcomeFailed {
			fmt.Printf("FAILED  %s (%s): %s\n", f.FileName, f.ErrorKind, f.Reason)
		}
	}
	fmt.Printf("Ingestion completed: %d parsed, %d skipped, %d failed, %d duplicates.\n",
		report.Parsed, report.Skipped, report.Failed, report.Duplicates)
}
