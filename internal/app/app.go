// Package app wires the ledger components from configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/extract"
	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/dvloznov/statement-ledger/internal/store/sqlite"
)

// App holds the long-lived components shared by the commands.
type App struct {
	Config      config.Config
	Repo        *sqlite.Repository
	Taxonomy    *categorize.Taxonomy
	Categorizer *categorize.Categorizer
	Rules       *categorize.Manager
	Service     *pipeline.Service

	// Warehouse is nil unless bigquery.project_id is configured.
	Warehouse *infraBQ.Warehouse
}

// Open migrates the database, loads the rule set and builds the ingestion
// service. When withWarehouse is set and a BigQuery project is configured,
// batch runs are audited there.
func Open(ctx context.Context, cfg config.Config, withWarehouse bool) (*App, error) {
	log := logger.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("Open: mkdir db dir: %w", err)
	}

	repo, err := sqlite.OpenRepository(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	tax, err := categorize.DefaultTaxonomy()
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("Open: taxonomy: %w", err)
	}

	categorizer, err := categorize.NewCategorizer(ctx, repo, tax)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("Open: %w", err)
	}

	dispatcher := pipeline.NewDispatcher(extract.NewPDFTextSource(), cfg.Pipeline())
	lister := pipeline.DirLister{Subfolders: cfg.Ingest.Subfolders}

	a := &App{
		Config:      cfg,
		Repo:        repo,
		Taxonomy:    tax,
		Categorizer: categorizer,
		Rules:       categorize.NewManager(repo, categorizer),
		Service:     pipeline.NewService(dispatcher, lister, categorizer, repo),
	}

	if withWarehouse && cfg.BigQuery.ProjectID != "" {
		wh, err := infraBQ.NewWarehouse(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery unavailable, ingestion runs will not be audited")
		} else {
			a.Warehouse = wh
			a.Service.WithRunRecorder(wh)
		}
	}

	log.Debug().
		Str("database", cfg.Database.Path).
		Int("rules", categorizer.Snapshot().RuleCount()).
		Bool("warehouse", a.Warehouse != nil).
		Msg("Application initialized")

	return a, nil
}

// Recategorize re-resolves every stored transaction against the current
// rules and regenerates the summaries when anything changed.
func (a *App) Recategorize(ctx context.Context) (int, error) {
	changes, err := categorize.Recategorize(ctx, a.Categorizer.Snapshot(), a.Repo)
	if err != nil {
		return 0, err
	}
	if len(changes) > 0 {
		if _, err := a.Service.RegenerateMonthlySummaries(ctx); err != nil {
			return len(changes), err
		}
	}
	return len(changes), nil
}

// Close releases the database and the warehouse client.
func (a *App) Close() error {
	if a.Warehouse != nil {
		if err := a.Warehouse.Close(); err != nil {
			log := logger.New()
			log.Warn().Err(err).Msg("Failed to close BigQuery client")
		}
	}
	return a.Repo.Close()
}
