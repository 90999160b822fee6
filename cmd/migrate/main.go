package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/statement-ledger/internal/categorize"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/dvloznov/statement-ledger/internal/migration"
	"github.com/dvloznov/statement-ledger/internal/store/sqlite"
)

type mode string

const (
	modeMigrate  mode = "migrate"
	modeAnalyze  mode = "analyze"
	modeRollback mode = "rollback"
)

var (
	configFile     = flag.String("config", "", "Path to the config file (or set LEDGER_CONFIG)")
	mappingFile    = flag.String("mapping", "", "Legacy code mapping YAML (defaults to migration.mapping_file or the built-in mapping)")
	analyze        = flag.Bool("analyze", false, "Only show what the migration would change")
	rollback       = flag.Bool("rollback", false, "Restore the latest backup set")
	restoreFromGCS = flag.Bool("restore-from-gcs", false, "With -rollback, fetch the latest backup set from gcs.backup_bucket first")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	selected := modeMigrate
	switch {
	case *analyze && *rollback:
		log.Fatal().Msg("Error: -analyze and -rollback are mutually exclusive")
	case *analyze:
		selected = modeAnalyze
	case *rollback:
		selected = modeRollback
	case *restoreFromGCS:
		log.Fatal().Msg("Error: -restore-from-gcs requires -rollback")
	}

	repo, err := sqlite.OpenRepository(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer repo.Close()

	mapping, err := loadMapping(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load mapping")
	}

	backups := migration.NewBackups(cfg.Migration.BackupDir)

	if cfg.GCS.BackupBucket != "" {
		mirror, err := gcsuploader.NewBackupMirror(ctx, cfg.GCS.BackupBucket, cfg.GCS.BackupPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS client")
		}
		defer mirror.Close()
		backups.WithMirror(mirror)

		if *restoreFromGCS {
			name, err := mirror.RestoreLatest(ctx, backups.Dir())
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to fetch backup from GCS")
			}
			log.Info().Str("backup_set", name).Msg("Fetched backup set from GCS")
		}
	} else if *restoreFromGCS {
		log.Fatal().Msg("Error: -restore-from-gcs requires gcs.backup_bucket")
	}

	m := migration.NewMigrator(repo, mapping, backups)
	if err := run(ctx, m, selected, os.Stdout); err != nil {
		log.Error().Err(err).Msg("Migration failed")
		repo.Close()
		os.Exit(1)
	}
}

func loadMapping(cfg config.Config) (*migration.Mapping, error) {
	path := *mappingFile
	if path == "" {
		path = cfg.Migration.MappingFile
	}
	if path == "" {
		return migration.DefaultMapping()
	}
	tax, err := categorize.DefaultTaxonomy()
	if err != nil {
		return nil, err
	}
	return migration.LoadMapping(path, tax)
}

// run executes one mode and prints its outcome to out.
func run(ctx context.Context, m *migration.Migrator, md mode, out io.Writer) error {
	switch md {
	case modeAnalyze:
		preview, err := m.Analyze(ctx)
		if err != nil {
			return err
		}
		preview.WriteText(out)
		return nil

	case modeRollback:
		set, err := m.Rollback(ctx)
		if errors.Is(err, migration.ErrNoBackup) {
			fmt.Fprintln(out, "No backup set found. Nothing to roll back.")
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Restored backup set %s (created %s)\n", set.Name, set.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil

	default:
		report, _, err := m.Run(ctx)
		for _, s := range report.States {
			switch s {
			case migration.StateIdle:
				continue
			case migration.StateFailed, migration.StateRollingBack, migration.StateRolledBack:
				fmt.Fprintf(out, "  [FAIL] %s\n", s)
			default:
				fmt.Fprintf(out, "  [OK]   %s\n", s)
			}
		}
		if errors.Is(err, migration.ErrLocked) {
			return err
		}
		fmt.Fprintln(out)
		report.WriteText(out)
		return err
	}
}
