// Package config loads ledger settings from a YAML file, a .env file and
// LEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxRetryDelay bounds the cumulative retry wait of one file.
const MaxRetryDelay = 3 * time.Second

// Config holds application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Migration MigrationConfig `mapstructure:"migration"`
	GCS       GCSConfig       `mapstructure:"gcs"`
	BigQuery  BigQueryConfig  `mapstructure:"bigquery"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type IngestConfig struct {
	Folder       string        `mapstructure:"folder"`
	Subfolders   []string      `mapstructure:"subfolders"`
	MaxFileBytes int64         `mapstructure:"max_file_bytes"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	FileTimeout  time.Duration `mapstructure:"file_timeout"`
	Markers      MarkerConfig  `mapstructure:"markers"`
}

// MarkerConfig holds the file name markers used for classification.
type MarkerConfig struct {
	CardA   string `mapstructure:"card_a"`
	CardB   string `mapstructure:"card_b"`
	Payslip string `mapstructure:"payslip"`
}

type MigrationConfig struct {
	BackupDir   string `mapstructure:"backup_dir"`
	MappingFile string `mapstructure:"mapping_file"`
}

// GCSConfig enables the backup mirror when BackupBucket is set.
type GCSConfig struct {
	BackupBucket string `mapstructure:"backup_bucket"`
	BackupPrefix string `mapstructure:"backup_prefix"`
}

// BigQueryConfig enables run audit and summary export when ProjectID is set.
type BigQueryConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Dataset   string `mapstructure:"dataset"`
}

type WorkerConfig struct {
	Schedule string `mapstructure:"schedule"`
	Timezone string `mapstructure:"timezone"`
}

// Load reads configuration. configFile may be empty, in which case
// LEDGER_CONFIG or ./ledger.yaml is used when present. envFiles are loaded
// with godotenv first and never override variables already set; without
// envFiles a .env in the working directory is tried.
func Load(configFile string, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	explicit := configFile != ""
	if !explicit {
		configFile = os.Getenv("LEDGER_CONFIG")
		explicit = configFile != ""
	}
	if explicit {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ledger")
	}

	v.SetEnvPrefix("LEDGER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "statement-ledger")

	v.SetDefault("log.level", "info")
	v.SetDefault("database.path", filepath.Join(dataDir, "ledger.db"))
	v.SetDefault("ingest.folder", "")
	v.SetDefault("ingest.subfolders", []string{})
	v.SetDefault("ingest.max_file_bytes", pipeline.DefaultMaxFileBytes)
	v.SetDefault("ingest.max_attempts", pipeline.DefaultMaxAttempts)
	v.SetDefault("ingest.retry_backoff", pipeline.DefaultRetryBackoff)
	v.SetDefault("ingest.file_timeout", pipeline.DefaultFileTimeout)
	v.SetDefault("ingest.markers.card_a", pipeline.DefaultMarkerCardA)
	v.SetDefault("ingest.markers.card_b", pipeline.DefaultMarkerCardB)
	v.SetDefault("ingest.markers.payslip", pipeline.DefaultMarkerPayslip)
	v.SetDefault("migration.backup_dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("migration.mapping_file", "")
	v.SetDefault("gcs.backup_bucket", "")
	v.SetDefault("gcs.backup_prefix", "statement-ledger/backups")
	v.SetDefault("bigquery.project_id", "")
	v.SetDefault("bigquery.dataset", "ledger")
	v.SetDefault("worker.schedule", "0 6 * * *")
	v.SetDefault("worker.timezone", "Australia/Sydney")
}

// Validate checks values that would break the ingestion guarantees.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.Ingest.MaxFileBytes <= 0 {
		return fmt.Errorf("config: ingest.max_file_bytes must be positive")
	}
	if c.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("config: ingest.max_attempts must be at least 1")
	}
	if total := c.TotalRetryDelay(); total > MaxRetryDelay {
		return fmt.Errorf("config: retries would wait %s per file, limit is %s", total, MaxRetryDelay)
	}
	if c.Ingest.FileTimeout <= 0 {
		return fmt.Errorf("config: ingest.file_timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Worker.Timezone); err != nil {
		return fmt.Errorf("config: worker.timezone: %w", err)
	}
	return nil
}

// TotalRetryDelay is the longest a file can spend waiting between attempts.
func (c Config) TotalRetryDelay() time.Duration {
	var total time.Duration
	for attempt := 1; attempt < c.Ingest.MaxAttempts; attempt++ {
		total += time.Duration(attempt) * c.Ingest.RetryBackoff
	}
	return total
}

// Pipeline maps the ingest section onto the dispatcher settings.
func (c Config) Pipeline() pipeline.Config {
	return pipeline.Config{
		MaxFileBytes: c.Ingest.MaxFileBytes,
		MaxAttempts:  c.Ingest.MaxAttempts,
		RetryBackoff: c.Ingest.RetryBackoff,
		FileTimeout:  c.Ingest.FileTimeout,
		Markers: pipeline.Markers{
			CardA:   c.Ingest.Markers.CardA,
			CardB:   c.Ingest.Markers.CardB,
			Payslip: c.Ingest.Markers.Payslip,
		},
	}
}
