package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/statement-ledger/internal/app"
	"github.com/dvloznov/statement-ledger/internal/config"
	"github.com/dvloznov/statement-ledger/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	envFiles []string
	logLevel string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:           "ledger",
	Short:         "Ingest PDF statements and payslips into a local ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile, envFiles...)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		log := logger.NewWithLevel(level)
		ctx := logger.WithContext(cmd.Context(), log)
		cmd.SetContext(ctx)

		application, err = app.Open(ctx, cfg, withWarehouse(cmd))
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

// withWarehouse reports whether cmd audits its runs in BigQuery.
func withWarehouse(cmd *cobra.Command) bool {
	return cmd == ingestCmd || cmd == exportBigQueryCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $LEDGER_CONFIG or ./ledger.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before reading the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")

	rootCmd.AddCommand(
		ingestCmd,
		fetchCmd,
		categorizeCmd,
		recategorizeCmd,
		summariesCmd,
		transactionsCmd,
		rulesCmd,
		overrideCmd,
		trackerCmd,
		exportCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
