package main

import (
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger",
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx <path>",
	Short: "Write monthly summaries and transactions to an Excel workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		summaries, err := application.Repo.ListMonthlySummaries(ctx)
		if err != nil {
			return err
		}
		txs, err := application.Repo.ListTransactions(ctx)
		if err != nil {
			return err
		}
		if err := export.SaveXLSX(args[0], summaries, txs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d months and %d transactions to %s\n", len(summaries), len(txs), args[0])
		return nil
	},
}

var exportBigQueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "Replace the exported monthly summaries in BigQuery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if application.Warehouse == nil {
			return fmt.Errorf("bigquery.project_id is not configured")
		}
		ctx := cmd.Context()

		if listExported {
			months, err := application.Warehouse.ListExportedMonths(ctx)
			if err != nil {
				return err
			}
			for _, m := range months {
				fmt.Fprintf(cmd.OutOrStdout(), "%04d-%02d\n", m.Year, int(m.Month))
			}
			return nil
		}

		summaries, err := application.Repo.ListMonthlySummaries(ctx)
		if err != nil {
			return err
		}
		n, err := application.Warehouse.ExportMonthlySummaries(ctx, summaries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d monthly summaries to %s.%s\n",
			n, application.Config.BigQuery.ProjectID, application.Config.BigQuery.Dataset)
		return nil
	},
}

var listExported bool

func init() {
	exportBigQueryCmd.Flags().BoolVar(&listExported, "list", false, "list the months already exported instead of exporting")
	exportCmd.AddCommand(exportXLSXCmd, exportBigQueryCmd)
}
