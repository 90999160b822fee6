package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/statement-ledger/internal/pipeline"
	"github.com/spf13/cobra"
)

var forceRefresh bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest every PDF in a folder",
	Long: `Ingest every PDF under the folder (default ingest.folder from the config).
Files already processed are skipped unless --force is given, in which case
their rows are replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		folder := application.Config.Ingest.Folder
		if len(args) == 1 {
			folder = args[0]
		}
		if folder == "" {
			return fmt.Errorf("no folder given and ingest.folder is not set")
		}

		report, err := application.Service.IngestFolder(cmd.Context(), folder, forceRefresh)
		printBatchReport(cmd.OutOrStdout(), report)
		return err
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&forceRefresh, "force", false, "re-ingest files that were already processed")
}

func printBatchReport(out io.Writer, report pipeline.BatchReport) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tKIND\tSTATUS\tINSERTED\tDUPLICATES\tREASON")
	for _, f := range report.Files {
		reason := f.Reason
		if f.ErrorKind != "" {
			reason = fmt.Sprintf("%s: %s", f.ErrorKind, f.Reason)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", f.FileName, f.Kind, f.Status, f.Inserted, f.Duplicates, reason)
	}
	w.Flush()

	fmt.Fprintf(out, "\nParsed: %d  Skipped: %d  Failed: %d  Duplicates: %d\n",
		report.Parsed, report.Skipped, report.Failed, report.Duplicates)
	if len(report.Summaries) > 0 {
		fmt.Fprintln(out)
		printSummaries(out, report.Summaries)
	}
}
