package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Inspect or reset which files have been processed",
}

var trackerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := application.Service.Tracker().List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tTYPE\tPROCESSED AT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.FileName, r.FileType, r.ProcessedAt.Local().Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var trackerForgetCmd = &cobra.Command{
	Use:   "forget <file-name>",
	Short: "Forget one file so the next ingest picks it up again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := application.Service.Tracker().Forget(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s was not tracked\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
		return nil
	},
}

var trackerClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every processed file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.Service.Tracker().ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d records\n", n)
		return nil
	},
}

func init() {
	trackerCmd.AddCommand(trackerListCmd, trackerForgetCmd, trackerClearCmd)
}
