package main

import (
	"fmt"

	"github.com/dvloznov/statement-ledger/internal/gcsuploader"
	"github.com/spf13/cobra"
)

var fetchDir string

var fetchCmd = &cobra.Command{
	Use:   "fetch <gs://bucket/object.pdf>...",
	Short: "Download statement PDFs from GCS into the ingest folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := fetchDir
		if dir == "" {
			dir = application.Config.Ingest.Folder
		}
		if dir == "" {
			return fmt.Errorf("no --to folder given and ingest.folder is not set")
		}

		for _, uri := range args {
			dest, err := gcsuploader.FetchStatement(cmd.Context(), uri, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s -> %s\n", uri, dest)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "to", "", "destination folder (default ingest.folder)")
}
