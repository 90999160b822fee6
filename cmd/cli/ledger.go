package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/spf13/cobra"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize <description>",
	Short: "Show the category a description resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), application.Service.Categorize(args[0]))
		return nil
	},
}

var recategorizeCmd = &cobra.Command{
	Use:   "recategorize",
	Short: "Re-apply the current rules and overrides to every stored transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := application.Recategorize(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d transactions recategorized\n", n)
		return nil
	},
}

var regenerate bool

var summariesCmd = &cobra.Command{
	Use:   "summaries",
	Short: "List monthly summaries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			summaries []domain.MonthlySummary
			err       error
		)
		if regenerate {
			summaries, err = application.Service.RegenerateMonthlySummaries(ctx)
		} else {
			summaries, err = application.Repo.ListMonthlySummaries(ctx)
		}
		if err != nil {
			return err
		}
		printSummaries(cmd.OutOrStdout(), summaries)
		return nil
	},
}

var transactionsMonth string

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List stored transactions with their content hashes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		txs, err := application.Repo.ListTransactions(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tAMOUNT\tCATEGORY\tDESCRIPTION\tHASH")
		for _, tx := range txs {
			if transactionsMonth != "" && domain.MonthOf(tx.Date) != transactionsMonth {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				tx.Date.Format(domain.DateLayout), tx.Amount.StringFixed(2), tx.Category, tx.Description, tx.ContentHash)
		}
		return w.Flush()
	},
}

func init() {
	summariesCmd.Flags().BoolVar(&regenerate, "regenerate", false, "rebuild the summaries from the ledger first")
	transactionsCmd.Flags().StringVar(&transactionsMonth, "month", "", "only show one month (YYYY-MM)")
}

func printSummaries(out io.Writer, summaries []domain.MonthlySummary) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "MONTH\tINCOME\tEXPENSES\tSAVINGS\tTRANSACTIONS\t")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t\n",
			s.Month, s.TotalIncome.StringFixed(2), s.TotalExpenses.StringFixed(2), s.Savings.StringFixed(2), s.TransactionCount)
	}
	w.Flush()
}
