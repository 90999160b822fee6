package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage category rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := application.Repo.ListRules(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPRIORITY\tENABLED\tPATTERN\tCATEGORY")
		for _, r := range rules {
			fmt.Fprintf(w, "%d\t%d\t%t\t%s\t%s\n", r.ID, r.Priority, r.Enabled, r.Pattern, r.Category)
		}
		return w.Flush()
	},
}

var rulePriority int

var rulesAddCmd = &cobra.Command{
	Use:   "add <pattern> <category>",
	Short: "Add a rule matching pattern as a case-insensitive substring",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rule, err := application.Rules.AddRule(cmd.Context(), args[0], args[1], rulePriority)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d: %q -> %s\n", rule.ID, rule.Pattern, rule.Category)
		return nil
	},
}

func ruleIDCommand(use, short string, fn func(cmd *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			return fn(cmd, id)
		},
	}
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Pin or release the category of one transaction by content hash",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <content-hash> <category>",
	Short: "Pin a transaction to a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Rules.SetOverride(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Override set for %s\n", args[0])
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear <content-hash>",
	Short: "Remove an override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Rules.ClearOverride(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Override cleared for %s\n", args[0])
		return nil
	},
}

func init() {
	rulesAddCmd.Flags().IntVar(&rulePriority, "priority", 0, "higher priorities are evaluated first")

	rulesCmd.AddCommand(
		rulesListCmd,
		rulesAddCmd,
		ruleIDCommand("enable", "Enable a rule", func(cmd *cobra.Command, id int64) error {
			return application.Rules.SetRuleEnabled(cmd.Context(), id, true)
		}),
		ruleIDCommand("disable", "Disable a rule", func(cmd *cobra.Command, id int64) error {
			return application.Rules.SetRuleEnabled(cmd.Context(), id, false)
		}),
		ruleIDCommand("delete", "Delete a rule", func(cmd *cobra.Command, id int64) error {
			return application.Rules.DeleteRule(cmd.Context(), id)
		}),
	)

	overrideCmd.AddCommand(overrideSetCmd, overrideClearCmd)
}
