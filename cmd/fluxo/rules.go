package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fluxo-ledger/fluxo/internal/classify"
	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesImportCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List classification rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			rules, err := a.store.ListRules(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tACTIVE\tGROUP\tSUBGROUP\tPATTERNS")
			for i := range rules {
				r := &rules[i]
				active := "yes"
				if !r.IsActive {
					active = "no"
				}
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n",
					r.ID, r.Priority, active, r.Group, r.Subgroup,
					strings.Join(r.Patterns, ", "))
			}
			return w.Flush()
		},
	}
}

func rulesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <rules-yaml>",
		Short: "Import classification rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			rules, err := classify.LoadRulesFile(args[0])
			if err != nil {
				return err
			}

			for i := range rules {
				if err := a.store.SaveRule(ctx, &rules[i]); err != nil {
					return fmt.Errorf("failed to save rule %d: %w", i+1, err)
				}
			}

			fmt.Printf("Imported %d rules from %s\n", len(rules), args[0])
			return nil
		},
	}
}
