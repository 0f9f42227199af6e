package main

import (
	"fmt"

	"github.com/fluxo-ledger/fluxo/internal/rebuild"
	"github.com/spf13/cobra"
)

func rebuildCmd() *cobra.Command {
	var institution string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute the auxiliary classification base from the ledger",
		Long: `Recompute recurring-merchant patterns and installment chains from the
permanent ledger. Commits schedule this automatically in the background;
the command exists for manual runs after bulk edits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.pipeline.Rebuild(ctx, rebuild.Scope{Institution: institution}); err != nil {
				return err
			}

			patterns, err := a.store.GetRecurringPatterns(ctx)
			if err != nil {
				return err
			}
			chains, err := a.store.GetInstallmentChains(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Auxiliary base rebuilt: %d recurring patterns, %d installment chains\n",
				len(patterns), len(chains))
			return nil
		},
	}

	cmd.Flags().StringVar(&institution, "institution", "", "restrict the rebuild to one institution")

	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Println("Database is up to date")
			return nil
		},
	}
}
