package main

import (
	"fmt"

	"github.com/fluxo-ledger/fluxo/internal/commit"
	"github.com/spf13/cobra"
)

func commitCmd() *cobra.Command {
	var recordIDs []int64

	cmd := &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Commit a reviewed session to the ledger",
		Long: `Commit the confirmed records of a staged session into the permanent
ledger. Without --records every staged record is confirmed. Records whose
external id meanwhile appeared in the ledger are skipped as duplicates.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.pipeline.Commit(ctx, commit.Request{
				SessionID:  args[0],
				ConfirmAll: len(recordIDs) == 0,
				RecordIDs:  recordIDs,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Committed session %s: %d inserted, %d duplicates skipped, %d errors (of %d)\n",
				args[0], result.Inserted, result.DuplicatesSkipped, result.Errors, result.Total)
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&recordIDs, "records", nil, "commit only these staged record ids")

	return cmd
}
