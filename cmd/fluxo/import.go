package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/ingest"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var (
		institution  string
		cardLabel    string
		invoiceMonth string
	)

	cmd := &cobra.Command{
		Use:   "import <normalized-csv>...",
		Short: "Stage normalized statement files for review",
		Long: `Stage one or more normalized statement CSVs. Each file becomes its own
staging session; rows are classified and checked for duplicates
immediately, then wait for review via preview/commit.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			bar := progressbar.NewOptions(len(args),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Staging statements..."),
			)

			for _, path := range args {
				rows, readErr := ingest.ReadFile(path)
				if readErr != nil {
					return common.NewUserError(fmt.Sprintf("could not read %s", path), readErr)
				}

				meta := model.SessionMeta{
					Institution:    institution,
					CardLabel:      cardLabel,
					InvoiceMonth:   invoiceMonth,
					SourceFilename: filepath.Base(path),
				}

				sessionID, stageErr := a.pipeline.Stage(ctx, meta, rows)
				if stageErr != nil {
					return stageErr
				}

				records, annErr := a.pipeline.Annotate(ctx, sessionID)
				if annErr != nil {
					return annErr
				}

				_ = bar.Add(1)
				fmt.Printf("\n%s: session %s staged with %d records (%d probable duplicates, %d exact)\n",
					path, sessionID, len(records),
					countStatus(records, model.DuplicateProbable),
					countStatus(records, model.DuplicateExact))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&institution, "institution", "", "institution the statement belongs to (required)")
	cmd.Flags().StringVar(&cardLabel, "card", "", "card label, for card statements")
	cmd.Flags().StringVar(&invoiceMonth, "invoice-month", "", "invoice month as YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("institution")
	_ = cmd.MarkFlagRequired("invoice-month")

	return cmd
}

func countStatus(records []model.StagedRecord, status model.DuplicateStatus) int {
	n := 0
	for i := range records {
		if records[i].DuplicateStatus == status {
			n++
		}
	}
	return n
}
