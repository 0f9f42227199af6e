package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/spf13/cobra"
)

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <session-id>",
		Short: "Show a staged session with its annotations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			preview, err := a.pipeline.GetPreview(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Session %s: %s %s (%d records, sum %s)\n\n",
				preview.SessionID, preview.Meta.Institution,
				preview.Meta.InvoiceMonth, preview.TotalRecords,
				preview.SumAmount.StringFixed(2))

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tAMOUNT\tGROUP\tORIGIN\tDUPLICATE")
			for i := range preview.Records {
				r := &preview.Records[i]
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID,
					r.Date.Format("2006-01-02"),
					r.Description,
					r.Amount.StringFixed(2),
					r.Group,
					r.ClassificationOrigin,
					formatDuplicate(r))
			}
			return w.Flush()
		},
	}
}

func formatDuplicate(r *model.StagedRecord) string {
	switch r.DuplicateStatus {
	case model.DuplicateExact:
		return "exact"
	case model.DuplicateProbable:
		return fmt.Sprintf("probable (%.3f)", r.DuplicateSimilarity)
	case model.DuplicateNone:
		return "-"
	default:
		return "?"
	}
}
