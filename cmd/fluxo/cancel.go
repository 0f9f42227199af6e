package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Discard a staged session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.pipeline.Cancel(ctx, args[0]); err != nil {
				return err
			}

			fmt.Printf("Session %s discarded\n", args[0])
			return nil
		},
	}
}
