package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/storage"
)

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats <database>",
		Short: "Show object, reference and root counts of a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			stats, err := db.GetStats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), stats)
			}
			display.NewPrinter(cmd.OutOrStdout()).Stats(args[0], stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
