package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/integrity"
	"github.com/zheng/assetgraph/internal/storage"
)

func diffCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "diff <old-database> <new-database>",
		Short: "List containers whose checksum changed between two analyses",
		Long: `Compare the container checksums recorded by two analyze runs.
Containers extracted with --skip-integrity have no checksum and are not compared.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := checksums(cmd, args[0])
			if err != nil {
				return err
			}
			after, err := checksums(cmd, args[1])
			if err != nil {
				return err
			}

			d := integrity.Compare(before, after)
			if jsonOutput {
				return outputJSON(cmd.OutOrStdout(), d)
			}
			display.NewPrinter(cmd.OutOrStdout()).Diff(d)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func checksums(cmd *cobra.Command, path string) (map[string]uint32, error) {
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer db.Close()

	sums, err := db.FileChecksums(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to read checksums from %s: %w", path, err)
	}
	return sums, nil
}
