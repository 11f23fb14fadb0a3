package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/extract"
	"github.com/zheng/assetgraph/internal/storage"
)

func analyzeCmd() *cobra.Command {
	var (
		outputPath string
		pattern    string
		skip       bool
		workers    int
		batchSize  int
	)

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Extract the object graph of every container under a directory",
		Long: `Walk a directory of Unity containers and write every object and every
reference between objects into a fresh SQLite database.

Files that cannot be opened as a container are skipped with a warning.
The command fails only when no file could be extracted or the database
cannot be written.

Examples:
  assetgraph analyze ./Bundles
  assetgraph analyze ./Bundles -o level1.db -p "*.bundle"
  assetgraph analyze ./Bundles -s          # objects only, no references`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			info, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("input path: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("input path %s is not a directory", root)
			}

			opts := analyzeOptions(cmd, root, outputPath, pattern, skip, workers, batchSize)
			res, err := extract.Run(cmd.Context(), opts)
			if res != nil {
				display.NewPrinter(cmd.OutOrStdout()).Analyze(res)
			}
			if err != nil {
				return fmt.Errorf("analyze failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "database.db", "output database path")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "*", "glob matched against file names")
	cmd.Flags().BoolVarP(&skip, "skip-integrity", "s", false, "skip checksums and reference extraction")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel file readers (0 = one per CPU)")
	cmd.Flags().IntVar(&batchSize, "batch-size", storage.DefaultBatchSize, "rows per committed transaction")

	return cmd
}

// analyzeOptions merges flags over the [analyze] config section
func analyzeOptions(cmd *cobra.Command, root, outputPath, pattern string, skip bool, workers, batchSize int) extract.Options {
	return extract.Options{
		Root:                       root,
		Output:                     stringOption(cmd, "output", outputPath, cfg.Analyze.Output),
		Pattern:                    stringOption(cmd, "pattern", pattern, cfg.Analyze.Pattern),
		SkipIntegrityAndReferences: boolOption(cmd, "skip-integrity", skip, cfg.Analyze.SkipIntegrity),
		Workers:                    intOption(cmd, "workers", workers, cfg.Analyze.Workers),
		BatchSize:                  intOption(cmd, "batch-size", batchSize, cfg.Analyze.BatchSize),
		Logger:                     slog.Default(),
	}
}
