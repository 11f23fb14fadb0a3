package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/extract"
	"github.com/zheng/assetgraph/internal/storage"
	"github.com/zheng/assetgraph/internal/watcher"
)

func watchCmd() *cobra.Command {
	var (
		outputPath string
		pattern    string
		skip       bool
		workers    int
		batchSize  int
		debounceMs int
	)

	cmd := &cobra.Command{
		Use:   "watch <path>",
		Short: "Re-extract the database whenever containers change",
		Long: `Run analyze once, then watch the directory and run it again after
matching files change. Changes are debounced so a burst of writes causes
one extraction.

Examples:
  assetgraph watch ./Bundles -p "*.bundle"
  assetgraph watch ./Bundles --debounce 2000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]
			if info, err := os.Stat(root); err != nil {
				return fmt.Errorf("input path: %w", err)
			} else if !info.IsDir() {
				return fmt.Errorf("input path %s is not a directory", root)
			}

			opts := analyzeOptions(cmd, root, outputPath, pattern, skip, workers, batchSize)
			delay := time.Duration(intOption(cmd, "debounce", debounceMs, cfg.Watch.DebounceMS)) * time.Millisecond
			out := cmd.OutOrStdout()
			printer := display.NewPrinter(out)

			fmt.Fprintln(out, "Running initial analysis...")
			res, err := extract.Run(cmd.Context(), opts)
			if res != nil {
				printer.Analyze(res)
			}
			if err != nil && !errors.Is(err, extract.ErrNoContainers) {
				return fmt.Errorf("initial analysis failed: %w", err)
			}

			w, err := watcher.New(opts,
				watcher.WithDebounceDelay(delay),
				watcher.WithOnAnalysisStart(func(changed []string) {
					fmt.Fprintf(out, "[%s] %d changed, re-extracting...\n", time.Now().Format("15:04:05"), len(changed))
				}),
				watcher.WithOnAnalysisDone(printer.Analyze),
				watcher.WithOnError(func(err error) {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] error: %v\n", time.Now().Format("15:04:05"), err)
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to start watcher: %w", err)
			}
			w.Start()
			defer w.Stop()

			fmt.Fprintf(out, "\nWatching %s (debounce %v). Press Ctrl+C to stop.\n", root, delay)
			<-cmd.Context().Done()
			fmt.Fprintln(out, "\nStopping...")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "database.db", "output database path")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "*", "glob matched against file names")
	cmd.Flags().BoolVarP(&skip, "skip-integrity", "s", false, "skip checksums and reference extraction")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel file readers (0 = one per CPU)")
	cmd.Flags().IntVar(&batchSize, "batch-size", storage.DefaultBatchSize, "rows per committed transaction")
	cmd.Flags().IntVar(&debounceMs, "debounce", int(watcher.DefaultDebounce/time.Millisecond), "debounce delay in milliseconds")

	return cmd
}
