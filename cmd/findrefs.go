package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/chain"
	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/storage"
)

func findRefsCmd() *cobra.Command {
	var (
		outputPath string
		objectID   int64
		objectName string
		objectType string
		findAll    bool
		maxChains  int
		format     string
	)

	cmd := &cobra.Command{
		Use:   "find-refs <database>",
		Short: "Show what keeps an object loaded",
		Long: `Follow references backwards from an object to a root object, one that
nothing references, and write the chain to a report file.

Exactly one of --object-id and --object-name is required. A name that
matches several objects produces one report per object.

By default the shortest chain is reported. --find-all lists every chain
without repeated objects; on densely connected graphs that number can grow
exponentially, so --max-chains can stop the search early.

Examples:
  assetgraph find-refs database.db -i 1042
  assetgraph find-refs database.db -n Skin_Albedo -t Texture2D -a
  assetgraph find-refs database.db -n Player --format json -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := chain.Query{
				ObjectName: objectName,
				ObjectType: objectType,
				FindAll:    findAll,
				MaxChains:  maxChains,
			}
			if cmd.Flags().Changed("object-id") {
				q.ObjectID = &objectID
			}
			if err := q.Validate(); err != nil {
				return err
			}

			f, err := display.ParseFormat(stringOption(cmd, "format", format, cfg.FindRefs.Format))
			if err != nil {
				return err
			}
			output := stringOption(cmd, "output", outputPath, cfg.FindRefs.Output)

			db, err := storage.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			reports, err := chain.NewResolver(db, slog.Default()).Resolve(cmd.Context(), q)
			if err != nil {
				return err
			}

			if output == "-" {
				return display.WriteReports(cmd.OutOrStdout(), reports, f)
			}
			if err := writeReportFile(output, reports, f); err != nil {
				return err
			}
			display.NewPrinter(cmd.OutOrStdout()).FindRefs(reports, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "references.txt", "report file, - for stdout")
	cmd.Flags().Int64VarP(&objectID, "object-id", "i", 0, "object id to resolve")
	cmd.Flags().StringVarP(&objectName, "object-name", "n", "", "object name to resolve")
	cmd.Flags().StringVarP(&objectType, "object-type", "t", "", "restrict --object-name to one type")
	cmd.Flags().BoolVarP(&findAll, "find-all", "a", false, "list every chain instead of the shortest")
	cmd.Flags().IntVar(&maxChains, "max-chains", 0, "stop --find-all after this many chains (0 = no limit)")
	cmd.Flags().StringVar(&format, "format", "text", "report format: text, json, yaml")

	return cmd
}

// writeReportFile writes the report, removing a partially written file on failure
func writeReportFile(path string, reports []*chain.Report, format display.Format) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return display.WriteReports(f, reports, format)
}
