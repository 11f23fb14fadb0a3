package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zheng/assetgraph/internal/display"
	"github.com/zheng/assetgraph/internal/export"
	"github.com/zheng/assetgraph/internal/storage"
)

func exportCmd() *cobra.Command {
	var (
		outputPath  string
		projectName string
		format      string
		topN        int
		noMermaid   bool
	)

	cmd := &cobra.Command{
		Use:   "export <database>",
		Short: "Write a markdown or HTML audit of a database",
		Long: `Write an audit of an analysed database: containers and their checksums,
object types by size, the largest and most referenced objects, roots and
dangling references.

Markdown printed to a terminal is rendered for reading.

Examples:
  assetgraph export database.db
  assetgraph export database.db -o audit.md --top 50
  assetgraph export database.db --format html -o audit.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "markdown" && format != "md" && format != "html" {
				return fmt.Errorf("unknown export format %q (want markdown or html)", format)
			}

			db, err := storage.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			opts := export.DefaultExportOptions()
			opts.TopN = topN
			opts.IncludeMermaid = !noMermaid
			opts.ProjectName = projectName
			if opts.ProjectName == "" {
				opts.ProjectName = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			var doc bytes.Buffer
			if err := export.NewExporter(db).Export(cmd.Context(), &doc, opts); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			out := doc.Bytes()
			if format == "html" {
				var page bytes.Buffer
				if err := export.WriteHTML(&page, opts.ProjectName+" asset audit", out); err != nil {
					return err
				}
				out = page.Bytes()
			}

			if outputPath == "" {
				if format == "html" {
					_, err := cmd.OutOrStdout().Write(out)
					return err
				}
				return display.NewPrinter(cmd.OutOrStdout()).Markdown(string(out))
			}

			if err := os.WriteFile(outputPath, out, 0644); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Audit written to %s\n", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&projectName, "name", "", "project name in the title (default database file name)")
	cmd.Flags().StringVar(&format, "format", "markdown", "output format: markdown, html")
	cmd.Flags().IntVar(&topN, "top", 20, "rows per ranking table")
	cmd.Flags().BoolVar(&noMermaid, "no-mermaid", false, "omit the chain diagram")

	return cmd
}
