// Package export writes a markdown audit of an analysed asset graph.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zheng/assetgraph/internal/chain"
	"github.com/zheng/assetgraph/internal/graph"
	"github.com/zheng/assetgraph/internal/storage"
)

// Source is the read side of the graph the exporter needs.
type Source interface {
	chain.Store
	GetStats(ctx context.Context) (*storage.Stats, error)
	Files(ctx context.Context) ([]*graph.File, error)
	TypeSummary(ctx context.Context) ([]storage.TypeSize, error)
	LargestObjects(ctx context.Context, limit int) ([]*graph.Object, error)
	MostReferenced(ctx context.Context, limit int) ([]*graph.Object, []int64, error)
	Roots(ctx context.Context, limit int) ([]*graph.Object, error)
	DanglingReferences(ctx context.Context, limit int) ([]*graph.Reference, error)
}

// Exporter generates the audit document from a graph database
type Exporter struct {
	src   Source
	files map[int64]*graph.File
}

// NewExporter creates a new exporter
func NewExporter(src Source) *Exporter {
	return &Exporter{src: src}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	ProjectName    string
	TopN           int  // rows per ranking table
	IncludeMermaid bool // draw shortest chains of the most referenced objects
	Generated      time.Time
}

// DefaultExportOptions returns default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		ProjectName:    "Project",
		TopN:           20,
		IncludeMermaid: true,
	}
}

// Export writes the complete audit document
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts ExportOptions) error {
	if opts.TopN <= 0 {
		opts.TopN = DefaultExportOptions().TopN
	}
	if opts.Generated.IsZero() {
		opts.Generated = time.Now()
	}

	stats, err := e.src.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	files, err := e.src.Files(ctx)
	if err != nil {
		return fmt.Errorf("failed to get files: %w", err)
	}
	e.files = make(map[int64]*graph.File, len(files))
	for _, f := range files {
		e.files[f.ID] = f
	}

	fmt.Fprintf(w, "# %s asset audit\n\n", opts.ProjectName)
	fmt.Fprintf(w, "> Generated: %s\n", opts.Generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "> Containers: %d | Objects: %d | References: %d | Roots: %d | Dangling: %d\n\n",
		stats.Containers, stats.Objects, stats.References, stats.Roots, stats.DanglingRefs)
	if !stats.HasReferences {
		fmt.Fprintf(w, "_Extracted without references: chain sections are empty._\n\n")
	}

	e.writeContainers(w, files)

	steps := []func(context.Context, io.Writer, ExportOptions) error{
		e.writeTypes,
		e.writeLargest,
		e.writeMostReferenced,
		e.writeRoots,
		e.writeDangling,
	}
	for _, step := range steps {
		if err := step(ctx, w, opts); err != nil {
			return err
		}
	}
	return nil
}

// writeContainers lists containers and the serialized files inside them
func (e *Exporter) writeContainers(w io.Writer, files []*graph.File) {
	fmt.Fprintf(w, "## Containers\n\n")
	if len(files) == 0 {
		fmt.Fprintf(w, "_No containers_\n\n")
		return
	}

	children := make(map[int64][]*graph.File)
	for _, f := range files {
		if f.ParentID != 0 {
			children[f.ParentID] = append(children[f.ParentID], f)
		}
	}

	fmt.Fprintf(w, "```\n")
	for _, f := range files {
		if f.Kind != graph.FileKindContainer {
			continue
		}
		crc := "-"
		if f.CRC32 != nil {
			crc = fmt.Sprintf("%08x", *f.CRC32)
		}
		fmt.Fprintf(w, "%s  (%d bytes, crc32 %s)\n", f.Path, f.Size, crc)
		units := children[f.ID]
		for i, u := range units {
			prefix := "├──"
			if i == len(units)-1 {
				prefix = "└──"
			}
			fmt.Fprintf(w, "%s %s\n", prefix, strings.TrimPrefix(u.Path, f.Path+"/"))
		}
	}
	fmt.Fprintf(w, "```\n\n")
}

func (e *Exporter) writeTypes(ctx context.Context, w io.Writer, _ ExportOptions) error {
	types, err := e.src.TypeSummary(ctx)
	if err != nil {
		return fmt.Errorf("failed to summarise types: %w", err)
	}

	fmt.Fprintf(w, "## Types by size\n\n")
	if len(types) == 0 {
		fmt.Fprintf(w, "_No objects_\n\n")
		return nil
	}
	fmt.Fprintf(w, "| Type | Objects | Total size |\n")
	fmt.Fprintf(w, "|------|---------|------------|\n")
	for _, ts := range types {
		fmt.Fprintf(w, "| %s | %d | %d |\n", ts.Type, ts.Count, ts.TotalSize)
	}
	fmt.Fprintf(w, "\n")
	return nil
}

func (e *Exporter) writeLargest(ctx context.Context, w io.Writer, opts ExportOptions) error {
	objs, err := e.src.LargestObjects(ctx, opts.TopN)
	if err != nil {
		return fmt.Errorf("failed to get largest objects: %w", err)
	}

	fmt.Fprintf(w, "## Largest objects\n\n")
	e.writeObjectTable(w, objs, nil)
	return nil
}

func (e *Exporter) writeMostReferenced(ctx context.Context, w io.Writer, opts ExportOptions) error {
	objs, counts, err := e.src.MostReferenced(ctx, opts.TopN)
	if err != nil {
		return fmt.Errorf("failed to get most referenced objects: %w", err)
	}

	fmt.Fprintf(w, "## Most referenced objects\n\n")
	e.writeObjectTable(w, objs, counts)

	if opts.IncludeMermaid && len(objs) > 0 {
		if err := e.writeChainDiagram(ctx, w, objs); err != nil {
			return err
		}
	}
	return nil
}

// writeChainDiagram draws the shortest chain of each listed object as one Mermaid flowchart
func (e *Exporter) writeChainDiagram(ctx context.Context, w io.Writer, objs []*graph.Object) error {
	res := chain.NewResolver(e.src, nil)

	seen := make(map[string]bool)
	var lines []string
	for _, obj := range objs {
		id := obj.ID
		reports, err := res.Resolve(ctx, chain.Query{ObjectID: &id})
		if err != nil {
			return fmt.Errorf("failed to resolve chain for %d: %w", obj.ID, err)
		}
		for _, r := range reports {
			for _, c := range r.Chains {
				for _, h := range c.Hops {
					line := fmt.Sprintf("    %s --> %s", mermaidNode(h.Referrer), mermaidNode(h.Referenced))
					if !seen[line] {
						seen[line] = true
						lines = append(lines, line)
					}
				}
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}

	fmt.Fprintf(w, "### Shortest reference chains\n\n```mermaid\nflowchart BT\n")
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
	fmt.Fprintf(w, "```\n\n")
	return nil
}

func (e *Exporter) writeRoots(ctx context.Context, w io.Writer, opts ExportOptions) error {
	roots, err := e.src.Roots(ctx, opts.TopN)
	if err != nil {
		return fmt.Errorf("failed to get roots: %w", err)
	}

	fmt.Fprintf(w, "## Roots\n\n")
	fmt.Fprintf(w, "Objects nothing references. Showing up to %d.\n\n", opts.TopN)
	e.writeObjectTable(w, roots, nil)
	return nil
}

func (e *Exporter) writeDangling(ctx context.Context, w io.Writer, opts ExportOptions) error {
	refs, err := e.src.DanglingReferences(ctx, opts.TopN)
	if err != nil {
		return fmt.Errorf("failed to get dangling references: %w", err)
	}

	fmt.Fprintf(w, "## Dangling references\n\n")
	if len(refs) == 0 {
		fmt.Fprintf(w, "_None_\n\n")
		return nil
	}
	fmt.Fprintf(w, "| Source | Missing target | Property |\n")
	fmt.Fprintf(w, "|--------|----------------|----------|\n")
	for _, r := range refs {
		fmt.Fprintf(w, "| %d | %d | %s |\n", r.Source, r.Target, r.PropertyPath)
	}
	fmt.Fprintf(w, "\n")
	return nil
}

func (e *Exporter) writeObjectTable(w io.Writer, objs []*graph.Object, counts []int64) {
	if len(objs) == 0 {
		fmt.Fprintf(w, "_None_\n\n")
		return
	}

	if counts != nil {
		fmt.Fprintf(w, "| ID | Type | Name | Size | File | Referrers |\n")
		fmt.Fprintf(w, "|----|------|------|------|------|-----------|\n")
	} else {
		fmt.Fprintf(w, "| ID | Type | Name | Size | File |\n")
		fmt.Fprintf(w, "|----|------|------|------|------|\n")
	}
	for i, o := range objs {
		file := ""
		if f, ok := e.files[o.FileID]; ok {
			file = f.Path
		}
		fmt.Fprintf(w, "| %d | %s | %s | %d | %s |", o.ID, o.Type, escapeCell(o.Name), o.Size, file)
		if counts != nil {
			fmt.Fprintf(w, " %d |", counts[i])
		}
		fmt.Fprintf(w, "\n")
	}
	fmt.Fprintf(w, "\n")
}

func mermaidNode(o *graph.Object) string {
	label := o.Type
	if o.Name != "" {
		label += " " + strings.ReplaceAll(o.Name, `"`, "#quot;")
	}
	return fmt.Sprintf(`o%d["%s"]`, o.ID, label)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
