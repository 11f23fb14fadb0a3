package display

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/zheng/assetgraph/internal/chain"
	"github.com/zheng/assetgraph/internal/extract"
	"github.com/zheng/assetgraph/internal/integrity"
	"github.com/zheng/assetgraph/internal/storage"
)

const (
	symbolSuccess = "✓"
	symbolWarning = "⚠"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

// Printer writes human summaries. Styling is applied only when the
// destination is a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter returns a printer for w, styled when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, styled: styled}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Analyze prints the outcome of an extraction run.
func (p *Printer) Analyze(res *extract.Result) {
	p.line("%s %s", symbolSuccess, p.render(boldStyle, "Analysis complete"))
	p.line("  %-12s %s", "Database:", p.render(accentStyle, res.Output))
	p.line("  %-12s %d of %d", "Containers:", res.Succeeded, res.Matched)
	p.line("  %-12s %d", "Objects:", res.Objects)
	p.line("  %-12s %d", "References:", res.References)
	p.line("  %-12s %s", "Duration:", p.render(mutedStyle, res.Duration.Round(time.Millisecond).String()))
	for _, f := range res.Failed {
		p.line("%s skipped %s: %s", symbolWarning, p.render(accentStyle, f.Path), p.render(mutedStyle, f.Err))
	}
}

// FindRefs prints a one-line-per-target digest of a find-refs run.
func (p *Printer) FindRefs(reports []*chain.Report, output string) {
	for _, r := range reports {
		switch n := len(r.Chains); {
		case n == 0:
			p.line("%s %s: no reference chain found", symbolWarning, p.render(boldStyle, r.Target.Label()))
		case r.FindAll:
			p.line("%s %s: %d chains", symbolSuccess, p.render(boldStyle, r.Target.Label()), n)
		default:
			p.line("%s %s: %d hops to %s", symbolSuccess, p.render(boldStyle, r.Target.Label()),
				len(r.Chains[0].Hops), r.Chains[0].Root().Label())
		}
	}
	p.line("Report written to %s", p.render(accentStyle, output))
}

// Stats prints database counts.
func (p *Printer) Stats(path string, s *storage.Stats) {
	p.line("%s", p.render(boldStyle, "Database: "+path))
	p.line("  %-22s %d", "Files:", s.Files)
	p.line("  %-22s %d", "Containers:", s.Containers)
	p.line("  %-22s %d", "Objects:", s.Objects)
	p.line("  %-22s %d", "References:", s.References)
	p.line("  %-22s %d", "Dangling references:", s.DanglingRefs)
	p.line("  %-22s %d", "Roots:", s.Roots)
	p.line("  %-22s %s", "Total object size:", FormatBytes(s.TotalSize))
	if !s.HasChecksums {
		p.line("%s", p.render(mutedStyle, "  extracted without integrity checksums"))
	}
	if !s.HasReferences {
		p.line("%s", p.render(mutedStyle, "  no references recorded; find-refs will find no chains"))
	}
}

// Diff prints container checksum changes between two analyses.
func (p *Printer) Diff(d *integrity.Diff) {
	if !d.HasChanges() {
		p.line("%s no container changes (%d unchanged)", symbolSuccess, len(d.Unchanged))
		return
	}
	for _, path := range d.Added {
		p.line("  + %s", p.render(accentStyle, path))
	}
	for _, path := range d.Removed {
		p.line("  - %s", p.render(mutedStyle, path))
	}
	for _, path := range d.Changed {
		p.line("  ~ %s", p.render(boldStyle, path))
	}
	p.line("%d added, %d removed, %d changed, %d unchanged",
		len(d.Added), len(d.Removed), len(d.Changed), len(d.Unchanged))
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
