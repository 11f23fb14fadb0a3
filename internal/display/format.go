// Package display renders chain reports and terminal summaries.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zheng/assetgraph/internal/chain"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json or yaml, case-insensitively. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or yaml)", s)
	}
}

// WriteReports writes reports to w in the given format.
func WriteReports(w io.Writer, reports []*chain.Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		_, err := io.WriteString(w, FormatReportsText(reports))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// FormatReportsText renders reports as plain text. Each chain is drawn as a
// tree from the queried object up to its root.
func FormatReportsText(reports []*chain.Report) string {
	var sb strings.Builder
	for i, r := range reports {
		if i > 0 {
			sb.WriteString("\n")
		}
		writeReport(&sb, r)
	}
	return sb.String()
}

func writeReport(sb *strings.Builder, r *chain.Report) {
	fmt.Fprintf(sb, "Reference chains to %s\n", r.Target.Label())
	if r.File != "" {
		fmt.Fprintf(sb, "File: %s\n", r.File)
	}
	if r.FindAll {
		sb.WriteString("Mode: all chains\n")
	} else {
		sb.WriteString("Mode: shortest chain\n")
	}
	sb.WriteString("\n")

	if len(r.Chains) == 0 {
		sb.WriteString("No reference chain found.\n")
		return
	}

	for i, c := range r.Chains {
		if i > 0 {
			sb.WriteString("\n")
		}
		hops := "hops"
		if len(c.Hops) == 1 {
			hops = "hop"
		}
		fmt.Fprintf(sb, "Chain %d: %d %s, root %s\n", i+1, len(c.Hops), hops, c.Root().Label())
		sb.WriteString(FormatChain(c))
	}

	if r.Truncated {
		fmt.Fprintf(sb, "\nStopped after %d chains; more may exist.\n", len(r.Chains))
	}
}

// FormatChain draws one chain with box-drawing characters, the queried
// object first. Each line names the referrer and the property holding the pointer.
func FormatChain(c *chain.Chain) string {
	var sb strings.Builder
	if len(c.Hops) == 0 {
		return ""
	}
	sb.WriteString(c.Hops[0].Referenced.Label())
	sb.WriteString("\n")

	indent := ""
	for _, h := range c.Hops {
		sb.WriteString(indent)
		sb.WriteString("└── ")
		sb.WriteString(h.Referrer.Label())
		if h.PropertyPath != "" {
			fmt.Fprintf(&sb, "  (%s)", h.PropertyPath)
		}
		sb.WriteString("\n")
		indent += "    "
	}
	return sb.String()
}
