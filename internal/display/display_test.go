package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zheng/assetgraph/internal/chain"
	"github.com/zheng/assetgraph/internal/extract"
	"github.com/zheng/assetgraph/internal/graph"
	"github.com/zheng/assetgraph/internal/integrity"
	"github.com/zheng/assetgraph/internal/storage"
)

var (
	texture  = &graph.Object{ID: 12, FileID: 2, PathID: 7, Type: "Texture2D", Name: "Skin_Albedo", Size: 4096}
	material = &graph.Object{ID: 11, FileID: 2, PathID: 6, Type: "Material", Name: "Skin", Size: 256}
	player   = &graph.Object{ID: 3, FileID: 2, PathID: 1, Type: "GameObject", Name: "Player", Size: 64}
)

func sampleReports() []*chain.Report {
	return []*chain.Report{
		{
			Target: texture,
			File:   "scene.bundle/CAB-scene",
			Chains: []*chain.Chain{{Hops: []chain.Hop{
				{Referenced: texture, Referrer: material, PropertyPath: "m_SavedProperties.m_TexEnvs[0].m_Texture"},
				{Referenced: material, Referrer: player},
			}}},
		},
		{Target: player, File: "scene.bundle/CAB-scene"},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"", FormatText, true},
		{"text", FormatText, true},
		{"JSON", FormatJSON, true},
		{" yaml ", FormatYAML, true},
		{"xml", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteReportsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReports(&buf, sampleReports(), FormatText))

	want := `Reference chains to [12] Texture2D "Skin_Albedo"
File: scene.bundle/CAB-scene
Mode: shortest chain

Chain 1: 2 hops, root [3] GameObject "Player"
[12] Texture2D "Skin_Albedo"
└── [11] Material "Skin"  (m_SavedProperties.m_TexEnvs[0].m_Texture)
    └── [3] GameObject "Player"

Reference chains to [3] GameObject "Player"
File: scene.bundle/CAB-scene
Mode: shortest chain

No reference chain found.
`
	assert.Equal(t, want, buf.String())
}

func TestWriteReportsTruncated(t *testing.T) {
	r := sampleReports()[0]
	r.FindAll = true
	r.Truncated = true

	out := FormatReportsText([]*chain.Report{r})
	assert.Contains(t, out, "Mode: all chains")
	assert.Contains(t, out, "Stopped after 1 chains")
}

func TestWriteReportsStructured(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReports(&buf, sampleReports(), FormatJSON))

		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "Skin_Albedo", got[0]["target"].(map[string]any)["name"])
		assert.Len(t, got[0]["chains"], 1)
		assert.Nil(t, got[1]["chains"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReports(&buf, sampleReports(), FormatYAML))

		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "scene.bundle/CAB-scene", got[0]["file"])
		hops := got[0]["chains"].([]any)[0].(map[string]any)["hops"].([]any)
		assert.Equal(t, "m_SavedProperties.m_TexEnvs[0].m_Texture", hops[0].(map[string]any)["property_path"])
		assert.False(t, strings.Contains(buf.String(), "truncated"))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, WriteReports(&bytes.Buffer{}, nil, Format("xml")))
	})
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Analyze(&extract.Result{
		Output: "database.db", Matched: 3, Succeeded: 2, Objects: 10, References: 7,
		Failed: []extract.FileError{{Path: "junk.bundle", Err: "unrecognized"}},
	})
	p.FindRefs(sampleReports(), "references.txt")
	p.Stats("database.db", &storage.Stats{Objects: 10, TotalSize: 2048})
	p.Diff(integrity.Compare(map[string]uint32{"a": 1}, map[string]uint32{"a": 2, "b": 3}))

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "non-terminal output must be unstyled")
	assert.Contains(t, out, "2 of 3")
	assert.Contains(t, out, "skipped junk.bundle: unrecognized")
	assert.Contains(t, out, `[12] Texture2D "Skin_Albedo": 2 hops to [3] GameObject "Player"`)
	assert.Contains(t, out, `[3] GameObject "Player": no reference chain found`)
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "no references recorded")
	assert.Contains(t, out, "  + b")
	assert.Contains(t, out, "  ~ a")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "3.0 MiB", FormatBytes(3<<20))
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf).Markdown("# Audit\n"))
	assert.Equal(t, "# Audit\n", buf.String(), "non-terminal output stays markdown")

	rendered, err := RenderMarkdown("# Audit\n\nSome **bold** text.\n", 60)
	require.NoError(t, err)
	assert.Contains(t, rendered, "Audit")
	assert.Contains(t, rendered, "bold")
}
