package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/assetgraph/internal/graph"
	"github.com/zheng/assetgraph/internal/storage"
)

func newDB(t *testing.T, refs []*graph.Reference) *storage.DB {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	crc := uint32(0xcbf43926)
	w, err := db.NewWriter(0)
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, &storage.Batch{
		Files: []*graph.File{
			{ID: 1, Path: "scene.bundle", Kind: graph.FileKindContainer, Size: 2048, CRC32: &crc},
			{ID: 2, Path: "scene.bundle/CAB-scene", Kind: graph.FileKindSerializedFile, ParentID: 1, Size: 2000},
		},
		Objects: []*graph.Object{
			{ID: 1, FileID: 2, PathID: 1, Type: "GameObject", Name: "Player", Size: 64},
			{ID: 2, FileID: 2, PathID: 2, Type: "Material", Name: "Skin|Red", Size: 256},
			{ID: 3, FileID: 2, PathID: 3, Type: "Texture2D", Name: "Skin_Albedo", Size: 4096},
		},
		Refs: refs,
	}))
	require.NoError(t, w.Close(ctx))
	return db
}

func TestExport(t *testing.T) {
	db := newDB(t, []*graph.Reference{
		{Source: 1, Target: 2, PropertyPath: "m_Materials[0]"},
		{Source: 2, Target: 3, PropertyPath: "m_MainTex"},
		{Source: 2, Target: 77},
	})

	var buf bytes.Buffer
	opts := DefaultExportOptions()
	opts.ProjectName = "Demo"
	opts.Generated = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, NewExporter(db).Export(context.Background(), &buf, opts))
	out := buf.String()

	assert.Contains(t, out, "# Demo asset audit")
	assert.Contains(t, out, "> Generated: 2024-05-01 12:00:00")
	assert.Contains(t, out, "> Containers: 1 | Objects: 3 | References: 3 | Roots: 1 | Dangling: 1")
	assert.Contains(t, out, "scene.bundle  (2048 bytes, crc32 cbf43926)\n└── CAB-scene")
	assert.Contains(t, out, "| Texture2D | 1 | 4096 |")
	assert.Contains(t, out, "| 3 | Texture2D | Skin_Albedo | 4096 | scene.bundle/CAB-scene |")
	assert.Contains(t, out, `| 2 | Material | Skin\|Red | 256 | scene.bundle/CAB-scene | 1 |`)
	assert.Contains(t, out, "| 2 | 77 |  |")
	assert.Contains(t, out, "```mermaid")
	assert.Contains(t, out, `o2["Material Skin|Red"] --> o3["Texture2D Skin_Albedo"]`)
	assert.Contains(t, out, `o1["GameObject Player"] --> o2["Material Skin|Red"]`)
	assert.NotContains(t, out, "Extracted without references")
}

func TestExportWithoutReferences(t *testing.T) {
	db := newDB(t, nil)

	var buf bytes.Buffer
	require.NoError(t, NewExporter(db).Export(context.Background(), &buf, ExportOptions{IncludeMermaid: true}))
	out := buf.String()

	assert.Contains(t, out, "_Extracted without references")
	assert.Contains(t, out, "## Dangling references\n\n_None_")
	assert.NotContains(t, out, "```mermaid")
	assert.Contains(t, out, "Showing up to 20.")
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	md := "# A & B audit\n\n| Type | Objects |\n|------|---------|\n| Mesh | 2 |\n"
	require.NoError(t, WriteHTML(&buf, "A & B", []byte(md)))

	out := buf.String()
	assert.Contains(t, out, "<title>A &amp; B</title>")
	assert.Contains(t, out, "<h1>A &amp; B audit</h1>")
	assert.Contains(t, out, "<td>Mesh</td>")
}
