package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zheng/assetgraph/internal/graph"
)

// seed writes a small graph: A(root) <- B <- C, plus a dangling edge C -> 99
// and a parallel edge C -> B.
func seed(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	crc := uint32(0xdeadbeef)
	w, err := db.NewWriter(3)
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, &Batch{
		Files: []*graph.File{
			{ID: 1, Path: "a.bundle", Kind: graph.FileKindContainer, Size: 100, CRC32: &crc},
			{ID: 2, Path: "a.bundle/CAB-a", Kind: graph.FileKindSerializedFile, ParentID: 1, Size: 90},
		},
		Objects: []*graph.Object{
			{ID: 1, FileID: 2, PathID: 1, Type: "GameObject", Name: "A", Size: 10},
			{ID: 2, FileID: 2, PathID: 2, Type: "Transform", Name: "B", Size: 20},
			{ID: 3, FileID: 2, PathID: 3, Type: "Material", Name: "C", Size: 30},
		},
	}))
	require.NoError(t, w.Add(ctx, &Batch{
		Refs: []*graph.Reference{
			{Source: 2, Target: 1, PropertyPath: "m_GameObject"},
			{Source: 3, Target: 2},
			{Source: 3, Target: 2, PropertyPath: "m_Parent"},
			{Source: 3, Target: 99},
		},
	}))
	require.NoError(t, w.Close(ctx))

	stats := w.Stats()
	assert.Equal(t, WriteStats{Files: 2, Objects: 3, Refs: 4, Commits: 2}, stats)
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	seed(t, db)

	t.Run("lookup by id", func(t *testing.T) {
		obj, err := db.ObjectByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, &graph.Object{ID: 2, FileID: 2, PathID: 2, Type: "Transform", Name: "B", Size: 20}, obj)

		_, err = db.ObjectByID(ctx, 99)
		assert.ErrorIs(t, err, ErrObjectNotFound)
	})

	t.Run("lookup by name and type", func(t *testing.T) {
		objs, err := db.ObjectsByName(ctx, "C", "")
		require.NoError(t, err)
		require.Len(t, objs, 1)
		assert.Equal(t, int64(3), objs[0].ID)

		objs, err = db.ObjectsByName(ctx, "C", "Texture2D")
		require.NoError(t, err)
		assert.Empty(t, objs)
	})

	t.Run("edges collapse parallel references", func(t *testing.T) {
		in, err := db.IncomingEdges(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []int64{3}, in)

		out, err := db.OutgoingEdges(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 99}, out)

		in, err = db.IncomingEdges(ctx, 3)
		require.NoError(t, err)
		assert.Empty(t, in)
	})

	t.Run("edge property prefers a recorded path", func(t *testing.T) {
		prop, err := db.EdgeProperty(ctx, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, "m_Parent", prop)

		prop, err = db.EdgeProperty(ctx, 1, 3)
		require.NoError(t, err)
		assert.Empty(t, prop)
	})

	t.Run("roots by anti-join", func(t *testing.T) {
		root, err := db.IsRoot(ctx, 3)
		require.NoError(t, err)
		assert.True(t, root)

		root, err = db.IsRoot(ctx, 1)
		require.NoError(t, err)
		assert.False(t, root)

		roots, err := db.Roots(ctx, 0)
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, "C", roots[0].Name)
	})

	t.Run("stats", func(t *testing.T) {
		s, err := db.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), s.Files)
		assert.Equal(t, int64(1), s.Containers)
		assert.Equal(t, int64(3), s.Objects)
		assert.Equal(t, int64(4), s.References)
		assert.Equal(t, int64(1), s.DanglingRefs)
		assert.Equal(t, int64(1), s.Roots)
		assert.Equal(t, int64(60), s.TotalSize)
		assert.True(t, s.HasChecksums)
	})

	t.Run("checksums and files", func(t *testing.T) {
		sums, err := db.FileChecksums(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]uint32{"a.bundle": 0xdeadbeef}, sums)

		f, err := db.FileByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(1), f.ParentID)
		assert.Nil(t, f.CRC32)

		files, err := db.Files(ctx)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("audit aggregates", func(t *testing.T) {
		types, err := db.TypeSummary(ctx)
		require.NoError(t, err)
		require.Len(t, types, 3)
		assert.Equal(t, TypeSize{Type: "Material", Count: 1, TotalSize: 30}, types[0])

		largest, err := db.LargestObjects(ctx, 1)
		require.NoError(t, err)
		require.Len(t, largest, 1)
		assert.Equal(t, int64(3), largest[0].ID)

		objs, counts, err := db.MostReferenced(ctx, 5)
		require.NoError(t, err)
		require.Len(t, objs, 2)
		assert.Equal(t, []int64{1, 1}, counts)

		dangling, err := db.DanglingReferences(ctx, 10)
		require.NoError(t, err)
		require.Len(t, dangling, 1)
		assert.Equal(t, graph.Reference{Source: 3, Target: 99}, *dangling[0])
	})
}

func TestEveryEdgeSourceExists(t *testing.T) {
	ctx := context.Background()
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	w, err := db.NewWriter(10)
	require.NoError(t, err)
	require.NoError(t, w.Add(ctx, &Batch{
		Files: []*graph.File{{ID: 1, Path: "x", Kind: graph.FileKindSerializedFile}},
		Refs:  []*graph.Reference{{Source: 7, Target: 1}},
	}))
	assert.Error(t, w.Flush(ctx), "edge from a missing object must be rejected")

	var n int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n))
	assert.Zero(t, n, "failed batch must roll back entirely")
}

func TestCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.db")

	t.Run("create replaces existing file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("not a database"), 0644))

		db, err := Create(path)
		require.NoError(t, err)
		seed(t, db)
		require.NoError(t, db.Analyze())
		require.NoError(t, db.Close())
	})

	t.Run("open read-only", func(t *testing.T) {
		db, err := Open(path)
		require.NoError(t, err)
		defer db.Close()

		obj, err := db.ObjectByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "A", obj.Name)

		_, err = db.NewWriter(0)
		assert.ErrorIs(t, err, ErrReadOnly)
	})

	t.Run("concurrent readers", func(t *testing.T) {
		a, err := Open(path)
		require.NoError(t, err)
		defer a.Close()
		b, err := Open(path)
		require.NoError(t, err)
		defer b.Close()

		ra, err := a.IncomingEdges(ctx, 1)
		require.NoError(t, err)
		rb, err := b.IncomingEdges(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	})

	t.Run("path with query characters", func(t *testing.T) {
		odd := filepath.Join(t.TempDir(), "v1?mode=rw#a", "graph?x.db")
		require.NoError(t, os.MkdirAll(filepath.Dir(odd), 0755))

		db, err := Create(odd)
		require.NoError(t, err)
		seed(t, db)
		require.NoError(t, db.Close())
		assert.FileExists(t, odd)

		ro, err := Open(odd)
		require.NoError(t, err)
		defer ro.Close()
		obj, err := ro.ObjectByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "A", obj.Name)
	})

	t.Run("missing database", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "missing.db"))
		assert.ErrorIs(t, err, ErrDatabaseNotFound)
	})

	t.Run("foreign file", func(t *testing.T) {
		other := filepath.Join(dir, "other.db")
		require.NoError(t, os.WriteFile(other, []byte("hello"), 0644))
		_, err := Open(other)
		assert.Error(t, err)
	})

	t.Run("unwritable output", func(t *testing.T) {
		_, err := Create(filepath.Join(dir, "no", "such", "dir", "graph.db"))
		assert.Error(t, err)
	})
}
