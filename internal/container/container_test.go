package container

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"a.bundle",
		"b.txt",
		"sub/c.bundle",
		".hidden/d.bundle",
		".e.bundle",
	} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0644))
	}

	t.Run("glob on base name", func(t *testing.T) {
		files, err := Match(root, "*.bundle", quietLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.bundle"),
			filepath.Join(root, "sub", "c.bundle"),
		}, files)
	})

	t.Run("empty pattern matches everything", func(t *testing.T) {
		files, err := Match(root, "", quietLogger())
		require.NoError(t, err)
		assert.Len(t, files, 3)
	})

	t.Run("bad pattern", func(t *testing.T) {
		_, err := Match(root, "[", nil)
		assert.Error(t, err)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := Match(filepath.Join(root, "nope"), "*", nil)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("unreadable subdirectory is skipped", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permissions are not enforced for root")
		}
		locked := filepath.Join(root, "locked")
		require.NoError(t, os.MkdirAll(locked, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(locked, "f.bundle"), []byte("x"), 0644))
		require.NoError(t, os.Chmod(locked, 0))
		t.Cleanup(func() { os.Chmod(locked, 0755) })

		files, err := Match(root, "*.bundle", quietLogger())
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.bundle"),
			filepath.Join(root, "sub", "c.bundle"),
		}, files)
	})
}

func TestCandidate(t *testing.T) {
	assert.True(t, Candidate("*.bundle", "scene.bundle"))
	assert.True(t, Candidate("*", "data.unity3d"))
	assert.False(t, Candidate("*.bundle", ".scene.bundle"))
	assert.False(t, Candidate("*", ".DS_Store"))
	assert.False(t, Candidate("*.bundle", "scene.txt"))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDumpOpener(t *testing.T) {
	dir := t.TempDir()

	t.Run("round trip units", func(t *testing.T) {
		path := filepath.Join(dir, "level0.dump")
		units := []Unit{
			{
				Name:      "CAB-aaa",
				Size:      1024,
				Externals: []string{"archive:/CAB-bbb/CAB-bbb"},
				Objects: []Object{
					{PathID: 1, Type: "GameObject", Name: "Cube", Size: 40, Refs: []PPtr{{FileID: 0, PathID: 2, PropertyPath: "m_Component.Array[0].component"}}},
					{PathID: 2, Type: "Transform", Size: 60},
				},
			},
			{Name: "CAB-aaa.resS", Objects: []Object{}},
		}
		require.NoError(t, WriteDump(path, units))

		c, err := DumpOpener{}.Open(path)
		require.NoError(t, err)
		defer c.Close()

		var got []*Unit
		require.NoError(t, c.Walk(func(u *Unit) error {
			got = append(got, u)
			return nil
		}))
		require.Len(t, got, 2)
		assert.Equal(t, "CAB-aaa", got[0].Name)
		assert.Equal(t, units[0].Objects, got[0].Objects)
		assert.Error(t, c.Walk(func(*Unit) error { return nil }), "second walk must fail")
	})

	t.Run("unity signature is unrecognized", func(t *testing.T) {
		path := filepath.Join(dir, "raw.bundle")
		require.NoError(t, os.WriteFile(path, []byte("UnityFS\x00\x00\x00\x00\x08"), 0644))

		_, err := DumpOpener{}.Open(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnrecognized)
		assert.Contains(t, err.Error(), "UnityFS")
	})

	t.Run("other json is unrecognized", func(t *testing.T) {
		path := filepath.Join(dir, "other.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"x"}`), 0644))

		_, err := DumpOpener{}.Open(path)
		assert.ErrorIs(t, err, ErrUnrecognized)
	})

	t.Run("walk stops on callback error", func(t *testing.T) {
		path := filepath.Join(dir, "stop.dump")
		require.NoError(t, WriteDump(path, []Unit{{Name: "a"}, {Name: "b"}}))

		c, err := DumpOpener{}.Open(path)
		require.NoError(t, err)
		defer c.Close()

		stop := errors.New("stop")
		n := 0
		err = c.Walk(func(*Unit) error {
			n++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, n)
	})
}

func TestPPtrIsNull(t *testing.T) {
	assert.True(t, PPtr{FileID: 1}.IsNull())
	assert.False(t, PPtr{PathID: -5}.IsNull())
}
