// Package integrity computes per-file checksums and compares the checksum
// sets recorded by two extraction runs.
package integrity

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"
)

// FileCRC32 returns the IEEE CRC32 of the file's bytes.
func FileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return ReaderCRC32(f)
}

// ReaderCRC32 returns the IEEE CRC32 of everything read from r.
func ReaderCRC32(r io.Reader) (uint32, error) {
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, r); err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}
	return h.Sum32(), nil
}

// Diff lists container paths by how their checksum changed between two runs.
type Diff struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Changed   []string `json:"changed"`
	Unchanged []string `json:"unchanged"`
}

// HasChanges reports whether anything was added, removed or changed.
func (d *Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Compare diffs two path -> checksum maps. All lists are sorted.
func Compare(before, after map[string]uint32) *Diff {
	d := &Diff{}
	for path, sum := range after {
		old, ok := before[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case old != sum:
			d.Changed = append(d.Changed, path)
		default:
			d.Unchanged = append(d.Unchanged, path)
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			d.Removed = append(d.Removed, path)
		}
	}

	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	sort.Strings(d.Unchanged)
	return d
}
