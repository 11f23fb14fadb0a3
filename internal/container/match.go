package container

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Hidden reports whether a file or directory name is dot-prefixed. Hidden
// entries are never scanned or watched.
func Hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Candidate reports whether a base name is a container candidate under the
// glob pattern. The pattern must already be valid.
func Candidate(pattern, name string) bool {
	if Hidden(name) {
		return false
	}
	ok, _ := filepath.Match(pattern, name)
	return ok
}

// Match walks root and returns the regular files that are candidates under
// the glob pattern, sorted. Hidden entries are skipped, and so is any
// subdirectory that cannot be read; only an unreadable root is an error.
func Match(root, pattern string, log *slog.Logger) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid search pattern %q: %w", pattern, err)
	}
	if log == nil {
		log = slog.Default()
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && Hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && Candidate(pattern, d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
