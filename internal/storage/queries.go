package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zheng/assetgraph/internal/graph"
)

const objectColumns = `id, file_id, path_id, type, name, size`

// ObjectByID returns an object by its ID
func (db *DB) ObjectByID(ctx context.Context, id int64) (*graph.Object, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE id = ?`, id)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrObjectNotFound, id)
	}
	return obj, err
}

// ObjectsByName returns every object with exactly this name, optionally
// restricted to one type, ordered by id.
func (db *DB) ObjectsByName(ctx context.Context, name, typ string) ([]*graph.Object, error) {
	var rows *sql.Rows
	var err error
	if typ == "" {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+objectColumns+` FROM objects WHERE name = ? ORDER BY id`, name)
	} else {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+objectColumns+` FROM objects WHERE name = ? AND type = ? ORDER BY id`, name, typ)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObjects(rows)
}

// IncomingEdges returns the distinct ids of objects referencing id, ascending.
// Parallel edges collapse to one entry.
func (db *DB) IncomingEdges(ctx context.Context, id int64) ([]int64, error) {
	return db.queryIDs(ctx,
		`SELECT DISTINCT object FROM refs WHERE referenced_object = ? ORDER BY object`, id)
}

// OutgoingEdges returns the distinct ids id references, ascending. Targets may dangle.
func (db *DB) OutgoingEdges(ctx context.Context, id int64) ([]int64, error) {
	return db.queryIDs(ctx,
		`SELECT DISTINCT referenced_object FROM refs WHERE object = ? ORDER BY referenced_object`, id)
}

// EdgeProperty returns the property path of the first stored edge source -> target,
// or "" when none was recorded.
func (db *DB) EdgeProperty(ctx context.Context, source, target int64) (string, error) {
	var prop sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT property_path FROM refs WHERE object = ? AND referenced_object = ?
		 ORDER BY property_path IS NULL, rowid LIMIT 1`,
		source, target,
	).Scan(&prop)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return prop.String, nil
}

// IsRoot reports whether nothing references id. Computed from the edge table on every call.
func (db *DB) IsRoot(ctx context.Context, id int64) (bool, error) {
	var referenced bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM refs WHERE referenced_object = ?)`, id,
	).Scan(&referenced)
	return !referenced, err
}

// Roots returns objects with no incoming reference, ordered by id.
// If limit is 0, all roots are returned.
func (db *DB) Roots(ctx context.Context, limit int) ([]*graph.Object, error) {
	query := `SELECT ` + objectColumns + ` FROM objects o
		 WHERE NOT EXISTS (SELECT 1 FROM refs r WHERE r.referenced_object = o.id)
		 ORDER BY o.id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObjects(rows)
}

// FileByID returns a files row.
func (db *DB) FileByID(ctx context.Context, id int64) (*graph.File, error) {
	var f graph.File
	var kind string
	var parent, crc sql.NullInt64
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, path, kind, parent_id, size, crc32 FROM files WHERE id = ?`, id,
	).Scan(&f.ID, &f.Path, &kind, &parent, &f.Size, &crc)
	if err != nil {
		return nil, err
	}
	f.Kind = graph.FileKind(kind)
	f.ParentID = parent.Int64
	if crc.Valid {
		v := uint32(crc.Int64)
		f.CRC32 = &v
	}
	return &f, nil
}

// Files returns every files row ordered by id.
func (db *DB) Files(ctx context.Context) ([]*graph.File, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, path, kind, parent_id, size, crc32 FROM files ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*graph.File
	for rows.Next() {
		var f graph.File
		var kind string
		var parent, crc sql.NullInt64
		if err := rows.Scan(&f.ID, &f.Path, &kind, &parent, &f.Size, &crc); err != nil {
			return nil, err
		}
		f.Kind = graph.FileKind(kind)
		f.ParentID = parent.Int64
		if crc.Valid {
			v := uint32(crc.Int64)
			f.CRC32 = &v
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// FileChecksums maps container path to its recorded CRC32. Containers
// extracted without integrity checking are absent.
func (db *DB) FileChecksums(ctx context.Context) (map[string]uint32, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path, crc32 FROM files WHERE kind = ? AND crc32 IS NOT NULL`,
		string(graph.FileKindContainer))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[string]uint32)
	for rows.Next() {
		var path string
		var crc int64
		if err := rows.Scan(&path, &crc); err != nil {
			return nil, err
		}
		sums[path] = uint32(crc)
	}
	return sums, rows.Err()
}

// Stats holds database statistics
type Stats struct {
	Files         int64 `json:"files" yaml:"files"`
	Containers    int64 `json:"containers" yaml:"containers"`
	Objects       int64 `json:"objects" yaml:"objects"`
	References    int64 `json:"references" yaml:"references"`
	DanglingRefs  int64 `json:"dangling_references" yaml:"dangling_references"`
	Roots         int64 `json:"roots" yaml:"roots"`
	TotalSize     int64 `json:"total_size" yaml:"total_size"`
	HasChecksums  bool  `json:"has_checksums" yaml:"has_checksums"`
	HasReferences bool  `json:"has_references" yaml:"has_references"`
}

// GetStats returns database statistics
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	queries := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM files`, &s.Files},
		{`SELECT COUNT(*) FROM files WHERE kind = 'container'`, &s.Containers},
		{`SELECT COUNT(*) FROM objects`, &s.Objects},
		{`SELECT COUNT(*) FROM refs`, &s.References},
		{`SELECT COUNT(*) FROM refs r WHERE NOT EXISTS (SELECT 1 FROM objects o WHERE o.id = r.referenced_object)`, &s.DanglingRefs},
		{`SELECT COUNT(*) FROM objects o WHERE NOT EXISTS (SELECT 1 FROM refs r WHERE r.referenced_object = o.id)`, &s.Roots},
		{`SELECT COALESCE(SUM(size), 0) FROM objects`, &s.TotalSize},
	}
	for _, q := range queries {
		if err := db.conn.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var sums int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM files WHERE crc32 IS NOT NULL`).Scan(&sums); err != nil {
		return nil, err
	}
	s.HasChecksums = sums > 0
	s.HasReferences = s.References > 0
	return &s, nil
}

// TypeSize aggregates objects of one type.
type TypeSize struct {
	Type      string `json:"type"`
	Count     int64  `json:"count"`
	TotalSize int64  `json:"total_size"`
}

// TypeSummary returns per-type object counts and sizes, largest total first.
func (db *DB) TypeSummary(ctx context.Context) ([]TypeSize, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT type, COUNT(*), COALESCE(SUM(size), 0) FROM objects
		 GROUP BY type ORDER BY 3 DESC, type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TypeSize
	for rows.Next() {
		var ts TypeSize
		if err := rows.Scan(&ts.Type, &ts.Count, &ts.TotalSize); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

// LargestObjects returns the limit largest objects.
func (db *DB) LargestObjects(ctx context.Context, limit int) ([]*graph.Object, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects ORDER BY size DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObjects(rows)
}

// MostReferenced returns objects with the most distinct referrers, with the count.
func (db *DB) MostReferenced(ctx context.Context, limit int) ([]*graph.Object, []int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT o.id, o.file_id, o.path_id, o.type, o.name, o.size, COUNT(DISTINCT r.object) AS refcount
		 FROM objects o JOIN refs r ON r.referenced_object = o.id
		 GROUP BY o.id ORDER BY refcount DESC, o.id LIMIT ?`, limit)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var objs []*graph.Object
	var counts []int64
	for rows.Next() {
		var o graph.Object
		var name sql.NullString
		var count int64
		if err := rows.Scan(&o.ID, &o.FileID, &o.PathID, &o.Type, &name, &o.Size, &count); err != nil {
			return nil, nil, err
		}
		o.Name = name.String
		objs = append(objs, &o)
		counts = append(counts, count)
	}
	return objs, counts, rows.Err()
}

// DanglingReferences returns edges whose target has no object row, ordered
// by source. These are pointers into files that were not part of the analysis.
func (db *DB) DanglingReferences(ctx context.Context, limit int) ([]*graph.Reference, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.object, r.referenced_object, r.property_path FROM refs r
		 WHERE NOT EXISTS (SELECT 1 FROM objects o WHERE o.id = r.referenced_object)
		 ORDER BY r.object, r.referenced_object LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*graph.Reference
	for rows.Next() {
		var r graph.Reference
		var prop sql.NullString
		if err := rows.Scan(&r.Source, &r.Target, &prop); err != nil {
			return nil, err
		}
		r.PropertyPath = prop.String
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

func (db *DB) queryIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Helper functions

func scanObject(row *sql.Row) (*graph.Object, error) {
	var o graph.Object
	var name sql.NullString
	if err := row.Scan(&o.ID, &o.FileID, &o.PathID, &o.Type, &name, &o.Size); err != nil {
		return nil, err
	}
	o.Name = name.String
	return &o, nil
}

func scanObjects(rows *sql.Rows) ([]*graph.Object, error) {
	var objs []*graph.Object
	for rows.Next() {
		var o graph.Object
		var name sql.NullString
		if err := rows.Scan(&o.ID, &o.FileID, &o.PathID, &o.Type, &name, &o.Size); err != nil {
			return nil, err
		}
		o.Name = name.String
		objs = append(objs, &o)
	}
	return objs, rows.Err()
}
