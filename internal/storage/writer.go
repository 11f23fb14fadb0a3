package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zheng/assetgraph/internal/graph"
)

// DefaultBatchSize is the number of rows buffered before a transaction is committed.
const DefaultBatchSize = 10000

// Batch is a group of rows produced for one file or part of one.
// Within a batch, files precede the objects they own and objects precede their edges.
type Batch struct {
	Files   []*graph.File
	Objects []*graph.Object
	Refs    []*graph.Reference
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Files) + len(b.Objects) + len(b.Refs)
}

// WriteStats counts what a Writer has committed.
type WriteStats struct {
	Files   int64
	Objects int64
	Refs    int64
	Commits int64
}

// Writer buffers rows and commits them in transactions of roughly batchSize rows.
// Each commit is atomic; the sequence of commits is not. Not safe for concurrent use:
// one goroutine owns the writer.
type Writer struct {
	db        *DB
	batchSize int
	pending   Batch
	stats     WriteStats
}

// NewWriter creates a writer. batchSize <= 0 uses DefaultBatchSize.
func (db *DB) NewWriter(batchSize int) (*Writer, error) {
	if db.readOnly {
		return nil, ErrReadOnly
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{db: db, batchSize: batchSize}, nil
}

// Add queues the rows of b, committing whenever the buffer reaches the batch size.
func (w *Writer) Add(ctx context.Context, b *Batch) error {
	w.pending.Files = append(w.pending.Files, b.Files...)
	w.pending.Objects = append(w.pending.Objects, b.Objects...)
	w.pending.Refs = append(w.pending.Refs, b.Refs...)

	if w.pending.Len() >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush commits all buffered rows in one transaction.
func (w *Writer) Flush(ctx context.Context) error {
	if w.pending.Len() == 0 {
		return nil
	}

	tx, err := w.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertFiles(ctx, tx, w.pending.Files); err != nil {
		return err
	}
	if err := insertObjects(ctx, tx, w.pending.Objects); err != nil {
		return err
	}
	if err := insertRefs(ctx, tx, w.pending.Refs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	w.stats.Files += int64(len(w.pending.Files))
	w.stats.Objects += int64(len(w.pending.Objects))
	w.stats.Refs += int64(len(w.pending.Refs))
	w.stats.Commits++
	w.pending = Batch{}
	return nil
}

// Close flushes what is left. It does not close the database.
func (w *Writer) Close(ctx context.Context) error {
	return w.Flush(ctx)
}

// Stats returns the committed row counts.
func (w *Writer) Stats() WriteStats {
	return w.stats
}

func insertFiles(ctx context.Context, tx *sql.Tx, files []*graph.File) error {
	if len(files) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (id, path, kind, parent_id, size, crc32) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range files {
		var parent, crc any
		if f.ParentID != 0 {
			parent = f.ParentID
		}
		if f.CRC32 != nil {
			crc = int64(*f.CRC32)
		}
		if _, err := stmt.ExecContext(ctx, f.ID, f.Path, string(f.Kind), parent, f.Size, crc); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Path, err)
		}
	}
	return nil
}

func insertObjects(ctx context.Context, tx *sql.Tx, objects []*graph.Object) error {
	if len(objects) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO objects (id, file_id, path_id, type, name, size) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range objects {
		var name any
		if o.Name != "" {
			name = o.Name
		}
		if _, err := stmt.ExecContext(ctx, o.ID, o.FileID, o.PathID, o.Type, name, o.Size); err != nil {
			return fmt.Errorf("insert object %d: %w", o.ID, err)
		}
	}
	return nil
}

func insertRefs(ctx context.Context, tx *sql.Tx, refs []*graph.Reference) error {
	if len(refs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO refs (object, referenced_object, property_path) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range refs {
		var prop any
		if r.PropertyPath != "" {
			prop = r.PropertyPath
		}
		if _, err := stmt.ExecContext(ctx, r.Source, r.Target, prop); err != nil {
			return fmt.Errorf("insert reference %d -> %d: %w", r.Source, r.Target, err)
		}
	}
	return nil
}
