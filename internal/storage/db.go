package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// SchemaVersion is the version stored in meta. Bump when the tables change shape.
const SchemaVersion = 1

// DB wraps the SQLite database connection
type DB struct {
	conn     *sql.DB
	path     string
	readOnly bool
}

// Create creates a fresh database at path, replacing any existing one.
// The handle uses a single connection and is meant for the extraction writer.
func Create(path string) (*DB, error) {
	if err := removeDatabaseFiles(path); err != nil {
		return nil, err
	}

	dsn, err := fileDSN(path, "rwc")
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// fileDSN builds a file URI opening path in the given mode. Escaping keeps '?'
// and '#' in the path from being read as the query or fragment.
func fileDSN(path, mode string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p, RawQuery: "mode=" + mode}).String(), nil
}

// Open opens an existing database read-only and checks its schema version.
func Open(path string) (*DB, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSchemaMismatch, path)
	}

	dsn, err := fileDSN(path, "ro")
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, path: path, readOnly: true}
	if err := db.checkVersion(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// every connection to :memory: is its own database
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: ":memory:"}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initialize() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.conn.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	_, err := db.conn.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(SchemaVersion))
	if err != nil {
		return fmt.Errorf("failed to set database version: %w", err)
	}
	return nil
}

func (db *DB) checkVersion() error {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if value != strconv.Itoa(SchemaVersion) {
		return fmt.Errorf("%w: version %s, want %d", ErrSchemaMismatch, value, SchemaVersion)
	}
	return nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection. A writable file database is switched
// back to rollback-journal mode first so read-only handles need no -shm file.
func (db *DB) Close() error {
	if !db.readOnly && db.path != ":memory:" {
		if _, err := db.conn.Exec("PRAGMA journal_mode = DELETE"); err != nil {
			db.conn.Close()
			return fmt.Errorf("failed to checkpoint database: %w", err)
		}
	}
	return db.conn.Close()
}

// Analyze runs SQLite's ANALYZE to refresh planner statistics after bulk loading.
func (db *DB) Analyze() error {
	if db.readOnly {
		return ErrReadOnly
	}
	_, err := db.conn.Exec("ANALYZE")
	return err
}

// Conn returns the underlying database connection for advanced queries
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func removeDatabaseFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}
