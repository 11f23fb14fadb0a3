package storage

import "errors"

var (
	// ErrObjectNotFound indicates the requested object id has no row.
	ErrObjectNotFound = errors.New("object not found in database")

	// ErrDatabaseNotFound indicates the database file does not exist.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrSchemaMismatch indicates the file is not a database written by a compatible analyze run.
	ErrSchemaMismatch = errors.New("incompatible database schema")

	// ErrReadOnly is returned when writing through a handle opened with Open.
	ErrReadOnly = errors.New("database is opened read-only")
)
