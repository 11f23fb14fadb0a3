// Package container is the boundary to the byte-level Unity parser. It finds
// container files on disk and exposes, per serialized unit, the object table and
// each object's outgoing pointers.
package container

import (
	"errors"
)

// ErrUnrecognized is returned by an Opener when a file is not a container it understands.
var ErrUnrecognized = errors.New("unrecognized container")

// PPtr is a serialized pointer to another object.
// FileID 0 points into the same unit; FileID k > 0 points into Externals[k-1].
type PPtr struct {
	FileID       int32  `json:"file_id"`
	PathID       int64  `json:"path_id"`
	PropertyPath string `json:"property_path,omitempty"`
}

// IsNull reports whether the pointer is the null reference.
func (p PPtr) IsNull() bool {
	return p.PathID == 0
}

// Object is one entry of a unit's object table.
type Object struct {
	PathID int64  `json:"path_id"`
	Type   string `json:"type"`
	Name   string `json:"name,omitempty"`
	Size   int64  `json:"size"`
	Refs   []PPtr `json:"refs,omitempty"`
}

// Unit is one serialized file inside a container.
type Unit struct {
	Name      string   `json:"name"`
	Size      int64    `json:"size"`
	Externals []string `json:"externals,omitempty"`
	Objects   []Object `json:"objects"`
}

// Container is an opened container file. Walk yields units in file order and
// stops at the first error returned by fn.
type Container interface {
	Walk(fn func(*Unit) error) error
	Close() error
}

// Opener opens container files.
type Opener interface {
	Open(path string) (Container, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Container, error)

// Open calls f(path).
func (f OpenerFunc) Open(path string) (Container, error) {
	return f(path)
}
