package graph

import (
	"fmt"

	"github.com/zheng/assetgraph/internal/container"
)

// Builder converts the object tables of serialized units into Object and
// Reference records and hands them to the insert callbacks.
type Builder struct {
	ids        *IDProvider
	withRefs   bool
	insertFn   func(*Object) error
	edgeFn     func(*Reference) error
	objCount   int
	refCount   int
	nullCount  int
	badFileIDs int
	dupCount   int
}

// NewBuilder creates a new graph builder. When withRefs is false only objects are emitted.
func NewBuilder(
	ids *IDProvider,
	withRefs bool,
	insertFn func(*Object) error,
	edgeFn func(*Reference) error,
) *Builder {
	return &Builder{
		ids:      ids,
		withRefs: withRefs,
		insertFn: insertFn,
		edgeFn:   edgeFn,
	}
}

// BuildUnit emits every object of u, owned by fileID, followed by its references.
// A source object is always emitted before its edges. Objects already emitted
// by an earlier unit with the same name are skipped together with their edges.
func (b *Builder) BuildUnit(fileID int64, u *container.Unit) error {
	for i := range u.Objects {
		obj := &u.Objects[i]
		id := b.ids.ObjectID(u.Name, obj.PathID)
		if !b.ids.Claim(id) {
			b.dupCount++
			continue
		}

		err := b.insertFn(&Object{
			ID:     id,
			FileID: fileID,
			PathID: obj.PathID,
			Type:   obj.Type,
			Name:   obj.Name,
			Size:   obj.Size,
		})
		if err != nil {
			return fmt.Errorf("failed to insert object %s/%d: %w", u.Name, obj.PathID, err)
		}
		b.objCount++

		if !b.withRefs {
			continue
		}

		for _, ptr := range obj.Refs {
			target, ok := b.resolve(u, ptr)
			if !ok {
				continue
			}
			if err := b.edgeFn(&Reference{
				Source:       id,
				Target:       target,
				PropertyPath: ptr.PropertyPath,
			}); err != nil {
				return fmt.Errorf("failed to insert reference from %d: %w", id, err)
			}
			b.refCount++
		}
	}
	return nil
}

// resolve maps a pointer to a global object id. Null pointers and file ids
// outside the externals table yield false.
func (b *Builder) resolve(u *container.Unit, ptr container.PPtr) (int64, bool) {
	if ptr.IsNull() {
		b.nullCount++
		return 0, false
	}
	if ptr.FileID == 0 {
		return b.ids.ObjectID(u.Name, ptr.PathID), true
	}
	idx := int(ptr.FileID) - 1
	if idx < 0 || idx >= len(u.Externals) {
		b.badFileIDs++
		return 0, false
	}
	return b.ids.ObjectID(u.Externals[idx], ptr.PathID), true
}

// BuildStats returns statistics about the built graph
type BuildStats struct {
	Objects     int
	References  int
	NullRefs    int
	BadExternal int
	Duplicates  int
}

// Stats returns counts accumulated across BuildUnit calls.
func (b *Builder) Stats() BuildStats {
	return BuildStats{
		Objects:     b.objCount,
		References:  b.refCount,
		NullRefs:    b.nullCount,
		BadExternal: b.badFileIDs,
		Duplicates:  b.dupCount,
	}
}
