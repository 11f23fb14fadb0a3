package graph

import (
	"path"
	"strings"
	"sync"
)

// IDProvider hands out global object and file ids for one extraction run.
// Objects are keyed by (serialized unit, path id), so a pointer into another
// unit receives the same id as the object itself, whichever is seen first.
// Ids follow call order, so callers that need reproducible ids must call it
// from one goroutine in a fixed input order. Safe for concurrent use.
type IDProvider struct {
	mu       sync.Mutex
	objects  map[objectKey]int64
	claimed  map[int64]struct{}
	nextObj  int64
	nextFile int64
}

type objectKey struct {
	unit   string
	pathID int64
}

// NewIDProvider creates an empty provider. Ids start at 1.
func NewIDProvider() *IDProvider {
	return &IDProvider{
		objects: make(map[objectKey]int64),
		claimed: make(map[int64]struct{}),
	}
}

// ObjectID returns the id for (unit, pathID), allocating one on first use.
func (p *IDProvider) ObjectID(unit string, pathID int64) int64 {
	key := objectKey{unit: UnitKey(unit), pathID: pathID}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.objects[key]; ok {
		return id
	}
	p.nextObj++
	p.objects[key] = p.nextObj
	return p.nextObj
}

// Claim records that a row for id is being written. It returns false when the
// id was already claimed, i.e. the same unit was found twice.
func (p *IDProvider) Claim(id int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.claimed[id]; ok {
		return false
	}
	p.claimed[id] = struct{}{}
	return true
}

// FileID allocates a new file id.
func (p *IDProvider) FileID() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextFile++
	return p.nextFile
}

// UnitKey normalises a serialized unit name so that an external reference such as
// "archive:/CAB-1234/CAB-1234" and the unit name "CAB-1234" agree.
func UnitKey(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.ToLower(path.Base(name))
}
