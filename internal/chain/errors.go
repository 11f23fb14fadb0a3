// Package chain answers "how is this object kept alive": it walks incoming
// references from a queried object back to root objects.
//
// Two search modes exist. The default breadth-first search returns the single
// shortest chain and visits every object at most once. The all-chains mode
// enumerates every simple path to a root; on densely connected graphs the
// number of such paths grows exponentially and the search is not cut short
// unless Query.MaxChains is set.
package chain

import "errors"

var (
	// ErrInvalidQuery is returned when a query names both an id and a name, or neither.
	ErrInvalidQuery = errors.New("exactly one of object id or object name must be given")

	// ErrObjectNotFound is returned when no object matches the query.
	ErrObjectNotFound = errors.New("object not found")
)
