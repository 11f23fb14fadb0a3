package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zheng/assetgraph/internal/graph"
	"github.com/zheng/assetgraph/internal/storage"
)

// Store is the read side of the graph database the resolver needs.
type Store interface {
	ObjectByID(ctx context.Context, id int64) (*graph.Object, error)
	ObjectsByName(ctx context.Context, name, typ string) ([]*graph.Object, error)
	IncomingEdges(ctx context.Context, id int64) ([]int64, error)
	EdgeProperty(ctx context.Context, source, target int64) (string, error)
	FileByID(ctx context.Context, id int64) (*graph.File, error)
}

// Query selects the target object(s) and the search mode.
type Query struct {
	ObjectID   *int64
	ObjectName string
	ObjectType string // only with ObjectName

	// FindAll enumerates every chain instead of the shortest one.
	FindAll bool

	// MaxChains bounds the all-chains search. 0 means no bound.
	MaxChains int
}

// Validate rejects queries with both or neither of id and name set.
// It never touches the database.
func (q Query) Validate() error {
	hasID := q.ObjectID != nil
	hasName := q.ObjectName != ""
	if hasID == hasName {
		return ErrInvalidQuery
	}
	if q.ObjectType != "" && !hasName {
		return fmt.Errorf("%w: object type requires an object name", ErrInvalidQuery)
	}
	if q.MaxChains < 0 {
		return fmt.Errorf("%w: max chains must not be negative", ErrInvalidQuery)
	}
	return nil
}

// Hop is one reference edge on a chain: Referrer holds a pointer to Referenced.
type Hop struct {
	Referenced   *graph.Object `json:"referenced" yaml:"referenced"`
	Referrer     *graph.Object `json:"referrer" yaml:"referrer"`
	PropertyPath string        `json:"property_path,omitempty" yaml:"property_path,omitempty"`
}

// Chain runs from the queried object to a root, one hop per edge.
type Chain struct {
	Hops []Hop `json:"hops" yaml:"hops"`
}

// Objects returns the chain's objects, queried object first and root last.
func (c *Chain) Objects() []*graph.Object {
	if len(c.Hops) == 0 {
		return nil
	}
	objs := make([]*graph.Object, 0, len(c.Hops)+1)
	objs = append(objs, c.Hops[0].Referenced)
	for _, h := range c.Hops {
		objs = append(objs, h.Referrer)
	}
	return objs
}

// Root returns the last object of the chain.
func (c *Chain) Root() *graph.Object {
	if len(c.Hops) == 0 {
		return nil
	}
	return c.Hops[len(c.Hops)-1].Referrer
}

// Report is the result for one target object. An empty Chains means no
// reference chain exists, which is not an error.
type Report struct {
	Target    *graph.Object `json:"target" yaml:"target"`
	File      string        `json:"file,omitempty" yaml:"file,omitempty"`
	FindAll   bool          `json:"find_all" yaml:"find_all"`
	Chains    []*Chain      `json:"chains" yaml:"chains"`
	Truncated bool          `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Resolver searches reference chains in a graph store.
type Resolver struct {
	store Store
	log   *slog.Logger
}

// NewResolver creates a resolver over store. A nil logger uses slog.Default().
func NewResolver(store Store, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, log: log}
}

// Resolve finds the target objects of q and searches chains for each.
// A name matching several objects yields one report per object, in id order.
func (r *Resolver) Resolve(ctx context.Context, q Query) ([]*Report, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	targets, err := r.targets(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(targets) > 1 {
		r.log.Info("name matches several objects, resolving each",
			slog.String("name", q.ObjectName),
			slog.Int("matches", len(targets)))
	}

	reports := make([]*Report, 0, len(targets))
	for _, target := range targets {
		report, err := r.resolveOne(ctx, target, q)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *Resolver) targets(ctx context.Context, q Query) ([]*graph.Object, error) {
	if q.ObjectID != nil {
		obj, err := r.store.ObjectByID(ctx, *q.ObjectID)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrObjectNotFound, *q.ObjectID)
		}
		if err != nil {
			return nil, err
		}
		return []*graph.Object{obj}, nil
	}

	objs, err := r.store.ObjectsByName(ctx, q.ObjectName, q.ObjectType)
	if err != nil {
		return nil, err
	}
	if len(objs) == 0 {
		if q.ObjectType != "" {
			return nil, fmt.Errorf("%w: name %q type %q", ErrObjectNotFound, q.ObjectName, q.ObjectType)
		}
		return nil, fmt.Errorf("%w: name %q", ErrObjectNotFound, q.ObjectName)
	}
	return objs, nil
}

func (r *Resolver) resolveOne(ctx context.Context, target *graph.Object, q Query) (*Report, error) {
	s := newSearch(r.store, target)

	report := &Report{Target: target, FindAll: q.FindAll}
	if f, err := r.store.FileByID(ctx, target.FileID); err == nil {
		report.File = f.Path
	}

	var paths [][]int64
	var err error
	if q.FindAll {
		paths, report.Truncated, err = s.allPaths(ctx, q.MaxChains)
	} else {
		var path []int64
		path, err = s.shortestPath(ctx)
		if path != nil {
			paths = [][]int64{path}
		}
	}
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		c, err := s.chain(ctx, p)
		if err != nil {
			return nil, err
		}
		report.Chains = append(report.Chains, c)
	}

	r.log.Debug("resolved reference chains",
		slog.Int64("object_id", target.ID),
		slog.Bool("find_all", q.FindAll),
		slog.Int("chains", len(report.Chains)),
		slog.Int("visited", len(s.incoming)))
	return report, nil
}
