package chain

import (
	"context"
	"slices"

	"github.com/zheng/assetgraph/internal/graph"
)

// search holds the working set for one target. Incoming edge lists and
// objects are loaded lazily and only for objects the search reaches.
type search struct {
	store    Store
	target   *graph.Object
	incoming map[int64][]int64
	objects  map[int64]*graph.Object
}

func newSearch(store Store, target *graph.Object) *search {
	return &search{
		store:    store,
		target:   target,
		incoming: make(map[int64][]int64),
		objects:  map[int64]*graph.Object{target.ID: target},
	}
}

func (s *search) referrers(ctx context.Context, id int64) ([]int64, error) {
	if in, ok := s.incoming[id]; ok {
		return in, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := s.store.IncomingEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	s.incoming[id] = in
	return in, nil
}

// shortestPath runs a breadth-first search over incoming edges and returns
// the ids from the target to the first root dequeued, or nil if no root is
// reachable. Referrers are enqueued in ascending id order and the first
// discovery of an object fixes its parent, so ties resolve deterministically.
func (s *search) shortestPath(ctx context.Context) ([]int64, error) {
	start := s.target.ID
	parent := map[int64]int64{}
	visited := map[int64]bool{start: true}
	queue := []int64{start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		in, err := s.referrers(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(in) == 0 {
			if id == start {
				// the target itself is a root
				return nil, nil
			}
			path := []int64{id}
			for cur := id; cur != start; {
				cur = parent[cur]
				path = append(path, cur)
			}
			slices.Reverse(path)
			return path, nil
		}

		for _, src := range in {
			if visited[src] {
				continue
			}
			visited[src] = true
			parent[src] = id
			queue = append(queue, src)
		}
	}
	return nil, nil
}

type frame struct {
	id   int64
	in   []int64
	next int
}

// allPaths enumerates every simple path from the target to a root with an
// explicit depth-first stack. An object may appear on many paths but never
// twice on one. Paths come out in lexicographic order of referrer ids.
// When limit > 0 the search stops after limit paths and reports truncation.
func (s *search) allPaths(ctx context.Context, limit int) ([][]int64, bool, error) {
	start := s.target.ID
	in, err := s.referrers(ctx, start)
	if err != nil || len(in) == 0 {
		return nil, false, err
	}

	onPath := map[int64]bool{start: true}
	stack := []frame{{id: start, in: in}}
	var paths [][]int64

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.in) {
			delete(onPath, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		src := top.in[top.next]
		top.next++
		if onPath[src] {
			continue
		}

		srcIn, err := s.referrers(ctx, src)
		if err != nil {
			return nil, false, err
		}
		if len(srcIn) == 0 {
			path := make([]int64, 0, len(stack)+1)
			for _, f := range stack {
				path = append(path, f.id)
			}
			paths = append(paths, append(path, src))
			if limit > 0 && len(paths) >= limit {
				return paths, true, nil
			}
			continue
		}

		onPath[src] = true
		stack = append(stack, frame{id: src, in: srcIn})
	}
	return paths, false, nil
}

func (s *search) object(ctx context.Context, id int64) (*graph.Object, error) {
	if obj, ok := s.objects[id]; ok {
		return obj, nil
	}
	obj, err := s.store.ObjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.objects[id] = obj
	return obj, nil
}

// chain materializes a path of ids into objects and annotated hops.
func (s *search) chain(ctx context.Context, path []int64) (*Chain, error) {
	c := &Chain{Hops: make([]Hop, 0, len(path)-1)}
	for i := 0; i+1 < len(path); i++ {
		referenced, err := s.object(ctx, path[i])
		if err != nil {
			return nil, err
		}
		referrer, err := s.object(ctx, path[i+1])
		if err != nil {
			return nil, err
		}
		prop, err := s.store.EdgeProperty(ctx, referrer.ID, referenced.ID)
		if err != nil {
			return nil, err
		}
		c.Hops = append(c.Hops, Hop{Referenced: referenced, Referrer: referrer, PropertyPath: prop})
	}
	return c, nil
}
