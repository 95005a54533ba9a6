// Package dag implements the block DAG described in §4.5: vertices with
// forward and reverse edges, traversal, topological sort, pruning and a
// consistency check. The graph's invariants span multiple maps, so the
// whole structure shares one read-write lock rather than per-key locks.
package dag

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hazechain/haze/internal/chainerr"
	"github.com/hazechain/haze/internal/chaintypes"
)

type DAG struct {
	mu           sync.RWMutex
	vertices     map[chaintypes.Hash]*chaintypes.Vertex
	edges        map[chaintypes.Hash][]chaintypes.Hash
	reverseEdges map[chaintypes.Hash][]chaintypes.Hash
}

func New() *DAG {
	return &DAG{
		vertices:     make(map[chaintypes.Hash]*chaintypes.Vertex),
		edges:        make(map[chaintypes.Hash][]chaintypes.Hash),
		reverseEdges: make(map[chaintypes.Hash][]chaintypes.Hash),
	}
}

// AddVertex inserts block as a DAG vertex referencing the given hashes.
// Every non-zero reference must already exist in the DAG.
func (d *DAG) AddVertex(block *chaintypes.Block, references []chaintypes.Hash, wave uint64, now time.Time) error {
	hash := block.Header.Hash

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ref := range references {
		if ref.IsZero() {
			continue
		}
		if _, ok := d.vertices[ref]; !ok {
			return chainerr.InvalidBlock(fmt.Sprintf("missing dag reference %s", ref))
		}
	}

	d.vertices[hash] = &chaintypes.Vertex{
		Block:      block,
		References: references,
		Wave:       wave,
		Timestamp:  now,
	}
	d.edges[hash] = append([]chaintypes.Hash(nil), references...)
	for _, ref := range references {
		if ref.IsZero() {
			continue
		}
		d.reverseEdges[ref] = append(d.reverseEdges[ref], hash)
	}
	return nil
}

func (d *DAG) MarkProcessed(hash chaintypes.Hash) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.vertices[hash]; ok {
		v.Processed = true
	}
}

func (d *DAG) Get(hash chaintypes.Hash) (*chaintypes.Vertex, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.vertices[hash]
	return v, ok
}

func (d *DAG) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.vertices)
}

// IncomingEdgeCount is the number of vertices that reference hash.
func (d *DAG) IncomingEdgeCount(hash chaintypes.Hash) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.reverseEdges[hash])
}

// Snapshot returns a shallow copy of every vertex, keyed by hash, for
// callers that need a consistent view across several reads (e.g. tip
// scoring in the consensus engine).
func (d *DAG) Snapshot() map[chaintypes.Hash]*chaintypes.Vertex {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[chaintypes.Hash]*chaintypes.Vertex, len(d.vertices))
	for k, v := range d.vertices {
		out[k] = v
	}
	return out
}

// Ancestors walks backward along references, never traversing the zero
// hash, and returns every reachable predecessor.
func (d *DAG) Ancestors(hash chaintypes.Hash) ([]chaintypes.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.vertices[hash]; !ok {
		return nil, chainerr.InvalidBlock(fmt.Sprintf("unknown vertex %s", hash))
	}

	visited := make(map[chaintypes.Hash]struct{})
	queue := append([]chaintypes.Hash(nil), d.edges[hash]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() {
			continue
		}
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		queue = append(queue, d.edges[cur]...)
	}

	out := make([]chaintypes.Hash, 0, len(visited))
	for h := range visited {
		out = append(out, h)
	}
	return out, nil
}

// Descendants walks forward along reverse edges.
func (d *DAG) Descendants(hash chaintypes.Hash) ([]chaintypes.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.vertices[hash]; !ok {
		return nil, chainerr.InvalidBlock(fmt.Sprintf("unknown vertex %s", hash))
	}

	visited := make(map[chaintypes.Hash]struct{})
	queue := append([]chaintypes.Hash(nil), d.reverseEdges[hash]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() {
			continue
		}
		if _, seen := visited[cur]; seen {
			continue
		}
		visited[cur] = struct{}{}
		queue = append(queue, d.reverseEdges[cur]...)
	}

	out := make([]chaintypes.Hash, 0, len(visited))
	for h := range visited {
		out = append(out, h)
	}
	return out, nil
}

// TopologicalSort runs Kahn's algorithm over in-degrees computed from
// forward edges; the zero hash is skipped entirely.
func (d *DAG) TopologicalSort() ([]chaintypes.Hash, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	inDegree := make(map[chaintypes.Hash]int, len(d.vertices))
	for h := range d.vertices {
		inDegree[h] = 0
	}
	for h, refs := range d.edges {
		for _, ref := range refs {
			if ref.IsZero() {
				continue
			}
			if _, ok := d.vertices[h]; ok {
				inDegree[h]++
			}
		}
	}

	var queue []chaintypes.Hash
	for h, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, h)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return lessHash(queue[i], queue[j]) })

	order := make([]chaintypes.Hash, 0, len(d.vertices))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, dependent := range d.reverseEdges[cur] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
				sort.Slice(queue, func(i, j int) bool { return lessHash(queue[i], queue[j]) })
			}
		}
	}

	if len(order) != len(d.vertices) {
		return nil, chainerr.InvalidBlock("cycle detected during topological sort")
	}
	return order, nil
}

func lessHash(a, b chaintypes.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Prune drops the oldest blocks by timestamp until at most keepRecent
// vertices remain, but never removes a block that currently has
// descendants (a vertex referenced by another).
func (d *DAG) Prune(keepRecent int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.vertices) <= keepRecent {
		return nil
	}

	type entry struct {
		hash chaintypes.Hash
		ts   time.Time
	}
	all := make([]entry, 0, len(d.vertices))
	for h, v := range d.vertices {
		all = append(all, entry{h, v.Timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })

	removed := 0
	target := len(d.vertices) - keepRecent
	for _, e := range all {
		if removed >= target {
			break
		}
		if len(d.reverseEdges[e.hash]) > 0 {
			continue
		}
		d.removeVertexLocked(e.hash)
		removed++
	}
	return nil
}

func (d *DAG) removeVertexLocked(hash chaintypes.Hash) {
	for _, ref := range d.edges[hash] {
		if ref.IsZero() {
			continue
		}
		revs := d.reverseEdges[ref]
		for i, h := range revs {
			if h == hash {
				d.reverseEdges[ref] = append(revs[:i], revs[i+1:]...)
				break
			}
		}
	}
	delete(d.edges, hash)
	delete(d.reverseEdges, hash)
	delete(d.vertices, hash)
}

// CheckConsistency verifies: every edge target (non-zero) exists as a
// vertex, and every reverse edge has a matching forward edge.
func (d *DAG) CheckConsistency() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for h, refs := range d.edges {
		for _, ref := range refs {
			if ref.IsZero() {
				continue
			}
			if _, ok := d.vertices[ref]; !ok {
				return chainerr.InvalidBlock(fmt.Sprintf("edge %s -> %s: target missing", h, ref))
			}
		}
	}
	for target, sources := range d.reverseEdges {
		for _, source := range sources {
			found := false
			for _, ref := range d.edges[source] {
				if ref == target {
					found = true
					break
				}
			}
			if !found {
				return chainerr.InvalidBlock(fmt.Sprintf("reverse edge %s -> %s: no matching forward edge", target, source))
			}
		}
	}
	return nil
}
