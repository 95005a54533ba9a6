package dag

import (
	"testing"
	"time"

	"github.com/hazechain/haze/internal/chaintypes"
)

func block(hash byte) *chaintypes.Block {
	var h chaintypes.Hash
	h[0] = hash
	return &chaintypes.Block{Header: chaintypes.BlockHeader{Hash: h}}
}

func TestAddVertexRejectsMissingReference(t *testing.T) {
	d := New()
	var missing chaintypes.Hash
	missing[0] = 0xff
	if err := d.AddVertex(block(1), []chaintypes.Hash{missing}, 0, time.Now()); err == nil {
		t.Fatal("expected error referencing a non-existent vertex")
	}
}

func TestAddVertexAllowsZeroReference(t *testing.T) {
	d := New()
	if err := d.AddVertex(block(1), []chaintypes.Hash{chaintypes.ZeroHash}, 0, time.Now()); err != nil {
		t.Fatalf("zero hash reference should be allowed (genesis case): %v", err)
	}
}

func TestIncomingEdgeCountAndTopologicalSort(t *testing.T) {
	d := New()
	now := time.Now()
	a := block(1)
	b := block(2)
	c := block(3)
	if err := d.AddVertex(a, nil, 0, now); err != nil {
		t.Fatalf("add a: %v", err)
	}
	if err := d.AddVertex(b, []chaintypes.Hash{a.Header.Hash}, 0, now); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if err := d.AddVertex(c, []chaintypes.Hash{a.Header.Hash, b.Header.Hash}, 0, now); err != nil {
		t.Fatalf("add c: %v", err)
	}

	if got := d.IncomingEdgeCount(a.Header.Hash); got != 2 {
		t.Fatalf("incoming edges for a = %d, want 2", got)
	}
	if got := d.IncomingEdgeCount(c.Header.Hash); got != 0 {
		t.Fatalf("incoming edges for c = %d, want 0", got)
	}

	order, err := d.TopologicalSort()
	if err != nil {
		t.Fatalf("topo sort: %v", err)
	}
	pos := make(map[chaintypes.Hash]int, len(order))
	for i, h := range order {
		pos[h] = i
	}
	if pos[a.Header.Hash] > pos[b.Header.Hash] || pos[b.Header.Hash] > pos[c.Header.Hash] {
		t.Fatalf("topological order violates dependency edges: %v", order)
	}
}

func TestAncestorsAndDescendants(t *testing.T) {
	d := New()
	now := time.Now()
	a, b, c := block(1), block(2), block(3)
	_ = d.AddVertex(a, nil, 0, now)
	_ = d.AddVertex(b, []chaintypes.Hash{a.Header.Hash}, 0, now)
	_ = d.AddVertex(c, []chaintypes.Hash{b.Header.Hash}, 0, now)

	anc, err := d.Ancestors(c.Header.Hash)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(anc) != 2 {
		t.Fatalf("ancestors of c = %v, want 2 entries", anc)
	}

	desc, err := d.Descendants(a.Header.Hash)
	if err != nil {
		t.Fatalf("descendants: %v", err)
	}
	if len(desc) != 2 {
		t.Fatalf("descendants of a = %v, want 2 entries", desc)
	}
}

func TestPruneKeepsVertexWithDescendants(t *testing.T) {
	d := New()
	now := time.Now()
	a := block(1)
	b := block(2)
	_ = d.AddVertex(a, nil, 0, now)
	_ = d.AddVertex(b, []chaintypes.Hash{a.Header.Hash}, 0, now.Add(time.Second))

	if err := d.Prune(1); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, ok := d.Get(a.Header.Hash); !ok {
		t.Fatal("a has a descendant and must survive pruning")
	}
}

func TestCheckConsistency(t *testing.T) {
	d := New()
	now := time.Now()
	a := block(1)
	b := block(2)
	_ = d.AddVertex(a, nil, 0, now)
	_ = d.AddVertex(b, []chaintypes.Hash{a.Header.Hash}, 0, now)
	if err := d.CheckConsistency(); err != nil {
		t.Fatalf("consistency check should pass on a well-formed dag: %v", err)
	}
}
