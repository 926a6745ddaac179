package elements

import (
	"stubtree/internal/index"
	"stubtree/internal/stub"
)

// IndexStub fans one node out into sink through its element type. Nodes of
// unknown kinds contribute nothing.
func (r *Registry) IndexStub(n *stub.Node, sink index.Sink) {
	if et, ok := r.Lookup(n.Kind()); ok {
		et.IndexStub(n, sink)
	}
}

// IndexTree indexes every node of a tree. It runs for fresh and decoded trees
// alike, so the index is always derived from stub data.
func (r *Registry) IndexTree(t *stub.Tree, sink index.Sink) {
	t.Walk(func(n *stub.Node, _ int) bool {
		r.IndexStub(n, sink)
		return true
	})
}
