package stub

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// ErrSealed is reported when a sealed tree is asked to grow.
var ErrSealed = errors.New("stub tree is sealed")

// Tree owns the stub nodes of one source file in a compact arena.
// Index 0 is reserved for NoNodeID; the first added node is the root.
type Tree struct {
	path   string
	nodes  []Node
	sealed bool
}

// NewTree creates an empty tree for the file at path with an optional capacity hint.
func NewTree(path string, capHint uint32) *Tree {
	if capHint == 0 {
		capHint = 16
	}
	return &Tree{
		path:  path,
		nodes: make([]Node, 1, capHint+1), // index 0 reserved for NoNodeID
	}
}

// Path returns the file the tree summarizes.
func (t *Tree) Path() string { return t.path }

// Add appends a node under parent and returns its ID. The first node must be
// added with NoNodeID as parent and becomes the root; every later node needs
// a valid parent. Children keep insertion order.
func (t *Tree) Add(parent NodeID, data Data) NodeID {
	if t.sealed {
		panic(fmt.Errorf("stub.Tree.Add %s: %w", data.Kind, ErrSealed))
	}
	if !data.Kind.IsValid() {
		panic("stub.Tree.Add: empty kind")
	}
	switch {
	case len(t.nodes) == 1 && parent.IsValid():
		panic("stub.Tree.Add: root must not have a parent")
	case len(t.nodes) > 1 && t.Node(parent) == nil:
		panic(fmt.Errorf("stub.Tree.Add: invalid parent %d", parent))
	}
	value, err := safecast.Conv[uint32](len(t.nodes))
	if err != nil {
		panic(fmt.Errorf("stub arena overflow: %w", err))
	}
	id := NodeID(value)
	t.nodes = append(t.nodes, Node{id: id, parent: parent, data: data})
	if parent.IsValid() {
		p := &t.nodes[parent]
		p.children = append(p.children, id)
	}
	return id
}

// Seal freezes the tree; afterwards it is safe to share between goroutines.
func (t *Tree) Seal() *Tree {
	t.sealed = true
	return t
}

// Sealed reports whether the tree no longer accepts nodes.
func (t *Tree) Sealed() bool { return t.sealed }

// Node returns the node pointer or nil if the ID is invalid.
func (t *Tree) Node(id NodeID) *Node {
	if t == nil || !id.IsValid() || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Root returns the first node, or nil for an empty tree.
func (t *Tree) Root() *Node { return t.Node(1) }

// Parent resolves the enclosing node by arena index.
func (t *Tree) Parent(id NodeID) *Node {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	return t.Node(n.parent)
}

// Len reports the number of nodes excluding the sentinel.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes) - 1
}

// Nodes exposes the arena without the sentinel in allocation order.
// READONLY
func (t *Tree) Nodes() []Node {
	if t == nil || len(t.nodes) <= 1 {
		return nil
	}
	return t.nodes[1:]
}

// Walk visits nodes depth-first in source order. Returning false from fn
// skips the subtree of that node.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	root := t.Root()
	if root == nil {
		return
	}
	var visit func(id NodeID, depth int)
	visit = func(id NodeID, depth int) {
		n := &t.nodes[id]
		if !fn(n, depth) {
			return
		}
		for _, child := range n.children {
			visit(child, depth+1)
		}
	}
	visit(root.id, 0)
}

// WithConstants returns a sealed copy of the tree where the given nodes carry
// the supplied constant values. The receiver is left untouched.
func (t *Tree) WithConstants(values map[NodeID]ConstValue) *Tree {
	out := &Tree{
		path:   t.path,
		nodes:  make([]Node, len(t.nodes)),
		sealed: true,
	}
	copy(out.nodes, t.nodes)
	for i := range out.nodes {
		out.nodes[i].children = append([]NodeID(nil), t.nodes[i].children...)
	}
	for id, value := range values {
		if n := out.Node(id); n != nil {
			n.data.Constant = value
		}
	}
	return out
}

// Equal reports whether two trees have the same shape and node data.
// File paths are not compared.
func (t *Tree) Equal(other *Tree) bool {
	if t.Len() != other.Len() {
		return false
	}
	if t.Len() == 0 {
		return true
	}
	for i := 1; i < len(t.nodes); i++ {
		a, b := &t.nodes[i], &other.nodes[i]
		if a.parent != b.parent || !a.data.Equal(b.data) || len(a.children) != len(b.children) {
			return false
		}
		for j := range a.children {
			if a.children[j] != b.children[j] {
				return false
			}
		}
	}
	return true
}
