package syntax

import (
	"stubtree/internal/source"
	"stubtree/internal/stub"
)

// Attrs are the facts a parser adapter records for one declaration.
type Attrs struct {
	Name         string // empty means anonymous
	Span         source.Span
	Modifiers    Modifiers
	Local        bool
	Var          bool
	Initializer  bool
	Receiver     bool
	DeclaredType bool
	Body         bool
	TypeParams   bool
	Literal      Literal
	Origin       stub.Origin
}

// Node is the concrete Decl produced by parser adapters and tests.
type Node struct {
	kind     DeclKind
	attrs    Attrs
	pkg      string
	script   bool
	parent   *Node
	children []*Node
}

// NewFile creates a file root. name is the file name, pkg its package.
func NewFile(name, pkg string, script bool) *Node {
	return &Node{
		kind:   DeclFile,
		attrs:  Attrs{Name: name},
		pkg:    pkg,
		script: script,
	}
}

// Add appends a child declaration in source order and returns it.
func (n *Node) Add(kind DeclKind, attrs Attrs) *Node {
	child := &Node{kind: kind, attrs: attrs, pkg: n.pkg, parent: n}
	n.children = append(n.children, child)
	return child
}

// File returns the root of the tree the node belongs to.
func (n *Node) File() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Len counts the node and all its descendants.
func (n *Node) Len() int {
	total := 1
	for _, c := range n.children {
		total += c.Len()
	}
	return total
}

func (n *Node) Kind() DeclKind        { return n.kind }
func (n *Node) Span() source.Span     { return n.attrs.Span }
func (n *Node) Modifiers() Modifiers  { return n.attrs.Modifiers }
func (n *Node) Package() string       { return n.pkg }
func (n *Node) IsVar() bool           { return n.attrs.Var }
func (n *Node) IsScript() bool        { return n.File().script }
func (n *Node) HasReceiverType() bool { return n.attrs.Receiver }
func (n *Node) HasDeclaredType() bool { return n.attrs.DeclaredType }
func (n *Node) HasBody() bool         { return n.attrs.Body }
func (n *Node) HasTypeParams() bool   { return n.attrs.TypeParams }

func (n *Node) Name() (string, bool) {
	return n.attrs.Name, n.attrs.Name != ""
}

func (n *Node) Parent() Decl {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []Decl {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]Decl, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// IsLocal reports whether the declaration sits inside executable code,
// directly or through an enclosing local declaration.
func (n *Node) IsLocal() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.attrs.Local {
			return true
		}
	}
	return false
}

// IsTopLevel reports whether the declaration is a direct child of the file.
func (n *Node) IsTopLevel() bool {
	return n.parent != nil && n.parent.kind == DeclFile
}

func (n *Node) HasInitializer() bool {
	return n.attrs.Initializer || n.attrs.Literal.Kind != LitNone
}

func (n *Node) Initializer() (Literal, bool) {
	return n.attrs.Literal, n.attrs.Literal.Kind != LitNone
}

func (n *Node) Origin() (stub.Origin, bool) {
	return n.attrs.Origin, n.attrs.Origin.IsSet()
}
