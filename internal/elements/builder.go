package elements

import (
	"errors"
	"fmt"

	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

// ErrNoElementType is reported when a declaration kind has no registered
// element type.
var ErrNoElementType = errors.New("no element type for declaration")

// Builder turns declaration trees into stub trees.
type Builder struct {
	reg *Registry
	ctx BuildContext
}

// NewBuilder creates a builder. A nil resolver leaves every fqName absent.
func NewBuilder(reg *Registry, resolver syntax.Resolver) *Builder {
	if resolver == nil {
		resolver = syntax.NoResolver
	}
	return &Builder{reg: reg, ctx: BuildContext{Resolver: resolver}}
}

// Result is a freshly built tree together with the declarations its nodes
// came from. The enrichment phase needs the declarations; nothing else does.
type Result struct {
	Tree  *stub.Tree
	Decls map[stub.NodeID]syntax.Decl
}

// BuildStub creates one node for decl under parent. It panics when decl has
// no element type or breaks the element type's contract.
func (b *Builder) BuildStub(decl syntax.Decl, tree *stub.Tree, parent stub.NodeID) stub.NodeID {
	et, ok := b.reg.ForDecl(decl.Kind())
	if !ok {
		panic(fmt.Errorf("build %s: %w", decl.Kind(), ErrNoElementType))
	}
	data := et.CreateStub(decl, tree.Node(parent), b.ctx)
	return tree.Add(parent, data)
}

// BuildTree builds the stub tree of one file top-down and seals it.
// Declarations the registry does not know, and those an element type
// declines, are skipped together with their subtree.
func (b *Builder) BuildTree(path string, file syntax.Decl) (*Result, error) {
	if file == nil || file.Kind() != syntax.DeclFile {
		return nil, fmt.Errorf("build %s: root is not a file", path)
	}
	if _, ok := b.reg.ForDecl(syntax.DeclFile); !ok {
		return nil, fmt.Errorf("build %s: %w", path, ErrNoElementType)
	}

	res := &Result{
		Tree:  stub.NewTree(path, 0),
		Decls: make(map[stub.NodeID]syntax.Decl),
	}
	var visit func(d syntax.Decl, parent stub.NodeID)
	visit = func(d syntax.Decl, parent stub.NodeID) {
		et, ok := b.reg.ForDecl(d.Kind())
		if !ok || !et.ShouldCreateStub(d) {
			return
		}
		id := b.BuildStub(d, res.Tree, parent)
		res.Decls[id] = d
		for _, child := range d.Children() {
			visit(child, id)
		}
	}
	visit(file, stub.NoNodeID)
	res.Tree.Seal()
	return res, nil
}
