// Package elements binds each declaration kind to the code that builds,
// encodes and indexes its stubs.
//
// An ElementType is the capability table of one kind. A Registry maps kind
// tags (and syntax declaration kinds) to element types; everything that walks
// trees (Builder, EncodeTree, DecodeTree, IndexTree) goes through it, so
// adding a kind means registering one more ElementType.
package elements

import (
	"errors"

	"stubtree/internal/index"
	"stubtree/internal/stub"
	"stubtree/internal/stubio"
	"stubtree/internal/syntax"
)

// ErrLocalDeclaration is the panic cause when a stub is requested for a
// declaration inside executable code.
var ErrLocalDeclaration = errors.New("stub requested for local declaration")

// BuildContext carries the collaborators stub creation may consult.
type BuildContext struct {
	Resolver syntax.Resolver
}

func (c BuildContext) resolve(d syntax.Decl) stub.NullString {
	if c.Resolver == nil {
		return stub.NullString{}
	}
	if fq, ok := c.Resolver.Resolve(d); ok {
		return stub.Some(fq)
	}
	return stub.NullString{}
}

// ElementType is the build/codec/index triple of one stub kind.
type ElementType interface {
	Kind() stub.Kind
	DeclKind() syntax.DeclKind

	// ShouldCreateStub filters declarations the builder skips with their subtree.
	ShouldCreateStub(d syntax.Decl) bool
	// CreateStub derives the node fields from d. It is pure and panics when
	// d breaks the kind's contract.
	CreateStub(d syntax.Decl, parent *stub.Node, ctx BuildContext) stub.Data

	// Serialize writes the fields of n in the kind's fixed order.
	Serialize(n *stub.Node, w *stubio.Writer) error
	// Deserialize reads what Serialize wrote.
	Deserialize(r *stubio.Reader) (stub.Data, error)

	// IndexStub contributes n to the sink. Total over well-formed nodes.
	IndexStub(n *stub.Node, sink index.Sink)
}
