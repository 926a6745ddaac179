package elements

import (
	"stubtree/internal/index"
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

// PropertyType handles `val`/`var` declarations at file and class level.
type PropertyType struct {
	codec
	policy index.Policy
}

// NewPropertyType creates the property element type.
// Wire order: name, isVar, isTopLevel, hasInitializer, hasReceiverType,
// hasReturnTypeRef, fqName, constant, origin.
func NewPropertyType(policy index.Policy) *PropertyType {
	return &PropertyType{
		codec: codec{layout: newLayout(stub.KindProperty,
			nameSlot(),
			flagSlot(stub.FlagVar, "isVar"),
			flagSlot(stub.FlagTopLevel, "isTopLevel"),
			flagSlot(stub.FlagHasInitializer, "hasInitializer"),
			flagSlot(stub.FlagExtension, "hasReceiverTypeRef"),
			flagSlot(stub.FlagHasReturnType, "hasReturnTypeRef"),
			fqNameSlot(),
			constSlot(),
			originSlot(),
		)},
		policy: policy,
	}
}

func (*PropertyType) DeclKind() syntax.DeclKind { return syntax.DeclProperty }

func (*PropertyType) ShouldCreateStub(d syntax.Decl) bool { return nonLocal(d) }

// CreateStub leaves the constant absent: values arrive in the enrichment phase.
func (*PropertyType) CreateStub(d syntax.Decl, _ *stub.Node, ctx BuildContext) stub.Data {
	mustNotBeLocal(d)
	data := stub.Data{
		Kind:   stub.KindProperty,
		Name:   declName(d),
		FqName: ctx.resolve(d),
		Flags: stub.Flags(0).
			With(stub.FlagVar, d.IsVar()).
			With(stub.FlagTopLevel, d.IsTopLevel()).
			With(stub.FlagHasInitializer, d.HasInitializer()).
			With(stub.FlagExtension, d.HasReceiverType()).
			With(stub.FlagHasReturnType, d.HasDeclaredType()),
	}
	if origin, ok := d.Origin(); ok {
		data.Origin = origin
	}
	return data
}

func (t *PropertyType) IndexStub(n *stub.Node, sink index.Sink) {
	name, ok := n.Name()
	if !ok {
		return
	}
	sink.Contribute(index.Key{Index: index.PropertyShort, Value: name}, n.ID())
	if n.IsTopLevel() {
		indexTopLevel(n, name, sink, t.policy, index.PropertyTopLevelFq, index.PropertyTopLevelPkg)
	}
}
