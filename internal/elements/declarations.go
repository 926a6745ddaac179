package elements

import (
	"fmt"
	"strings"

	"stubtree/internal/index"
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

func declName(d syntax.Decl) stub.NullString {
	if name, ok := d.Name(); ok {
		return stub.Some(name)
	}
	return stub.NullString{}
}

// packageOf strips the trailing ".name" of a top-level fqName.
func packageOf(fq, name string) string {
	if fq == name {
		return ""
	}
	if trimmed, ok := strings.CutSuffix(fq, "."+name); ok {
		return trimmed
	}
	if i := strings.LastIndexByte(fq, '.'); i >= 0 {
		return fq[:i]
	}
	return ""
}

func indexTopLevel(n *stub.Node, name string, sink index.Sink, policy index.Policy, fqIndex, pkgIndex index.ID) {
	fq, ok := n.FqName()
	if !ok {
		return
	}
	if policy.TopLevelFqNames {
		sink.Contribute(index.Key{Index: fqIndex, Value: fq}, n.ID())
	}
	if policy.Packages && pkgIndex != "" {
		sink.Contribute(index.Key{Index: pkgIndex, Value: packageOf(fq, name)}, n.ID())
	}
}

func nonLocal(d syntax.Decl) bool { return !d.IsLocal() }

func mustNotBeLocal(d syntax.Decl) {
	if d.IsLocal() {
		name, _ := d.Name()
		panic(fmt.Errorf("%s %q at %s: %w", d.Kind(), name, d.Span(), ErrLocalDeclaration))
	}
}

// FunctionType handles named functions at file and class level.
type FunctionType struct {
	codec
	policy index.Policy
}

func NewFunctionType(policy index.Policy) *FunctionType {
	return &FunctionType{
		codec: codec{layout: newLayout(stub.KindFunction,
			nameSlot(),
			fqNameSlot(),
			flagSlot(stub.FlagTopLevel, "isTopLevel"),
			flagSlot(stub.FlagExtension, "isExtension"),
			flagSlot(stub.FlagHasReturnType, "hasReturnTypeRef"),
			flagSlot(stub.FlagHasBody, "hasBody"),
			flagSlot(stub.FlagHasTypeParams, "hasTypeParams"),
			originSlot(),
		)},
		policy: policy,
	}
}

func (*FunctionType) DeclKind() syntax.DeclKind           { return syntax.DeclFunction }
func (*FunctionType) ShouldCreateStub(d syntax.Decl) bool { return nonLocal(d) }

func (*FunctionType) CreateStub(d syntax.Decl, _ *stub.Node, ctx BuildContext) stub.Data {
	mustNotBeLocal(d)
	data := stub.Data{
		Kind:   stub.KindFunction,
		Name:   declName(d),
		FqName: ctx.resolve(d),
		Flags: stub.Flags(0).
			With(stub.FlagTopLevel, d.IsTopLevel()).
			With(stub.FlagExtension, d.HasReceiverType()).
			With(stub.FlagHasReturnType, d.HasDeclaredType()).
			With(stub.FlagHasBody, d.HasBody()).
			With(stub.FlagHasTypeParams, d.HasTypeParams()),
	}
	if origin, ok := d.Origin(); ok {
		data.Origin = origin
	}
	return data
}

func (t *FunctionType) IndexStub(n *stub.Node, sink index.Sink) {
	name, ok := n.Name()
	if !ok {
		return
	}
	sink.Contribute(index.Key{Index: index.FunctionShort, Value: name}, n.ID())
	if n.IsTopLevel() {
		indexTopLevel(n, name, sink, t.policy, index.FunctionTopLevelFq, index.FunctionTopLevelPkg)
	}
}

// ClassType handles classes, interfaces and enum classes.
type ClassType struct {
	codec
}

func NewClassType() *ClassType {
	return &ClassType{codec: codec{layout: newLayout(stub.KindClass,
		nameSlot(),
		fqNameSlot(),
		flagSlot(stub.FlagInterface, "isInterface"),
		flagSlot(stub.FlagEnum, "isEnum"),
		flagSlot(stub.FlagData, "isData"),
		flagSlot(stub.FlagTopLevel, "isTopLevel"),
		flagSlot(stub.FlagHasTypeParams, "hasTypeParams"),
	)}}
}

func (*ClassType) DeclKind() syntax.DeclKind           { return syntax.DeclClass }
func (*ClassType) ShouldCreateStub(d syntax.Decl) bool { return nonLocal(d) }

func (*ClassType) CreateStub(d syntax.Decl, _ *stub.Node, ctx BuildContext) stub.Data {
	mustNotBeLocal(d)
	mods := d.Modifiers()
	return stub.Data{
		Kind:   stub.KindClass,
		Name:   declName(d),
		FqName: ctx.resolve(d),
		Flags: stub.Flags(0).
			With(stub.FlagInterface, mods.Has(syntax.ModInterface)).
			With(stub.FlagEnum, mods.Has(syntax.ModEnum)).
			With(stub.FlagData, mods.Has(syntax.ModData)).
			With(stub.FlagTopLevel, d.IsTopLevel()).
			With(stub.FlagHasTypeParams, d.HasTypeParams()),
	}
}

func (*ClassType) IndexStub(n *stub.Node, sink index.Sink) {
	name, ok := n.Name()
	if !ok {
		return
	}
	sink.Contribute(index.Key{Index: index.ClassShort, Value: name}, n.ID())
	if fq, ok := n.FqName(); ok {
		sink.Contribute(index.Key{Index: index.ClassFqName, Value: fq}, n.ID())
	}
}

// ObjectType handles object declarations and companion objects.
type ObjectType struct {
	codec
}

func NewObjectType() *ObjectType {
	return &ObjectType{codec: codec{layout: newLayout(stub.KindObject,
		nameSlot(),
		fqNameSlot(),
		flagSlot(stub.FlagTopLevel, "isTopLevel"),
		flagSlot(stub.FlagCompanion, "isCompanion"),
	)}}
}

func (*ObjectType) DeclKind() syntax.DeclKind           { return syntax.DeclObject }
func (*ObjectType) ShouldCreateStub(d syntax.Decl) bool { return nonLocal(d) }

func (*ObjectType) CreateStub(d syntax.Decl, _ *stub.Node, ctx BuildContext) stub.Data {
	mustNotBeLocal(d)
	return stub.Data{
		Kind:   stub.KindObject,
		Name:   declName(d),
		FqName: ctx.resolve(d),
		Flags: stub.Flags(0).
			With(stub.FlagTopLevel, d.IsTopLevel()).
			With(stub.FlagCompanion, d.Modifiers().Has(syntax.ModCompanion)),
	}
}

func (*ObjectType) IndexStub(n *stub.Node, sink index.Sink) {
	name, ok := n.Name()
	if !ok {
		return
	}
	sink.Contribute(index.Key{Index: index.ObjectShort, Value: name}, n.ID())
	if fq, ok := n.FqName(); ok {
		sink.Contribute(index.Key{Index: index.ObjectFqName, Value: fq}, n.ID())
	}
}

// TypeAliasType handles typealias declarations.
type TypeAliasType struct {
	codec
	policy index.Policy
}

func NewTypeAliasType(policy index.Policy) *TypeAliasType {
	return &TypeAliasType{
		codec: codec{layout: newLayout(stub.KindTypeAlias,
			nameSlot(),
			fqNameSlot(),
			flagSlot(stub.FlagTopLevel, "isTopLevel"),
			flagSlot(stub.FlagHasTypeParams, "hasTypeParams"),
		)},
		policy: policy,
	}
}

func (*TypeAliasType) DeclKind() syntax.DeclKind           { return syntax.DeclTypeAlias }
func (*TypeAliasType) ShouldCreateStub(d syntax.Decl) bool { return nonLocal(d) }

func (*TypeAliasType) CreateStub(d syntax.Decl, _ *stub.Node, ctx BuildContext) stub.Data {
	mustNotBeLocal(d)
	return stub.Data{
		Kind:   stub.KindTypeAlias,
		Name:   declName(d),
		FqName: ctx.resolve(d),
		Flags: stub.Flags(0).
			With(stub.FlagTopLevel, d.IsTopLevel()).
			With(stub.FlagHasTypeParams, d.HasTypeParams()),
	}
}

func (t *TypeAliasType) IndexStub(n *stub.Node, sink index.Sink) {
	name, ok := n.Name()
	if !ok {
		return
	}
	sink.Contribute(index.Key{Index: index.TypeAliasShort, Value: name}, n.ID())
	if n.IsTopLevel() {
		indexTopLevel(n, name, sink, t.policy, index.TypeAliasTopLevelFq, "")
	}
}

// FileType is the root of every tree. It carries the package name and
// whether the file is a script.
type FileType struct {
	codec
	policy index.Policy
}

func NewFileType(policy index.Policy) *FileType {
	return &FileType{
		codec: codec{layout: newLayout(stub.KindFile,
			fqNameSlot(),
			flagSlot(stub.FlagScript, "isScript"),
		)},
		policy: policy,
	}
}

func (*FileType) DeclKind() syntax.DeclKind         { return syntax.DeclFile }
func (*FileType) ShouldCreateStub(syntax.Decl) bool { return true }

func (*FileType) CreateStub(d syntax.Decl, _ *stub.Node, _ BuildContext) stub.Data {
	return stub.Data{
		Kind:   stub.KindFile,
		FqName: stub.Some(d.Package()),
		Flags:  stub.Flags(0).With(stub.FlagScript, d.IsScript()),
	}
}

func (t *FileType) IndexStub(n *stub.Node, sink index.Sink) {
	if !t.policy.Packages {
		return
	}
	if pkg, ok := n.FqName(); ok {
		sink.Contribute(index.Key{Index: index.FilePackage, Value: pkg}, n.ID())
	}
}
