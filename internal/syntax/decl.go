// Package syntax describes the read-only declaration view stub builders
// consume, plus the two collaborators that enrich it: a name resolver and a
// constant evaluator.
package syntax

import (
	"stubtree/internal/source"
	"stubtree/internal/stub"
)

// DeclKind classifies a syntax-tree declaration.
type DeclKind uint8

const (
	DeclInvalid DeclKind = iota
	DeclFile
	DeclClass
	DeclObject
	DeclFunction
	DeclProperty
	DeclTypeAlias
)

func (k DeclKind) String() string {
	switch k {
	case DeclFile:
		return "file"
	case DeclClass:
		return "class"
	case DeclObject:
		return "object"
	case DeclFunction:
		return "function"
	case DeclProperty:
		return "property"
	case DeclTypeAlias:
		return "typealias"
	default:
		return "invalid"
	}
}

// Modifiers is the set of soft keywords written in front of a declaration.
type Modifiers uint32

const (
	ModConst Modifiers = 1 << iota
	ModData
	ModEnum
	ModInterface
	ModCompanion
	ModAbstract
	ModOpen
	ModSealed
	ModOverride
	ModPrivate
	ModProtected
	ModInternal
	ModLateinit
	ModInline
	ModInfix
	ModOperator
	ModSuspend
	ModExternal
	ModAnnotation
	ModValue
	ModFun
)

var modifierNames = map[string]Modifiers{
	"const":      ModConst,
	"data":       ModData,
	"enum":       ModEnum,
	"interface":  ModInterface,
	"companion":  ModCompanion,
	"abstract":   ModAbstract,
	"open":       ModOpen,
	"sealed":     ModSealed,
	"override":   ModOverride,
	"private":    ModPrivate,
	"protected":  ModProtected,
	"internal":   ModInternal,
	"lateinit":   ModLateinit,
	"inline":     ModInline,
	"infix":      ModInfix,
	"operator":   ModOperator,
	"suspend":    ModSuspend,
	"external":   ModExternal,
	"annotation": ModAnnotation,
	"value":      ModValue,
	"fun":        ModFun,
}

// ParseModifier maps a keyword to its bit; unknown keywords yield 0.
func ParseModifier(word string) Modifiers { return modifierNames[word] }

func (m Modifiers) Has(flag Modifiers) bool { return m&flag != 0 }

// LiteralKind classifies an initializer expression the evaluator can fold.
type LiteralKind uint8

const (
	LitNone LiteralKind = iota
	LitNull
	LitBool
	LitInt
	LitFloat
	LitString
	LitReference // dotted name, possibly an enum entry
)

// Literal is the raw token text of a simple initializer. String literals hold
// the text between the quotes with escapes still in place.
type Literal struct {
	Kind LiteralKind
	Text string
}

// Decl is the read-only view of one declaration in a parsed file.
type Decl interface {
	Kind() DeclKind
	// Name is absent for anonymous declarations.
	Name() (string, bool)
	Span() source.Span
	// Parent returns nil for the file root.
	Parent() Decl
	Children() []Decl
	Modifiers() Modifiers
	// Package is the package of the enclosing file, "" for the default package.
	Package() string

	IsLocal() bool
	IsTopLevel() bool
	IsVar() bool
	IsScript() bool
	HasInitializer() bool
	HasReceiverType() bool
	HasDeclaredType() bool
	HasBody() bool
	HasTypeParams() bool

	Initializer() (Literal, bool)
	// Origin is set only for declarations synthesized by tooling.
	Origin() (stub.Origin, bool)
}
