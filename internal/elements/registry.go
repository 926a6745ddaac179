package elements

import (
	"errors"
	"fmt"
	"slices"

	"stubtree/internal/index"
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

var (
	// ErrDuplicateKind means two element types claim the same kind tag.
	ErrDuplicateKind = errors.New("duplicate stub kind")
	// ErrDuplicateDecl means two element types claim the same declaration kind.
	ErrDuplicateDecl = errors.New("duplicate declaration kind")
	// ErrInvalidKind means an element type reported an empty kind tag.
	ErrInvalidKind = errors.New("invalid stub kind")
)

// ConfigError is a registry setup failure. It is raised while registering,
// before any stub is built.
type ConfigError struct {
	Kind stub.Kind
	Decl syntax.DeclKind
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("element registry: kind %q (decl %s): %v", e.Kind, e.Decl, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Registry maps kind tags and declaration kinds to element types.
// Register everything at startup; lookups are safe for concurrent use once
// registration is over.
type Registry struct {
	byKind map[stub.Kind]ElementType
	byDecl map[syntax.DeclKind]ElementType
	order  []stub.Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[stub.Kind]ElementType),
		byDecl: make(map[syntax.DeclKind]ElementType),
	}
}

// NewDefaultRegistry registers every shipped element type.
func NewDefaultRegistry(policy index.Policy) *Registry {
	r := NewRegistry()
	r.MustRegister(NewFileType(policy))
	r.MustRegister(NewClassType())
	r.MustRegister(NewObjectType())
	r.MustRegister(NewFunctionType(policy))
	r.MustRegister(NewPropertyType(policy))
	r.MustRegister(NewTypeAliasType(policy))
	return r
}

// Register adds et. Tag collisions are reported as *ConfigError and leave the
// registry unchanged.
func (r *Registry) Register(et ElementType) error {
	kind, decl := et.Kind(), et.DeclKind()
	switch {
	case !kind.IsValid():
		return &ConfigError{Kind: kind, Decl: decl, Err: ErrInvalidKind}
	case r.byKind[kind] != nil:
		return &ConfigError{Kind: kind, Decl: decl, Err: ErrDuplicateKind}
	case r.byDecl[decl] != nil:
		return &ConfigError{Kind: kind, Decl: decl, Err: ErrDuplicateDecl}
	}
	r.byKind[kind] = et
	r.byDecl[decl] = et
	r.order = append(r.order, kind)
	return nil
}

// MustRegister is Register for startup code: a collision panics.
func (r *Registry) MustRegister(et ElementType) {
	if err := r.Register(et); err != nil {
		panic(err)
	}
}

// Lookup finds the element type for a kind tag.
func (r *Registry) Lookup(kind stub.Kind) (ElementType, bool) {
	et, ok := r.byKind[kind]
	return et, ok
}

// ForDecl finds the element type that builds stubs for a declaration kind.
func (r *Registry) ForDecl(kind syntax.DeclKind) (ElementType, bool) {
	et, ok := r.byDecl[kind]
	return et, ok
}

// Kinds returns the registered kind tags in registration order.
func (r *Registry) Kinds() []stub.Kind {
	return slices.Clone(r.order)
}

// Covers reports whether every kind in kinds is registered. Persisted trees
// written with a kind this registry lacks cannot be decoded.
func (r *Registry) Covers(kinds []stub.Kind) bool {
	for _, k := range kinds {
		if _, ok := r.byKind[k]; !ok {
			return false
		}
	}
	return true
}
