package syntax

import (
	"slices"
	"strings"
)

// Resolver computes qualified names without semantic analysis. It must not
// fail: an unresolvable declaration simply has no qualified name.
type Resolver interface {
	Resolve(d Decl) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(d Decl) (string, bool)

func (f ResolverFunc) Resolve(d Decl) (string, bool) { return f(d) }

// NoResolver never resolves anything.
var NoResolver Resolver = ResolverFunc(func(Decl) (string, bool) { return "", false })

// PackageResolver derives package.Outer.Inner.name from lexical nesting.
// Declarations inside local or anonymous scopes, and declarations nested in
// functions, have no qualified name.
type PackageResolver struct{}

func (PackageResolver) Resolve(d Decl) (string, bool) {
	if d == nil || d.IsLocal() {
		return "", false
	}
	if d.Kind() == DeclFile {
		return d.Package(), true
	}
	name, ok := d.Name()
	if !ok {
		return "", false
	}
	segments := []string{name}
	for p := d.Parent(); p != nil && p.Kind() != DeclFile; p = p.Parent() {
		if p.Kind() == DeclFunction || p.Kind() == DeclProperty {
			return "", false
		}
		outer, ok := p.Name()
		if !ok {
			return "", false
		}
		segments = append(segments, outer)
	}
	if pkg := d.Package(); pkg != "" {
		segments = append(segments, pkg)
	}
	slices.Reverse(segments)
	return strings.Join(segments, "."), true
}
