// Package index holds the name-keyed lookup tables stub trees fan out into.
// Entries are always rebuilt from stubs; nothing here is persisted.
package index

import (
	"slices"

	"stubtree/internal/stub"
)

// ID names one index.
type ID string

const (
	ClassShort          ID = "class.short"
	ClassFqName         ID = "class.fqname"
	ObjectShort         ID = "object.short"
	ObjectFqName        ID = "object.fqname"
	FunctionShort       ID = "function.short"
	FunctionTopLevelFq  ID = "function.toplevel.fqname"
	FunctionTopLevelPkg ID = "function.toplevel.package"
	PropertyShort       ID = "property.short"
	PropertyTopLevelFq  ID = "property.toplevel.fqname"
	PropertyTopLevelPkg ID = "property.toplevel.package"
	TypeAliasShort      ID = "typealias.short"
	TypeAliasTopLevelFq ID = "typealias.toplevel.fqname"
	FilePackage         ID = "file.package"
)

// All lists every shipped index in a stable order.
var All = []ID{
	ClassShort, ClassFqName,
	ObjectShort, ObjectFqName,
	FunctionShort, FunctionTopLevelFq, FunctionTopLevelPkg,
	PropertyShort, PropertyTopLevelFq, PropertyTopLevelPkg,
	TypeAliasShort, TypeAliasTopLevelFq,
	FilePackage,
}

// Short lists the indexes keyed by simple name.
var Short = []ID{ClassShort, ObjectShort, FunctionShort, PropertyShort, TypeAliasShort}

func (id ID) String() string { return string(id) }

// Known reports whether id is one of the shipped indexes.
func Known(id ID) bool {
	return slices.Contains(All, id)
}

// Key is one lookup key inside one index.
type Key struct {
	Index ID
	Value string
}

// Ref points at a stub node in a file's tree.
type Ref struct {
	File string
	Node stub.NodeID
}

// Sink receives the contributions of one file's stubs.
// Implementations must tolerate repeated keys.
type Sink interface {
	Contribute(key Key, node stub.NodeID)
}

// Store accumulates contributions from many files, possibly concurrently.
type Store interface {
	Add(key Key, ref Ref)
}

// Policy toggles the optional index dimensions. Short-name and class/object
// fqname indexes are always on.
type Policy struct {
	Packages        bool // function/property top-level package indexes, file.package
	TopLevelFqNames bool // function/property/typealias top-level fqname indexes
}

// DefaultPolicy enables every dimension.
func DefaultPolicy() Policy {
	return Policy{Packages: true, TopLevelFqNames: true}
}

type fileSink struct {
	store Store
	path  string
}

func (s fileSink) Contribute(key Key, node stub.NodeID) {
	s.store.Add(key, Ref{File: s.path, Node: node})
}

// ForFile scopes a store to one file.
func ForFile(store Store, path string) Sink {
	return fileSink{store: store, path: path}
}
