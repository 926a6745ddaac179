package stub

// NullString is an optional string. The zero value is absent.
type NullString struct {
	Value string
	Valid bool
}

// Some wraps a present string.
func Some(s string) NullString { return NullString{Value: s, Valid: true} }

// Get returns the value and whether it is present.
func (s NullString) Get() (string, bool) { return s.Value, s.Valid }

func (s NullString) String() string {
	if !s.Valid {
		return "<none>"
	}
	return s.Value
}

// Data is the field record of a stub node: everything a codec owns.
// Two nodes are equivalent when their Data compare equal; parent and
// children are structural and live in the tree.
type Data struct {
	Kind     Kind
	Name     NullString
	Flags    Flags
	FqName   NullString
	Constant ConstValue
	Origin   Origin
}

// Equal reports field equality, with constants compared by ConstValue.Equal.
func (d Data) Equal(o Data) bool {
	if !d.Constant.Equal(o.Constant) {
		return false
	}
	d.Constant, o.Constant = ConstValue{}, ConstValue{}
	return d == o
}

// Node is one declaration summary inside a Tree. Nodes are created by Tree.Add
// and never change afterwards.
type Node struct {
	id       NodeID
	parent   NodeID
	children []NodeID
	data     Data
}

func (n *Node) ID() NodeID       { return n.id }
func (n *Node) Kind() Kind       { return n.data.Kind }
func (n *Node) Parent() NodeID   { return n.parent }
func (n *Node) Flags() Flags     { return n.data.Flags }
func (n *Node) Data() Data       { return n.data }
func (n *Node) Is(f Flags) bool  { return n.data.Flags.Has(f) }
func (n *Node) NumChildren() int { return len(n.children) }

// Children returns a copy of the ordered child IDs.
func (n *Node) Children() []NodeID {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out
}

// Name returns the symbol name, absent for anonymous declarations.
func (n *Node) Name() (string, bool) { return n.data.Name.Get() }

// FqName returns the qualified name supplied by the resolver at build time.
func (n *Node) FqName() (string, bool) { return n.data.FqName.Get() }

// Constant returns the compile-time constant, if one was attached.
func (n *Node) Constant() (ConstValue, bool) {
	return n.data.Constant, n.data.Constant.IsSet()
}

// Origin returns the provenance marker of synthesized declarations.
func (n *Node) Origin() (Origin, bool) {
	return n.data.Origin, n.data.Origin.IsSet()
}

// property surface

func (n *Node) IsVar() bool            { return n.Is(FlagVar) }
func (n *Node) IsTopLevel() bool       { return n.Is(FlagTopLevel) }
func (n *Node) HasInitializer() bool   { return n.Is(FlagHasInitializer) }
func (n *Node) IsExtension() bool      { return n.Is(FlagExtension) }
func (n *Node) HasReturnTypeRef() bool { return n.Is(FlagHasReturnType) }
