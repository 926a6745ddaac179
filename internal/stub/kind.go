package stub

// Kind tags a declaration category. The set is open: element types register
// new kinds, the constants below are the ones shipped with the default registry.
type Kind string

const (
	KindFile      Kind = "file"
	KindClass     Kind = "class"
	KindObject    Kind = "object"
	KindFunction  Kind = "function"
	KindProperty  Kind = "property"
	KindTypeAlias Kind = "typealias"
)

func (k Kind) String() string { return string(k) }

// IsValid reports whether the tag is non-empty.
func (k Kind) IsValid() bool { return k != "" }
