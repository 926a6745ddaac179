package stub

// Flags encode surface syntactic facts of a declaration.
// Every bit is independent; no combination is rejected.
type Flags uint16

const (
	FlagVar Flags = 1 << iota
	FlagTopLevel
	FlagHasInitializer
	FlagExtension     // explicit receiver type
	FlagHasReturnType // explicit declared/return type
	FlagHasBody
	FlagHasTypeParams
	FlagInterface
	FlagEnum
	FlagData
	FlagCompanion
	FlagConst
	FlagScript
)

var flagLabels = [...]struct {
	flag  Flags
	label string
}{
	{FlagVar, "var"},
	{FlagTopLevel, "top-level"},
	{FlagHasInitializer, "initializer"},
	{FlagExtension, "extension"},
	{FlagHasReturnType, "typed"},
	{FlagHasBody, "body"},
	{FlagHasTypeParams, "generic"},
	{FlagInterface, "interface"},
	{FlagEnum, "enum"},
	{FlagData, "data"},
	{FlagCompanion, "companion"},
	{FlagConst, "const"},
	{FlagScript, "script"},
}

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// With returns f with f2 set when on is true.
func (f Flags) With(f2 Flags, on bool) Flags {
	if on {
		return f | f2
	}
	return f &^ f2
}

// Strings returns a slice of textual flag labels.
func (f Flags) Strings() []string {
	if f == 0 {
		return nil
	}
	labels := make([]string, 0, 4)
	for _, fl := range flagLabels {
		if f&fl.flag != 0 {
			labels = append(labels, fl.label)
		}
	}
	return labels
}
