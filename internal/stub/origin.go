package stub

// OriginKind distinguishes tool-synthesized declarations from source ones.
type OriginKind uint8

const (
	OriginNone            OriginKind = iota // written in source
	OriginFacade                            // members of a generated file facade class
	OriginMultiFileFacade                   // parts merged into a multi-file facade
)

func (k OriginKind) String() string {
	switch k {
	case OriginFacade:
		return "facade"
	case OriginMultiFileFacade:
		return "multifile-facade"
	default:
		return "source"
	}
}

// Origin is the provenance marker carried by synthesized stubs.
// The zero value means the declaration came straight from source.
type Origin struct {
	Kind            OriginKind
	ClassName       string
	FacadeClassName string // only for OriginMultiFileFacade
}

// FacadeOrigin marks a declaration coming from a facade class.
func FacadeOrigin(className string) Origin {
	return Origin{Kind: OriginFacade, ClassName: className}
}

// MultiFileFacadeOrigin marks a declaration coming from a multi-file facade part.
func MultiFileFacadeOrigin(className, facadeClassName string) Origin {
	return Origin{Kind: OriginMultiFileFacade, ClassName: className, FacadeClassName: facadeClassName}
}

// IsSet reports whether the origin is present.
func (o Origin) IsSet() bool { return o.Kind != OriginNone }

func (o Origin) String() string {
	switch o.Kind {
	case OriginFacade:
		return "facade(" + o.ClassName + ")"
	case OriginMultiFileFacade:
		return "multifile-facade(" + o.ClassName + " -> " + o.FacadeClassName + ")"
	default:
		return "source"
	}
}
