package stub

// NodeID identifies a stub node inside its tree arena.
type NodeID uint32

const (
	// NoNodeID marks the absence of a node reference (the parent of a file root).
	NoNodeID NodeID = 0
)

// IsValid reports whether the ID refers to an allocated node.
func (id NodeID) IsValid() bool { return id != NoNodeID }
