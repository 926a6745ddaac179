package testkit

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"stubtree/internal/source"
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

// CheckDeclSpans runs span invariants on a parsed file:
// 1) every declaration below the root has a non-empty span inside the content
// 2) a child span lies within its parent's span when the parent has one
// 3) siblings appear in source order and do not overlap
func CheckDeclSpans(root syntax.Decl, sf *source.File) error {
	if root == nil || sf == nil {
		return fmt.Errorf("nil declaration or file")
	}
	lenContent, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	return checkChildren(root, sf.ID, lenContent)
}

func checkChildren(parent syntax.Decl, file source.FileID, limit uint32) error {
	outer := parent.Span()
	var prev source.Span
	for i, d := range parent.Children() {
		sp := d.Span()
		name, _ := d.Name()
		if sp.End <= sp.Start {
			return fmt.Errorf("%s %q: empty span %v", d.Kind(), name, sp)
		}
		if sp.File != file {
			return fmt.Errorf("%s %q: span file mismatch: got=%d want=%d", d.Kind(), name, sp.File, file)
		}
		if sp.End > limit {
			return fmt.Errorf("%s %q: span end beyond content: %d > %d", d.Kind(), name, sp.End, limit)
		}
		if !outer.Empty() && !outer.Contains(sp) {
			return fmt.Errorf("%s %q: span %v is outside parent span %v", d.Kind(), name, sp, outer)
		}
		if i > 0 && sp.Start < prev.End {
			return fmt.Errorf("%s %q: span %v overlaps previous sibling %v", d.Kind(), name, sp, prev)
		}
		prev = sp
		if err := checkChildren(d, file, limit); err != nil {
			return err
		}
	}
	return nil
}

// CheckTreeInvariants verifies the structural guarantees of a stub tree:
// 1) the tree is sealed and, unless empty, rooted at a file stub
// 2) parent and child links agree, and children follow their parent in id order
// 3) top-level stubs hang directly off the root
// 4) a present fqName ends with the stub's name
func CheckTreeInvariants(t *stub.Tree) error {
	if t == nil {
		return fmt.Errorf("nil tree")
	}
	if !t.Sealed() {
		return fmt.Errorf("%s: tree is not sealed", t.Path())
	}
	if t.Len() == 0 {
		return nil
	}
	root := t.Root()
	if root.Kind() != stub.KindFile {
		return fmt.Errorf("%s: root is %s, want %s", t.Path(), root.Kind(), stub.KindFile)
	}
	if root.Parent() != stub.NoNodeID {
		return fmt.Errorf("%s: root has parent %d", t.Path(), root.Parent())
	}

	var err error
	seen := 0
	t.Walk(func(n *stub.Node, _ int) bool {
		if err != nil {
			return false
		}
		seen++
		for _, id := range n.Children() {
			child := t.Node(id)
			if child == nil {
				err = fmt.Errorf("%s: node %d lists missing child %d", t.Path(), n.ID(), id)
				return false
			}
			if child.Parent() != n.ID() {
				err = fmt.Errorf("%s: node %d has parent %d, listed under %d", t.Path(), id, child.Parent(), n.ID())
				return false
			}
			if id <= n.ID() {
				err = fmt.Errorf("%s: child %d precedes parent %d", t.Path(), id, n.ID())
				return false
			}
		}
		if n.ID() != root.ID() && n.IsTopLevel() && n.Parent() != root.ID() {
			err = fmt.Errorf("%s: node %d is marked top-level but nested under %d", t.Path(), n.ID(), n.Parent())
			return false
		}
		name, hasName := n.Name()
		if fq, ok := n.FqName(); ok && hasName && n.Kind() != stub.KindFile {
			if fq != name && !strings.HasSuffix(fq, "."+name) {
				err = fmt.Errorf("%s: node %d fqName %q does not end with %q", t.Path(), n.ID(), fq, name)
				return false
			}
		}
		return true
	})
	if err != nil {
		return err
	}
	if seen != t.Len() {
		return fmt.Errorf("%s: %d nodes reachable from root, tree holds %d", t.Path(), seen, t.Len())
	}
	return nil
}
