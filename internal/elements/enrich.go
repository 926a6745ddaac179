package elements

import (
	"stubtree/internal/stub"
	"stubtree/internal/syntax"
)

// Enrich runs the constant evaluator over a freshly built tree and returns a
// new sealed tree carrying the values. Only kinds whose wire format has a
// constant slot are asked. The input tree is never modified; with nothing to
// attach it is returned as is.
func (r *Registry) Enrich(res *Result, ev syntax.ConstEvaluator) *stub.Tree {
	if ev == nil {
		return res.Tree
	}
	values := make(map[stub.NodeID]stub.ConstValue)
	for id, decl := range res.Decls {
		n := res.Tree.Node(id)
		if n == nil || !r.carriesConstant(n.Kind()) {
			continue
		}
		if v, ok := ev.Evaluate(decl); ok && v.IsSet() {
			values[id] = v
		}
	}
	if len(values) == 0 {
		return res.Tree
	}
	return res.Tree.WithConstants(values)
}

func (r *Registry) carriesConstant(kind stub.Kind) bool {
	et, ok := r.Lookup(kind)
	if !ok {
		return false
	}
	c, ok := et.(ConstantCarrier)
	return ok && c.CarriesConstant()
}

// ConstantCarrier is implemented by element types whose stubs can hold a
// compile-time constant.
type ConstantCarrier interface {
	CarriesConstant() bool
}

func (c codec) CarriesConstant() bool { return c.layout.has[slotConst] }
