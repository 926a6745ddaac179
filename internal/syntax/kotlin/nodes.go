package kotlin

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"stubtree/internal/syntax"
)

func forNamed(n *sitter.Node, fn func(c *sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != nil {
			fn(c)
		}
	}
}

// firstNamed returns the first direct named child whose type is one of types.
func firstNamed(n *sitter.Node, types ...string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && slices.Contains(types, c.Type()) {
			return c
		}
	}
	return nil
}

// hasToken reports whether n has a direct anonymous child with the given text.
func hasToken(n *sitter.Node, token string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

func isTypeNode(t string) bool {
	switch t {
	case "user_type", "nullable_type", "parenthesized_type", "function_type",
		"non_nullable_type", "dynamic", "type_modifiers":
		return true
	}
	return false
}

// literal classifies an initializer expression the evaluator may fold.
func (b *builder) literal(n *sitter.Node) syntax.Literal {
	text := strings.TrimSpace(b.text(n))
	switch n.Type() {
	case "integer_literal", "long_literal", "hex_literal", "bin_literal", "unsigned_literal":
		return syntax.Literal{Kind: syntax.LitInt, Text: text}
	case "real_literal":
		return syntax.Literal{Kind: syntax.LitFloat, Text: text}
	case "boolean_literal":
		return syntax.Literal{Kind: syntax.LitBool, Text: text}
	case "null_literal":
		return syntax.Literal{Kind: syntax.LitNull, Text: text}
	case "string_literal":
		if strings.HasPrefix(text, `"""`) || len(text) < 2 {
			return syntax.Literal{}
		}
		return syntax.Literal{Kind: syntax.LitString, Text: text[1 : len(text)-1]}
	case "navigation_expression":
		if isDottedName(text) {
			return syntax.Literal{Kind: syntax.LitReference, Text: text}
		}
	case "prefix_expression":
		// -1, -2.5
		if strings.HasPrefix(text, "-") && n.NamedChildCount() == 1 {
			inner := b.literal(n.NamedChild(0))
			if inner.Kind == syntax.LitInt || inner.Kind == syntax.LitFloat {
				inner.Text = "-" + inner.Text
				return inner
			}
		}
	}
	if text == "null" {
		return syntax.Literal{Kind: syntax.LitNull, Text: text}
	}
	return syntax.Literal{}
}

func isDottedName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			ok := r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || (i > 0 && '0' <= r && r <= '9')
			if !ok {
				return false
			}
		}
	}
	return true
}
