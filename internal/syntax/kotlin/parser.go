// Package kotlin turns Kotlin source into a syntax.Node declaration tree using
// the tree-sitter Kotlin grammar.
package kotlin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/kotlin"
	"golang.org/x/text/unicode/norm"

	"stubtree/internal/source"
	"stubtree/internal/syntax"
)

// ErrNoTree is returned when tree-sitter produced no tree at all.
var ErrNoTree = errors.New("kotlin: parser returned no tree")

// Result is a parsed file. Syntax errors do not abort parsing; declarations
// that could still be recognized are kept.
type Result struct {
	File      *syntax.Node
	HasErrors bool
}

// Parse parses one file. A tree-sitter parser is not safe for concurrent use,
// so each call allocates its own.
func Parse(ctx context.Context, file *source.File) (Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(kotlin.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, file.Content)
	if err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", file.Path, err)
	}
	if tree == nil {
		return Result{}, fmt.Errorf("parse %s: %w", file.Path, ErrNoTree)
	}
	root := tree.RootNode()

	b := &builder{src: file.Content, file: file.ID}
	pkg := b.packageName(root)
	out := syntax.NewFile(filepath.Base(file.Path), pkg, strings.HasSuffix(file.Path, ".kts"))
	b.walk(root, out, false)
	return Result{File: out, HasErrors: root.HasError()}, nil
}

type builder struct {
	src  []byte
	file source.FileID
}

func (b *builder) span(n *sitter.Node) source.Span {
	return source.Span{File: b.file, Start: n.StartByte(), End: n.EndByte()}
}

func (b *builder) text(n *sitter.Node) string {
	return n.Content(b.src)
}

// identifier strips backticks and normalizes to NFC so equal names compare equal.
func (b *builder) identifier(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return norm.NFC.String(strings.Trim(b.text(n), "`"))
}

func (b *builder) packageName(root *sitter.Node) string {
	header := firstNamed(root, "package_header")
	if header == nil {
		return ""
	}
	id := firstNamed(header, "identifier")
	if id == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	forNamed(id, func(c *sitter.Node) {
		if c.Type() == "simple_identifier" {
			parts = append(parts, b.identifier(c))
		}
	})
	return strings.Join(parts, ".")
}

// walk collects declarations below n. local is true once the walk has entered
// executable code relative to parent.
func (b *builder) walk(n *sitter.Node, parent *syntax.Node, local bool) {
	forNamed(n, func(c *sitter.Node) {
		switch c.Type() {
		case "class_declaration":
			b.class(c, parent, local)
		case "object_declaration":
			b.object(c, parent, local, "")
		case "companion_object":
			b.object(c, parent, local, "Companion")
		case "function_declaration":
			b.function(c, parent, local)
		case "property_declaration":
			b.property(c, parent, local)
		case "type_alias":
			b.typeAlias(c, parent, local)
		case "package_header", "import_list", "import_header", "modifiers",
			"line_comment", "multiline_comment", "shebang_line", "file_annotation":
		case "class_body", "enum_class_body":
			b.walk(c, parent, local)
		default:
			b.walk(c, parent, true)
		}
	})
}

func (b *builder) class(n *sitter.Node, parent *syntax.Node, local bool) {
	attrs := syntax.Attrs{
		Name:       b.identifier(firstNamed(n, "type_identifier", "simple_identifier")),
		Span:       b.span(n),
		Modifiers:  b.modifiers(n),
		Local:      local,
		TypeParams: firstNamed(n, "type_parameters") != nil,
	}
	if hasToken(n, "interface") {
		attrs.Modifiers |= syntax.ModInterface
	}
	body := firstNamed(n, "class_body", "enum_class_body")
	attrs.Body = body != nil
	decl := parent.Add(syntax.DeclClass, attrs)
	if body != nil {
		b.walk(body, decl, false)
	}
}

func (b *builder) object(n *sitter.Node, parent *syntax.Node, local bool, defaultName string) {
	name := b.identifier(firstNamed(n, "type_identifier", "simple_identifier"))
	if name == "" {
		name = defaultName
	}
	attrs := syntax.Attrs{
		Name:      name,
		Span:      b.span(n),
		Modifiers: b.modifiers(n),
		Local:     local,
	}
	if n.Type() == "companion_object" {
		attrs.Modifiers |= syntax.ModCompanion
	}
	body := firstNamed(n, "class_body")
	attrs.Body = body != nil
	decl := parent.Add(syntax.DeclObject, attrs)
	if body != nil {
		b.walk(body, decl, false)
	}
}

func (b *builder) function(n *sitter.Node, parent *syntax.Node, local bool) {
	attrs := syntax.Attrs{
		Span:      b.span(n),
		Modifiers: b.modifiers(n),
		Local:     local,
	}
	var body *sitter.Node
	seenName, seenParams := false, false
	forNamed(n, func(c *sitter.Node) {
		switch t := c.Type(); {
		case t == "simple_identifier" && !seenName:
			attrs.Name = b.identifier(c)
			seenName = true
		case t == "type_parameters":
			attrs.TypeParams = true
		case t == "function_value_parameters":
			seenParams = true
		case t == "function_body":
			body = c
		case isTypeNode(t):
			if seenParams {
				attrs.DeclaredType = true
			} else if !seenName {
				attrs.Receiver = true
			}
		}
	})
	attrs.Body = body != nil
	decl := parent.Add(syntax.DeclFunction, attrs)
	if body != nil {
		b.walk(body, decl, true)
	}
}

func (b *builder) property(n *sitter.Node, parent *syntax.Node, local bool) {
	attrs := syntax.Attrs{
		Span:      b.span(n),
		Modifiers: b.modifiers(n),
		Local:     local,
	}
	var code []*sitter.Node
	afterAssign := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		t := c.Type()
		switch {
		case !c.IsNamed():
			switch {
			case t == "=":
				afterAssign = true
				attrs.Initializer = true
			case t == "null" && afterAssign:
				attrs.Literal = syntax.Literal{Kind: syntax.LitNull, Text: t}
				afterAssign = false
			}
		case t == "binding_pattern_kind":
			attrs.Var = strings.TrimSpace(b.text(c)) == "var"
		case t == "type_parameters":
			attrs.TypeParams = true
		case t == "variable_declaration":
			attrs.Name = b.identifier(firstNamed(c, "simple_identifier"))
			forNamed(c, func(v *sitter.Node) {
				if isTypeNode(v.Type()) {
					attrs.DeclaredType = true
				}
			})
		case t == "multi_variable_declaration":
			// destructuring is only legal in local scope
			attrs.Local = true
		case isTypeNode(t) && !afterAssign:
			attrs.Receiver = true
		case t == "getter" || t == "setter" || t == "property_delegate":
			code = append(code, c)
		case t == "modifiers" || t == "type_constraints":
		default:
			if afterAssign {
				attrs.Literal = b.literal(c)
				code = append(code, c)
				afterAssign = false
			}
		}
	}
	decl := parent.Add(syntax.DeclProperty, attrs)
	for _, c := range code {
		b.walk(c, decl, true)
	}
}

func (b *builder) typeAlias(n *sitter.Node, parent *syntax.Node, local bool) {
	parent.Add(syntax.DeclTypeAlias, syntax.Attrs{
		Name:       b.identifier(firstNamed(n, "type_identifier", "simple_identifier")),
		Span:       b.span(n),
		Modifiers:  b.modifiers(n),
		Local:      local,
		TypeParams: firstNamed(n, "type_parameters") != nil,
	})
}

func (b *builder) modifiers(n *sitter.Node) syntax.Modifiers {
	mods := firstNamed(n, "modifiers")
	if mods == nil {
		return 0
	}
	var out syntax.Modifiers
	forNamed(mods, func(c *sitter.Node) {
		if c.Type() == "annotation" {
			return
		}
		for _, word := range strings.Fields(b.text(c)) {
			out |= syntax.ParseModifier(word)
		}
	})
	return out
}
