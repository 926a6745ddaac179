package syntax

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"stubtree/internal/stub"
)

// ConstEvaluator supplies compile-time constant values during enrichment.
type ConstEvaluator interface {
	Evaluate(d Decl) (stub.ConstValue, bool)
}

// EvaluatorFunc adapts a function to ConstEvaluator.
type EvaluatorFunc func(d Decl) (stub.ConstValue, bool)

func (f EvaluatorFunc) Evaluate(d Decl) (stub.ConstValue, bool) { return f(d) }

// LiteralEvaluator folds `const val` properties whose initializer is a single
// literal token or a dotted enum entry reference. Anything else is absent.
type LiteralEvaluator struct{}

func (LiteralEvaluator) Evaluate(d Decl) (stub.ConstValue, bool) {
	if d == nil || d.Kind() != DeclProperty || !d.Modifiers().Has(ModConst) || d.IsVar() {
		return stub.ConstValue{}, false
	}
	lit, ok := d.Initializer()
	if !ok {
		return stub.ConstValue{}, false
	}
	return EvalLiteral(lit, d.Package())
}

// EvalLiteral folds one literal. pkg qualifies enum classes referenced
// without a package prefix.
func EvalLiteral(lit Literal, pkg string) (stub.ConstValue, bool) {
	switch lit.Kind {
	case LitNull:
		return stub.NullConst(), true
	case LitBool:
		v, err := strconv.ParseBool(lit.Text)
		if err != nil {
			return stub.ConstValue{}, false
		}
		return stub.BoolConst(v), true
	case LitInt:
		return parseInt(lit.Text)
	case LitFloat:
		text := strings.ReplaceAll(lit.Text, "_", "")
		text = strings.TrimRight(text, "fF")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return stub.ConstValue{}, false
		}
		return stub.FloatConst(v), true
	case LitString:
		v, ok := unescape(lit.Text)
		if !ok {
			return stub.ConstValue{}, false
		}
		return stub.StringConst(v), true
	case LitReference:
		class, entry, ok := enumEntry(lit.Text, pkg)
		if !ok {
			return stub.ConstValue{}, false
		}
		return stub.EnumConst(class, entry), true
	default:
		return stub.ConstValue{}, false
	}
}

func parseInt(text string) (stub.ConstValue, bool) {
	text = strings.ReplaceAll(text, "_", "")
	text = strings.TrimRight(text, "lLuU")
	lower := strings.ToLower(text)
	base := 10
	switch {
	case strings.HasPrefix(lower, "0x"):
		base, text = 16, text[2:]
	case strings.HasPrefix(lower, "0b"):
		base, text = 2, text[2:]
	}
	if v, err := strconv.ParseInt(text, base, 64); err == nil {
		return stub.IntConst(v), true
	}
	// unsigned literals above MaxInt64 keep their bit pattern
	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return stub.ConstValue{}, false
	}
	return stub.IntConst(int64(v)), true // #nosec G115 -- two's complement reinterpretation
}

// enumEntry splits pkg.Outer.Enum.ENTRY into a class id (pkg/Outer.Enum) and
// the entry name. Lowercase leading segments are the package; the first
// capitalized segment starts the class chain.
func enumEntry(ref, pkg string) (class, entry string, ok bool) {
	segments := strings.Split(ref, ".")
	if len(segments) < 2 {
		return "", "", false
	}
	for _, s := range segments {
		if s == "" {
			return "", "", false
		}
	}
	entry = segments[len(segments)-1]
	qualifier := segments[:len(segments)-1]
	split := -1
	for i, s := range qualifier {
		r, _ := utf8.DecodeRuneInString(s)
		if unicode.IsUpper(r) {
			split = i
			break
		}
	}
	if split < 0 {
		return "", "", false
	}
	classPkg := strings.Join(qualifier[:split], "/")
	if split == 0 {
		classPkg = strings.ReplaceAll(pkg, ".", "/")
	}
	class = strings.Join(qualifier[split:], ".")
	if classPkg != "" {
		class = classPkg + "/" + class
	}
	return class, entry, true
}

// unescape resolves Kotlin escapes in a string literal body. Templates are
// not constant and make the literal unfoldable.
func unescape(body string) (string, bool) {
	if !strings.ContainsAny(body, `\$`) {
		return body, true
	}
	var b strings.Builder
	b.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '$':
			if i+1 < len(body) && (body[i+1] == '{' || isIdentStart(body[i+1])) {
				return "", false
			}
			b.WriteByte(c)
		case '\\':
			if i+1 >= len(body) {
				return "", false
			}
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case '\\', '"', '\'', '$':
				b.WriteByte(body[i])
			case 'u':
				r, ok := hex4(body, i+1)
				if !ok {
					return "", false
				}
				i += 4
				// a high surrogate followed by \uXXXX low surrogate is one code point
				if utf16.IsSurrogate(r) && i+2 < len(body) && body[i+1] == '\\' && body[i+2] == 'u' {
					if lo, ok := hex4(body, i+3); ok {
						if pair := utf16.DecodeRune(r, lo); pair != utf8.RuneError {
							r = pair
							i += 6
						}
					}
				}
				b.WriteRune(r)
			default:
				return "", false
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), true
}

// hex4 reads the four hex digits of a \u escape starting at body[at].
func hex4(body string, at int) (rune, bool) {
	if at+4 > len(body) {
		return 0, false
	}
	code, err := strconv.ParseUint(body[at:at+4], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(code), true
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
