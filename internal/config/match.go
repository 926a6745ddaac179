package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

type pattern struct {
	text string
	glob glob.Glob
	// "**/x" also matches x at the root
	root glob.Glob
}

// Matcher decides which slash-separated relative paths get indexed.
type Matcher struct {
	include []pattern
	exclude []pattern
}

// NewMatcher compiles include and exclude globs with '/' as separator.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	var err error
	if m.include, err = compile("include", include); err != nil {
		return nil, err
	}
	if m.exclude, err = compile("exclude", exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compile(section string, patterns []string) ([]pattern, error) {
	out := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("[index].%s: bad pattern %q: %w", section, p, err)
		}
		cp := pattern{text: p, glob: g}
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			if cp.root, err = glob.Compile(rest, '/'); err != nil {
				return nil, fmt.Errorf("[index].%s: bad pattern %q: %w", section, p, err)
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// Match reports whether rel is included and not excluded.
func (m *Matcher) Match(rel string) bool {
	return matchAny(m.include, rel) && !m.Excluded(rel)
}

// Excluded reports whether rel or a directory holding it is excluded.
// Directories are tested with a "/**" suffix so walks can prune them.
func (m *Matcher) Excluded(rel string) bool {
	return matchAny(m.exclude, rel) || matchAny(m.exclude, rel+"/**")
}

func matchAny(patterns []pattern, path string) bool {
	for _, p := range patterns {
		if p.glob.Match(path) {
			return true
		}
		if p.root != nil && p.root.Match(path) {
			return true
		}
	}
	return false
}
