package main

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// patternSet is a compiled list of shell-style globs. No separators are
// passed to the compiler, so '*' also matches '/' and a pattern like "*.py"
// selects Python files at any depth.
type patternSet struct {
	raw   []string
	globs []glob.Glob
}

// compilePatterns compiles every pattern, failing on the first invalid one.
func compilePatterns(patterns []string) (*patternSet, error) {
	set := &patternSet{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(fnmatchToGlob(p))
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern '%s': %w", p, err)
		}
		set.raw = append(set.raw, p)
		set.globs = append(set.globs, g)
	}
	return set, nil
}

// match returns the first pattern matching relPath.
func (s *patternSet) match(relPath string) (string, bool) {
	if s == nil {
		return "", false
	}
	for i, g := range s.globs {
		if g.Match(relPath) {
			return s.raw[i], true
		}
	}
	return "", false
}

// filter decides candidacy from include and exclude patterns. Excludes win.
type filter struct {
	include *patternSet
	exclude *patternSet
}

func newFilter(include, exclude []string) (*filter, error) {
	inc, err := compilePatterns(include)
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	exc, err := compilePatterns(exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	return &filter{include: inc, exclude: exc}, nil
}

// candidate reports whether relPath matches an include pattern.
func (f *filter) candidate(relPath string) bool {
	_, ok := f.include.match(relPath)
	return ok
}

// excludedBy returns the exclude pattern that rejects relPath, if any.
func (f *filter) excludedBy(relPath string) (string, bool) {
	return f.exclude.match(relPath)
}

// fnmatchToGlob rewrites a shell pattern so gobwas reads it with fnmatch
// rules: braces and backslashes are literal, and a '[' without a closing ']'
// is a plain character. Class bodies are passed through with '\' and ']'
// escaped.
func fnmatchToGlob(pattern string) string {
	rs := []rune(pattern)
	var b strings.Builder
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch c {
		case '{', '}', '\\', ']':
			b.WriteRune('\\')
			b.WriteRune(c)
		case '[':
			j := i + 1
			if j < len(rs) && rs[j] == '!' {
				j++
			}
			if j < len(rs) && rs[j] == ']' {
				j++
			}
			for j < len(rs) && rs[j] != ']' {
				j++
			}
			if j >= len(rs) {
				b.WriteString(`\[`)
				continue
			}
			b.WriteRune('[')
			for _, r := range rs[i+1 : j] {
				if r == '\\' || r == ']' {
					b.WriteRune('\\')
				}
				b.WriteRune(r)
			}
			b.WriteRune(']')
			i = j
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}
