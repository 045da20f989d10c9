// Package reconcile corrects package manifests against what their source
// actually uses: it removes unused dependencies, adds missing ones with
// a resolved version, migrates tooling dependencies into the development
// class, and folds concrete versions into the shared catalog.
package reconcile

import (
	"regexp"
	"strings"
)

// Matcher matches dependency names against one configured pattern.
// Matching is case-sensitive. With UseRegex the expression is compiled
// as a regular expression; an expression that fails to compile degrades
// to substring containment instead of erroring, so a stray "(" in a
// config file cannot take down a run. Without UseRegex the match is
// exact string equality.
type Matcher struct {
	expr     string
	re       *regexp.Regexp
	contains bool
}

// NewMatcher compiles one pattern.
func NewMatcher(expr string, useRegex bool) *Matcher {
	m := &Matcher{expr: expr}
	if !useRegex {
		return m
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		m.contains = true
		return m
	}
	m.re = re
	return m
}

// Matches reports whether name matches the pattern.
func (m *Matcher) Matches(name string) bool {
	switch {
	case m.re != nil:
		return m.re.MatchString(name)
	case m.contains:
		return strings.Contains(name, m.expr)
	default:
		return name == m.expr
	}
}

// String returns the original expression.
func (m *Matcher) String() string { return m.expr }

// Patterns is a list of matchers applied in order; a name matches the
// set if any matcher accepts it. The empty set matches nothing.
type Patterns []*Matcher

// NewPatterns compiles a pattern set with one shared regex flag.
func NewPatterns(exprs []string, useRegex bool) Patterns {
	ps := make(Patterns, 0, len(exprs))
	for _, e := range exprs {
		ps = append(ps, NewMatcher(e, useRegex))
	}
	return ps
}

// Matches reports whether any pattern in the set matches name.
func (ps Patterns) Matches(name string) bool {
	for _, m := range ps {
		if m.Matches(name) {
			return true
		}
	}
	return false
}
