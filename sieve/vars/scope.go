// Package vars implements the RFC 5229 variables extension: scoped
// string variables, the match-value registers a successful :matches
// (or :regex) test populates, and the set of string modifiers that
// reshape a value before it's stored (spec component H).
package vars

import (
	"strings"

	"github.com/sievegate/sievegate/consts"
)

// Scope holds one script's variable bindings plus the most recent
// match-value capture registers. Sieve variables are case-insensitive
// by name (RFC 5229 §3) and keys are stored lowercased.
type Scope struct {
	values      map[string]string
	matchValues []string
	maxVars     int
	maxVarSize  int
}

// NewScope creates an empty scope. maxVars/maxVarSize of 0 fall back
// to consts defaults, matching the resource-limit gate (component M).
func NewScope(maxVars, maxVarSize int) *Scope {
	if maxVars <= 0 {
		maxVars = consts.DefaultMaxScopeSize
	}
	if maxVarSize <= 0 {
		maxVarSize = consts.DefaultMaxVariableSize
	}
	return &Scope{values: make(map[string]string), maxVars: maxVars, maxVarSize: maxVarSize}
}

func normalize(name string) string { return strings.ToLower(name) }

// Set stores value under name, truncating to maxVarSize (RFC 5229
// says implementations MAY silently truncate rather than fail the
// script). It reports false if the scope is full and name is new.
func (s *Scope) Set(name, value string) bool {
	key := normalize(name)
	if _, exists := s.values[key]; !exists && len(s.values) >= s.maxVars {
		return false
	}
	if len(value) > s.maxVarSize {
		value = value[:s.maxVarSize]
	}
	s.values[key] = value
	return true
}

// Get returns a variable's value, or "" if unset — per RFC 5229,
// unknown variables evaluate to the empty string rather than erroring.
func (s *Scope) Get(name string) string {
	return s.values[normalize(name)]
}

// SetMatchValues replaces the ${1}.."${N}" registers after a
// successful wildcard/regex match.
func (s *Scope) SetMatchValues(captures []string) {
	s.matchValues = captures
}

// MatchValue returns capture group n (1-based), or "" if out of range.
func (s *Scope) MatchValue(n int) string {
	if n < 1 || n > len(s.matchValues) {
		return ""
	}
	return s.matchValues[n-1]
}
