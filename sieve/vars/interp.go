package vars

import (
	"strconv"
	"strings"
)

// Resolver answers a variable-reference lookup during interpolation.
// The interpreter implements this with a Scope (plain names and
// "${1}".."${9}" match values); there are no namespace providers, so a
// name like "env.home" is looked up as a plain variable.
type Resolver interface {
	Resolve(name string) string
}

// ScopeResolver adapts a Scope to Resolver, handling the numeric
// match-value names ("1".."9") transparently.
type ScopeResolver struct{ Scope *Scope }

func (r ScopeResolver) Resolve(name string) string {
	if n, err := strconv.Atoi(name); err == nil {
		return r.Scope.MatchValue(n)
	}
	return r.Scope.Get(name)
}

// Interpolate expands every "${name}" (and the bare digit shorthand
// the parser has already normalized into the same form) in s using
// resolver. An unresolvable reference yields "" rather than an error,
// per RFC 5229 §3.
func Interpolate(s string, resolver Resolver) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var out strings.Builder
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "${")
		if start < 0 {
			out.WriteString(s[i:])
			break
		}
		out.WriteString(s[i : i+start])
		i += start
		end := strings.IndexByte(s[i:], '}')
		if end < 0 {
			out.WriteString(s[i:])
			break
		}
		name := s[i+2 : i+end]
		out.WriteString(resolver.Resolve(strings.TrimSpace(name)))
		i += end + 1
	}
	return out.String()
}
