package vars

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Modifier is one RFC 5229/RFC 5435 string modifier applicable to a
// `set` command. Precedence follows RFC 5229 §4: lower numbers apply
// first, so ":upper" sees the output of ":length" but not vice versa.
type Modifier struct {
	Name       string
	Precedence int
	Apply      func(string) string
}

var quoteWildcardRe = regexp.MustCompile(`[*?\\]`)

// Modifiers is the built-in modifier table, keyed by tag name without
// its leading ':'.
var Modifiers = map[string]Modifier{
	"length": {
		Name:       "length",
		Precedence: 10,
		Apply:      func(s string) string { return strconv.Itoa(len(s)) },
	},
	"encodeurl": {
		Name:       "encodeurl",
		Precedence: 15,
		Apply:      url.QueryEscape,
	},
	"quotewildcard": {
		Name:       "quotewildcard",
		Precedence: 20,
		Apply: func(s string) string {
			return quoteWildcardRe.ReplaceAllStringFunc(s, func(m string) string { return `\` + m })
		},
	},
	"upperfirst": {
		Name:       "upperfirst",
		Precedence: 30,
		Apply: func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
	},
	"lowerfirst": {
		Name:       "lowerfirst",
		Precedence: 30,
		Apply: func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToLower(s[:1]) + s[1:]
		},
	},
	"upper": {
		Name:       "upper",
		Precedence: 40,
		Apply:      strings.ToUpper,
	},
	"lower": {
		Name:       "lower",
		Precedence: 40,
		Apply:      strings.ToLower,
	},
}

// ApplyModifiers runs the named modifiers over value in ascending
// precedence order, regardless of the order they appeared in source —
// RFC 5229 mandates precedence, not script order.
func ApplyModifiers(value string, names []string) string {
	var chosen []Modifier
	for _, n := range names {
		if m, ok := Modifiers[strings.ToLower(n)]; ok {
			chosen = append(chosen, m)
		}
	}
	for i := 0; i < len(chosen); i++ {
		for j := i + 1; j < len(chosen); j++ {
			if chosen[j].Precedence < chosen[i].Precedence {
				chosen[i], chosen[j] = chosen[j], chosen[i]
			}
		}
	}
	for _, m := range chosen {
		value = m.Apply(value)
	}
	return value
}
