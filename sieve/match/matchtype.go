package match

import (
	"regexp"
	"strconv"
)

// Type is one of the match-types a test's key arguments are checked
// against: :is, :contains, :matches (glob), :count/:value (relational,
// RFC 5231), :regex (RFC 5260's regex extension).
type Type string

const (
	Is       Type = "is"
	Contains Type = "contains"
	Matches  Type = "matches"
	Count    Type = "count"
	Value    Type = "value"
	Regex    Type = "regex"
)

// RelOp is the operator that accompanies :count/:value.
type RelOp string

const (
	RelGT RelOp = "gt"
	RelGE RelOp = "ge"
	RelLT RelOp = "lt"
	RelLE RelOp = "le"
	RelEQ RelOp = "eq"
	RelNE RelOp = "ne"
)

// Eval reports whether value matches key under comparator cmp and
// match-type mt. Count and Value are not handled here: the caller
// (interp's evalPairs) applies CompareCount to the number of tested
// values, or CompareValue to each value/key pair; Eval answers only
// the per-pair question for the other match-types.
func Eval(mt Type, cmp Comparator, value, key string) (bool, error) {
	switch mt {
	case Is:
		return cmp.Equal(value, key), nil
	case Contains:
		return cmp.Contains(value, key), nil
	case Matches:
		return globMatch(key, value), nil
	case Regex:
		re, err := regexp.Compile(key)
		if err != nil {
			return false, err
		}
		return re.MatchString(value), nil
	default:
		return false, nil
	}
}

// CompareValue evaluates a :value relational comparison of value
// against key using cmp's ordering and the given operator.
func CompareValue(cmp Comparator, value, key string, op RelOp) bool {
	c := cmp.Compare(value, key)
	switch op {
	case RelGT:
		return c > 0
	case RelGE:
		return c >= 0
	case RelLT:
		return c < 0
	case RelLE:
		return c <= 0
	case RelEQ:
		return c == 0
	case RelNE:
		return c != 0
	default:
		return false
	}
}

// CompareCount evaluates a :count relational comparison: n is the
// number of values the test examined, counted by the caller, key is
// the numeric string operand.
func CompareCount(n int, key string, op RelOp) bool {
	want, err := strconv.Atoi(key)
	if err != nil {
		return false
	}
	switch op {
	case RelGT:
		return n > want
	case RelGE:
		return n >= want
	case RelLT:
		return n < want
	case RelLE:
		return n <= want
	case RelEQ:
		return n == want
	case RelNE:
		return n != want
	default:
		return false
	}
}

// EvalCaptures is Eval plus the match-value captures RFC 5229 §3
// mandates for a successful :matches/:regex test: each "*"/"?" in a
// :matches pattern, or each regexp submatch, in left-to-right order.
// Other match-types never populate captures.
func EvalCaptures(mt Type, cmp Comparator, value, key string) (bool, []string, error) {
	switch mt {
	case Matches:
		ok, caps := globMatchCaptures([]rune(key), []rune(value))
		return ok, caps, nil
	case Regex:
		re, err := regexp.Compile(key)
		if err != nil {
			return false, nil, err
		}
		m := re.FindStringSubmatch(value)
		if m == nil {
			return false, nil, nil
		}
		return true, m[1:], nil
	default:
		ok, err := Eval(mt, cmp, value, key)
		return ok, nil, err
	}
}

// globMatchCaptures backtracks pattern against s the same as
// globMatch, additionally collecting the substring each wildcard
// consumed, in pattern order. "*" tries the longest expansion first
// (leftmost-longest), so "a*b" against "axxb" yields capture "xx" and
// "*.*" against "a.b.c" yields "a.b" and "c".
func globMatchCaptures(p, s []rune) (bool, []string) {
	return globCaptureRec(p, s, 0, 0)
}

func globCaptureRec(p, s []rune, pi, si int) (bool, []string) {
	if pi == len(p) {
		return si == len(s), nil
	}
	switch p[pi] {
	case '\\':
		if pi+1 < len(p) {
			if si < len(s) && p[pi+1] == s[si] {
				return globCaptureRec(p, s, pi+2, si+1)
			}
			return false, nil
		}
		if si < len(s) && s[si] == '\\' {
			return globCaptureRec(p, s, pi+1, si+1)
		}
		return false, nil
	case '?':
		if si >= len(s) {
			return false, nil
		}
		ok, rest := globCaptureRec(p, s, pi+1, si+1)
		if !ok {
			return false, nil
		}
		return true, append([]string{string(s[si])}, rest...)
	case '*':
		for l := len(s) - si; l >= 0; l-- {
			ok, rest := globCaptureRec(p, s, pi+1, si+l)
			if ok {
				return true, append([]string{string(s[si : si+l])}, rest...)
			}
		}
		return false, nil
	default:
		if si < len(s) && p[pi] == s[si] {
			return globCaptureRec(p, s, pi+1, si+1)
		}
		return false, nil
	}
}

// globMatch implements Sieve's ":matches" wildcard grammar: "*"
// matches any sequence (including empty), "?" matches exactly one
// character, "\\" escapes the next character literally.
func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(p, s []rune) bool {
	var pi, si int
	var starPi, starSi int = -1, -1
	for si < len(s) || pi < len(p) {
		if pi < len(p) {
			switch p[pi] {
			case '\\':
				if pi+1 < len(p) && si < len(s) && p[pi+1] == s[si] {
					pi += 2
					si++
					continue
				}
			case '?':
				if si < len(s) {
					pi++
					si++
					continue
				}
			case '*':
				starPi = pi
				starSi = si
				pi++
				continue
			default:
				if si < len(s) && p[pi] == s[si] {
					pi++
					si++
					continue
				}
			}
		}
		if starPi >= 0 {
			starSi++
			si = starSi
			pi = starPi + 1
			continue
		}
		return false
	}
	return true
}
