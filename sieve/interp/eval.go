package interp

import (
	"strings"

	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/ir"
	"github.com/sievegate/sievegate/sieve/match"
	"github.com/sievegate/sievegate/sieve/vars"
)

func resolveList(list []*ir.VarString, resolver vars.Resolver) []string {
	out := make([]string, len(list))
	for i, vs := range list {
		out[i] = resolveOne(vs, resolver)
	}
	return out
}

func resolveOne(vs *ir.VarString, resolver vars.Resolver) string {
	if vs.IsLiteral() {
		return vs.Literal()
	}
	var sb strings.Builder
	for _, p := range vs.Parts {
		if p.Literal {
			sb.WriteString(p.Text)
		} else {
			sb.WriteString(resolver.Resolve(p.Name))
		}
	}
	return sb.String()
}

// EvalTest evaluates a decoded test tree against rd, recursing through
// not/anyof/allof with RFC 5228's defined short-circuit order.
func EvalTest(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	switch tn.Tag {
	case bytecode.TestTrue:
		return true, nil
	case bytecode.TestFalse:
		return false, nil
	case bytecode.TestNot:
		ok, err := EvalTest(tn.Children[0], rd)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case bytecode.TestAnyof:
		for _, c := range tn.Children {
			ok, err := EvalTest(c, rd)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case bytecode.TestAllof:
		for _, c := range tn.Children {
			ok, err := EvalTest(c, rd)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case bytecode.TestHeader:
		return evalHeader(tn, rd)
	case bytecode.TestAddress:
		return evalAddress(tn, rd)
	case bytecode.TestEnvelope:
		return evalEnvelope(tn, rd)
	case bytecode.TestExists:
		return evalExists(tn, rd)
	case bytecode.TestSize:
		return evalSize(tn, rd)
	case bytecode.TestString:
		return evalString(tn, rd)
	default:
		return false, nil
	}
}

func evalPairs(spec bytecode.MatchSpec, values, keys []string, rd *RuntimeData) (bool, error) {
	cmp, ok := match.Lookup(spec.Comparator)
	if !ok {
		cmp, _ = match.Lookup("")
	}
	mt := match.Type(spec.MatchType)
	switch mt {
	case match.Count:
		n := len(values)
		for _, k := range keys {
			if match.CompareCount(n, k, match.RelOp(spec.RelOp)) {
				return true, nil
			}
		}
		return false, nil
	case match.Value:
		for _, v := range values {
			for _, k := range keys {
				if match.CompareValue(cmp, v, k, match.RelOp(spec.RelOp)) {
					return true, nil
				}
			}
		}
		return false, nil
	default:
		// Leftmost value, leftmost key: the first pair that matches
		// wins and, for :matches/:regex, commits its captures to the
		// match-value registers before returning.
		for _, v := range values {
			for _, k := range keys {
				ok, captures, err := match.EvalCaptures(mt, cmp, v, k)
				if err != nil {
					return false, err
				}
				if ok {
					if rd != nil && (mt == match.Matches || mt == match.Regex) {
						rd.Vars.SetMatchValues(captures)
					}
					return true, nil
				}
			}
		}
		return false, nil
	}
}

func evalHeader(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	names := resolveList(tn.Strings1, rd.resolver())
	keys := resolveList(tn.Strings2, rd.resolver())
	var values []string
	for _, name := range names {
		values = append(values, rd.Msg.HeaderValues(name)...)
	}
	return evalPairs(tn.Spec, values, keys, rd)
}

func evalExists(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	names := resolveList(tn.Strings1, rd.resolver())
	for _, name := range names {
		if len(rd.Msg.HeaderValues(name)) == 0 {
			return false, nil
		}
	}
	return true, nil
}

func evalSize(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	size := rd.Msg.Size()
	switch tn.Direction {
	case "over":
		return size > tn.Number, nil
	case "under":
		return size < tn.Number, nil
	default:
		return false, nil
	}
}

func evalString(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	values := resolveList(tn.Strings1, rd.resolver())
	keys := resolveList(tn.Strings2, rd.resolver())
	return evalPairs(tn.Spec, values, keys, rd)
}

func evalAddress(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	names := resolveList(tn.Strings1, rd.resolver())
	keys := resolveList(tn.Strings2, rd.resolver())
	part := match.AddressPart(tn.Spec.AddrPart)
	var values []string
	for _, name := range names {
		for _, raw := range rd.Msg.HeaderValues(name) {
			for _, addr := range ParseAddressList(raw) {
				values = append(values, match.SplitAddress(part, addr))
			}
		}
	}
	return evalPairs(tn.Spec, values, keys, rd)
}

func evalEnvelope(tn *bytecode.TestNode, rd *RuntimeData) (bool, error) {
	names := resolveList(tn.Strings1, rd.resolver())
	keys := resolveList(tn.Strings2, rd.resolver())
	part := match.AddressPart(tn.Spec.AddrPart)
	var values []string
	for _, name := range names {
		for _, raw := range rd.Msg.EnvelopeValues(name) {
			values = append(values, match.SplitAddress(part, raw))
		}
	}
	return evalPairs(tn.Spec, values, keys, rd)
}
