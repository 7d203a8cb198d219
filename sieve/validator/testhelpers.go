package validator

import (
	"strings"

	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/ir"
	"github.com/sievegate/sievegate/sieve/lexer"
	"github.com/sievegate/sievegate/sieve/match"
)

// matchSpec captures the comparator/match-type/relational-op/address-
// part tags common to header, address, envelope and string tests, in
// whatever order they appeared.
type matchSpec struct {
	comparator string
	matchType  match.Type
	relOp      match.RelOp
	addrPart   match.AddressPart
}

func defaultMatchSpec() matchSpec {
	return matchSpec{matchType: match.Is, addrPart: match.AddrAll}
}

// consumeMatchTags pulls comparator/match-type/address-part tags off
// c in any order until none remain, returning the accumulated spec.
// pos is used to anchor diagnostics when a tag's required parameter
// is missing.
func (v *validation) consumeMatchTags(c *cursor, pos lexer.Position, wantAddrPart bool) matchSpec {
	spec := defaultMatchSpec()
	for {
		name := peekTagName(c)
		switch name {
		case "comparator":
			c.pos++
			s, p, ok := c.takeString()
			if !ok {
				v.errorf(pos, ":comparator requires a string argument")
				return spec
			}
			if !s.IsLiteral() {
				v.errorf(p, ":comparator name must be a literal string")
			}
			spec.comparator = s.Literal()
		case "is":
			c.pos++
			spec.matchType = match.Is
		case "contains":
			c.pos++
			spec.matchType = match.Contains
		case "matches":
			c.pos++
			spec.matchType = match.Matches
		case "regex":
			c.pos++
			spec.matchType = match.Regex
		case "count":
			c.pos++
			spec.matchType = match.Count
			s, _, ok := c.takeString()
			if !ok {
				v.errorf(pos, ":count requires a relational-match string argument")
				return spec
			}
			spec.relOp = match.RelOp(s.Literal())
		case "value":
			c.pos++
			spec.matchType = match.Value
			s, _, ok := c.takeString()
			if !ok {
				v.errorf(pos, ":value requires a relational-match string argument")
				return spec
			}
			spec.relOp = match.RelOp(s.Literal())
		case "localpart":
			if !wantAddrPart {
				return spec
			}
			c.pos++
			spec.addrPart = match.AddrLocalPart
		case "domain":
			if !wantAddrPart {
				return spec
			}
			c.pos++
			spec.addrPart = match.AddrDomain
		case "all":
			if !wantAddrPart {
				return spec
			}
			c.pos++
			spec.addrPart = match.AddrAll
		default:
			return spec
		}
	}
}

func peekTagName(c *cursor) string {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgTag {
		return ""
	}
	return strings.ToLower(a.Tag)
}

func tagArg(n *ir.Node, tag string) *ir.Arg {
	if n.Tags == nil {
		return nil
	}
	return n.Tags[tag]
}

func tagStr(n *ir.Node, tag string) string {
	a := tagArg(n, tag)
	if a == nil || a.Str == nil {
		return ""
	}
	return a.Str.Literal()
}

func litArg(s string) *ir.Arg {
	return &ir.Arg{Kind: ir.ArgVarString, Str: &ir.VarString{Parts: []ir.StringPart{{Literal: true, Text: s}}}}
}

// applyMatchSpecTags writes a resolved matchSpec into n.Tags under
// fixed synthetic keys so codegen/interp can read it back uniformly
// regardless of which command produced it.
func applyMatchSpecTags(n *ir.Node, spec matchSpec) {
	if n.Tags == nil {
		n.Tags = map[string]*ir.Arg{}
	}
	n.Tags["comparator"] = litArg(spec.comparator)
	n.Tags["matchtype"] = litArg(string(spec.matchType))
	n.Tags["relop"] = litArg(string(spec.relOp))
	n.Tags["addrpart"] = litArg(string(spec.addrPart))
}
