package validator

import (
	"strings"

	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/ir"
	"github.com/sievegate/sievegate/sieve/lexer"
)

// cursor walks one command's already-parsed argument list. Sieve's
// grammar interleaves tags and positional arguments in source order;
// each command's validate function knows its own tag vocabulary and
// pulls tags by name as it recognizes them, leaving whatever remains
// to be consumed positionally.
type cursor struct {
	args []*ast.Argument
	pos  int
	v    *validation
}

func newCursor(v *validation, args []*ast.Argument) *cursor {
	return &cursor{args: args, v: v}
}

func (c *cursor) atEnd() bool { return c.pos >= len(c.args) }

func (c *cursor) peek() *ast.Argument {
	if c.atEnd() {
		return nil
	}
	return c.args[c.pos]
}

// takeTag consumes the current argument if it's the named tag,
// returning true and advancing past it. Any parameter that follows the
// tag is left for the caller to take.
func (c *cursor) takeTag(name string) bool {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgTag || !strings.EqualFold(a.Tag, name) {
		return false
	}
	c.pos++
	return true
}

// takeAnyTag consumes the current argument if it's any tag at all,
// returning its name (lowercased) or "" if none is present.
func (c *cursor) takeAnyTag() string {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgTag {
		return ""
	}
	c.pos++
	return strings.ToLower(a.Tag)
}

func (c *cursor) takeString() (*ir.VarString, lexer.Position, bool) {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgString {
		return nil, lexer.Position{}, false
	}
	c.pos++
	return parseVarString(a.Str), a.Pos, true
}

func (c *cursor) takeStringList() ([]*ir.VarString, lexer.Position, bool) {
	a := c.peek()
	if a == nil {
		return nil, lexer.Position{}, false
	}
	switch a.Kind {
	case ast.ArgStringList:
		c.pos++
		out := make([]*ir.VarString, len(a.StrList))
		for i, s := range a.StrList {
			out[i] = parseVarString(s)
		}
		return out, a.Pos, true
	case ast.ArgString:
		c.pos++
		return []*ir.VarString{parseVarString(a.Str)}, a.Pos, true
	default:
		return nil, lexer.Position{}, false
	}
}

func (c *cursor) takeNumber() (int64, lexer.Position, bool) {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgNumber {
		return 0, lexer.Position{}, false
	}
	c.pos++
	return a.Number, a.Pos, true
}

func (c *cursor) takeTest() (*ast.Command, bool) {
	a := c.peek()
	if a == nil || a.Kind != ast.ArgTest {
		return nil, false
	}
	c.pos++
	return a.Test, true
}

func (c *cursor) takeTestList() ([]*ast.Command, bool) {
	a := c.peek()
	if a == nil {
		return nil, false
	}
	switch a.Kind {
	case ast.ArgTestList:
		c.pos++
		return a.Tests, true
	case ast.ArgTest:
		c.pos++
		return []*ast.Command{a.Test}, true
	default:
		return nil, false
	}
}

// parseVarString splits raw (as the lexer produced it) into literal
// and "${...}" reference parts. Only the variables extension actually
// uses the non-literal parts, but decomposing is cheap and harmless
// when that extension isn't active.
func parseVarString(raw string) *ir.VarString {
	if !strings.Contains(raw, "${") {
		return &ir.VarString{Parts: []ir.StringPart{{Literal: true, Text: raw}}}
	}
	var parts []ir.StringPart
	i := 0
	for i < len(raw) {
		start := strings.Index(raw[i:], "${")
		if start < 0 {
			parts = append(parts, ir.StringPart{Literal: true, Text: raw[i:]})
			break
		}
		if start > 0 {
			parts = append(parts, ir.StringPart{Literal: true, Text: raw[i : i+start]})
		}
		i += start
		end := strings.IndexByte(raw[i:], '}')
		if end < 0 {
			parts = append(parts, ir.StringPart{Literal: true, Text: raw[i:]})
			break
		}
		name := strings.TrimSpace(raw[i+2 : i+end])
		parts = append(parts, ir.StringPart{Literal: false, Name: name})
		i += end + 1
	}
	if len(parts) == 0 {
		parts = []ir.StringPart{{Literal: true, Text: ""}}
	}
	return &ir.VarString{Parts: parts}
}
