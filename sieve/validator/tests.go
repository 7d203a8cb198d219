package validator

import (
	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/ir"
)

type testValidateFunc func(v *validation, t *ast.Command) *ir.Node

var testValidators map[string]testValidateFunc

func init() {
	testValidators = map[string]testValidateFunc{
		"true":     validateBareTest,
		"false":    validateBareTest,
		"not":      validateNotTest,
		"anyof":    validateTestList,
		"allof":    validateTestList,
		"header":   validateHeaderTest,
		"address":  validateAddressTest,
		"envelope": validateEnvelopeTest,
		"exists":   validateExistsTest,
		"size":     validateSizeTest,
		"string":   validateStringTest,
	}
}

func validateBareTest(v *validation, t *ast.Command) *ir.Node {
	return &ir.Node{Name: t.Name, Pos: t.Pos}
}

func validateNotTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	inner, ok := c.takeTest()
	if !ok {
		v.errorf(t.Pos, "not requires a single test argument")
		return nil
	}
	child, ok := v.validateTest(inner)
	if !ok {
		return nil
	}
	return &ir.Node{Name: "not", Pos: t.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgTest, Test: child}}}
}

func validateTestList(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	tests, ok := c.takeTestList()
	if !ok || len(tests) == 0 {
		v.errorf(t.Pos, "%s requires a non-empty test list", t.Name)
		return nil
	}
	var children []*ir.Node
	for _, raw := range tests {
		if child, ok := v.validateTest(raw); ok {
			children = append(children, child)
		}
	}
	return &ir.Node{Name: t.Name, Pos: t.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgTestList, Tests: children}}}
}

func validateHeaderTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	spec := v.consumeMatchTags(c, t.Pos, false)
	headers, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "header requires a header-name string-list")
		return nil
	}
	keys, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "header requires a key-list string-list")
		return nil
	}
	n := &ir.Node{
		Name: "header",
		Pos:  t.Pos,
		Pos1: []*ir.Arg{
			{Kind: ir.ArgVarStringList, StrList: headers},
			{Kind: ir.ArgVarStringList, StrList: keys},
		},
	}
	applyMatchSpecTags(n, spec)
	return n
}

func validateAddressTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	spec := v.consumeMatchTags(c, t.Pos, true)
	headers, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "address requires a header-list string-list")
		return nil
	}
	keys, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "address requires a key-list string-list")
		return nil
	}
	n := &ir.Node{
		Name: "address",
		Pos:  t.Pos,
		Pos1: []*ir.Arg{
			{Kind: ir.ArgVarStringList, StrList: headers},
			{Kind: ir.ArgVarStringList, StrList: keys},
		},
	}
	applyMatchSpecTags(n, spec)
	return n
}

func validateEnvelopeTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	spec := v.consumeMatchTags(c, t.Pos, true)
	parts, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "envelope requires an envelope-part string-list")
		return nil
	}
	keys, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "envelope requires a key-list string-list")
		return nil
	}
	n := &ir.Node{
		Name: "envelope",
		Pos:  t.Pos,
		Pos1: []*ir.Arg{
			{Kind: ir.ArgVarStringList, StrList: parts},
			{Kind: ir.ArgVarStringList, StrList: keys},
		},
	}
	applyMatchSpecTags(n, spec)
	return n
}

func validateExistsTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	headers, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "exists requires a header-name string-list")
		return nil
	}
	return &ir.Node{Name: "exists", Pos: t.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgVarStringList, StrList: headers}}}
}

func validateSizeTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	var dir string
	switch peekTagName(c) {
	case "over":
		c.pos++
		dir = "over"
	case "under":
		c.pos++
		dir = "under"
	default:
		v.errorf(t.Pos, "size requires :over or :under")
		return nil
	}
	limit, _, ok := c.takeNumber()
	if !ok {
		v.errorf(t.Pos, "size :%s requires a numeric argument", dir)
		return nil
	}
	n := &ir.Node{Name: "size", Pos: t.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgNumber, Number: limit}}}
	n.Tags = map[string]*ir.Arg{"direction": litArg(dir)}
	return n
}

func validateStringTest(v *validation, t *ast.Command) *ir.Node {
	c := newCursor(v, t.Args)
	spec := v.consumeMatchTags(c, t.Pos, false)
	source, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "string requires a source string-list")
		return nil
	}
	keys, _, ok := c.takeStringList()
	if !ok {
		v.errorf(t.Pos, "string requires a key-list string-list")
		return nil
	}
	n := &ir.Node{
		Name: "string",
		Pos:  t.Pos,
		Pos1: []*ir.Arg{
			{Kind: ir.ArgVarStringList, StrList: source},
			{Kind: ir.ArgVarStringList, StrList: keys},
		},
	}
	applyMatchSpecTags(n, spec)
	return n
}
