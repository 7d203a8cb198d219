package validator

import (
	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/ir"
	"github.com/sievegate/sievegate/sieve/vars"
)

type commandValidateFunc func(v *validation, cmd *ast.Command) *ir.Node

var commandValidators map[string]commandValidateFunc

func init() {
	commandValidators = map[string]commandValidateFunc{
		"if":           validateIf,
		"stop":         validateNoArgAction,
		"keep":         validateKeep,
		"discard":      validateNoArgAction,
		"redirect":     validateRedirect,
		"fileinto":     validateFileinto,
		"reject":       validateReject,
		"vacation":     validateVacation,
		"setflag":      validateFlagCommand,
		"addflag":      validateFlagCommand,
		"removeflag":   validateFlagCommand,
		"set":          validateSet,
		"include":      validateInclude,
		"global":       validateGlobal,
		"notify":       validateNotify,
	}
}

func validateIf(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	testCmd, ok := c.takeTest()
	if !ok {
		v.errorf(cmd.Pos, "if requires a test")
		return nil
	}
	test, ok := v.validateTest(testCmd)
	n := &ir.Node{Name: "if", Pos: cmd.Pos, Block: v.validateBlock(cmd.Block)}
	if ok {
		n.Pos1 = []*ir.Arg{{Kind: ir.ArgTest, Test: test}}
	}
	for _, clause := range cmd.Elsif {
		ec := newCursor(v, clause.Args)
		clauseTest, ok := ec.takeTest()
		if !ok {
			v.errorf(clause.Pos, "elsif requires a test")
			continue
		}
		tv, ok := v.validateTest(clauseTest)
		if !ok {
			continue
		}
		elsifNode := &ir.Node{
			Name:  "elsif",
			Pos:   clause.Pos,
			Pos1:  []*ir.Arg{{Kind: ir.ArgTest, Test: tv}},
			Block: v.validateBlock(clause.Block),
		}
		n.Elsif = append(n.Elsif, elsifNode)
	}
	if cmd.Else != nil {
		n.Else = v.validateBlock(cmd.Else)
	}
	return n
}

func validateNoArgAction(v *validation, cmd *ast.Command) *ir.Node {
	if len(cmd.Args) > 0 {
		v.errorf(cmd.Pos, "%s takes no arguments", cmd.Name)
	}
	return &ir.Node{Name: cmd.Name, Pos: cmd.Pos}
}

func validateKeep(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "keep", Pos: cmd.Pos}
	if peekTagName(c) == "flags" {
		c.pos++
		flags, _, ok := c.takeStringList()
		if !ok {
			v.errorf(cmd.Pos, "keep :flags requires a string-list")
			return n
		}
		n.Tags = map[string]*ir.Arg{"flags": {Kind: ir.ArgVarStringList, StrList: flags}}
	}
	return n
}

func validateRedirect(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "redirect", Pos: cmd.Pos}
	if peekTagName(c) == "copy" {
		c.pos++
		n.Tags = map[string]*ir.Arg{"copy": litArg("true")}
	}
	addr, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "redirect requires a destination address string")
		return n
	}
	n.Pos1 = []*ir.Arg{{Kind: ir.ArgVarString, Str: addr}}
	return n
}

func validateFileinto(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "fileinto", Pos: cmd.Pos, Tags: map[string]*ir.Arg{}}
	for {
		switch peekTagName(c) {
		case "copy":
			c.pos++
			n.Tags["copy"] = litArg("true")
			continue
		case "flags":
			c.pos++
			flags, _, ok := c.takeStringList()
			if !ok {
				v.errorf(cmd.Pos, "fileinto :flags requires a string-list")
				return n
			}
			n.Tags["flags"] = &ir.Arg{Kind: ir.ArgVarStringList, StrList: flags}
			continue
		}
		break
	}
	mailbox, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "fileinto requires a mailbox name string")
		return n
	}
	n.Pos1 = []*ir.Arg{{Kind: ir.ArgVarString, Str: mailbox}}
	return n
}

func validateReject(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	reason, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "reject requires a reason string")
		return &ir.Node{Name: "reject", Pos: cmd.Pos}
	}
	return &ir.Node{Name: "reject", Pos: cmd.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgVarString, Str: reason}}}
}

func validateVacation(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "vacation", Pos: cmd.Pos, Tags: map[string]*ir.Arg{}}
	for {
		tag := peekTagName(c)
		switch tag {
		case "days":
			c.pos++
			days, _, ok := c.takeNumber()
			if !ok {
				v.errorf(cmd.Pos, ":days requires a number")
				return n
			}
			n.Tags["days"] = &ir.Arg{Kind: ir.ArgNumber, Number: days}
		case "subject", "from", "handle":
			c.pos++
			s, _, ok := c.takeString()
			if !ok {
				v.errorf(cmd.Pos, ":%s requires a string", tag)
				return n
			}
			n.Tags[tag] = &ir.Arg{Kind: ir.ArgVarString, Str: s}
		case "addresses":
			c.pos++
			list, _, ok := c.takeStringList()
			if !ok {
				v.errorf(cmd.Pos, ":addresses requires a string-list")
				return n
			}
			n.Tags["addresses"] = &ir.Arg{Kind: ir.ArgVarStringList, StrList: list}
		case "mime":
			c.pos++
			n.Tags["mime"] = litArg("true")
		default:
			tag = ""
		}
		if tag == "" {
			break
		}
	}
	reason, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "vacation requires a reason string")
		return n
	}
	n.Pos1 = []*ir.Arg{{Kind: ir.ArgVarString, Str: reason}}
	return n
}

// validateNotify implements RFC 5435 §3.1's
// notify [":from" string] [":importance" <"1"/"2"/"3">]
//        [":options" string-list] [":message" string] <method: string>
func validateNotify(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "notify", Pos: cmd.Pos, Tags: map[string]*ir.Arg{}}
	for {
		tag := peekTagName(c)
		switch tag {
		case "from", "message":
			c.pos++
			s, _, ok := c.takeString()
			if !ok {
				v.errorf(cmd.Pos, ":%s requires a string", tag)
				return n
			}
			n.Tags[tag] = &ir.Arg{Kind: ir.ArgVarString, Str: s}
		case "importance":
			c.pos++
			s, pos, ok := c.takeString()
			if !ok {
				v.errorf(cmd.Pos, ":importance requires a string")
				return n
			}
			if s.IsLiteral() {
				if lit := s.Literal(); lit != "1" && lit != "2" && lit != "3" {
					v.errorf(pos, ":importance must be \"1\", \"2\", or \"3\"")
				}
			}
			n.Tags["importance"] = &ir.Arg{Kind: ir.ArgVarString, Str: s}
		case "options":
			c.pos++
			list, _, ok := c.takeStringList()
			if !ok {
				v.errorf(cmd.Pos, ":options requires a string-list")
				return n
			}
			n.Tags["options"] = &ir.Arg{Kind: ir.ArgVarStringList, StrList: list}
		default:
			tag = ""
		}
		if tag == "" {
			break
		}
	}
	method, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "notify requires a method string")
		return n
	}
	n.Pos1 = []*ir.Arg{{Kind: ir.ArgVarString, Str: method}}
	return n
}

func validateFlagCommand(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	flags, _, ok := c.takeStringList()
	if !ok {
		v.errorf(cmd.Pos, "%s requires a flag-list string-list", cmd.Name)
		return &ir.Node{Name: cmd.Name, Pos: cmd.Pos}
	}
	return &ir.Node{Name: cmd.Name, Pos: cmd.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgVarStringList, StrList: flags}}}
}

func validateSet(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	var modifiers []string
	seenPrec := map[int]string{}
	for {
		name := peekTagName(c)
		switch name {
		case "length", "upper", "lower", "upperfirst", "lowerfirst", "quotewildcard", "encodeurl":
			c.pos++
			prec := vars.Modifiers[name].Precedence
			if prev, dup := seenPrec[prec]; dup {
				v.errorf(cmd.Pos, "set modifiers :%s and :%s have the same precedence", prev, name)
			}
			seenPrec[prec] = name
			modifiers = append(modifiers, name)
			continue
		}
		break
	}
	varName, pos, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "set requires a variable name string")
		return nil
	}
	if !varName.IsLiteral() {
		v.errorf(pos, "set's variable name must be a literal string")
	}
	value, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "set requires a value string")
		return nil
	}
	n := &ir.Node{
		Name: "set",
		Pos:  cmd.Pos,
		Pos1: []*ir.Arg{
			{Kind: ir.ArgVarString, Str: varName},
			{Kind: ir.ArgVarString, Str: value},
		},
	}
	if len(modifiers) > 0 {
		n.Tags = map[string]*ir.Arg{"modifiers": {Kind: ir.ArgVarStringList, StrList: toVarStrings(modifiers)}}
	}
	v.setVars[varName.Literal()] = true
	return n
}

func toVarStrings(ss []string) []*ir.VarString {
	out := make([]*ir.VarString, len(ss))
	for i, s := range ss {
		out[i] = &ir.VarString{Parts: []ir.StringPart{{Literal: true, Text: s}}}
	}
	return out
}

func validateInclude(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	n := &ir.Node{Name: "include", Pos: cmd.Pos, Tags: map[string]*ir.Arg{}}
	for {
		tag := peekTagName(c)
		switch tag {
		case "personal", "global", "once", "optional":
			c.pos++
			n.Tags[tag] = litArg("true")
			continue
		}
		break
	}
	script, _, ok := c.takeString()
	if !ok {
		v.errorf(cmd.Pos, "include requires a script-name string")
		return n
	}
	n.Pos1 = []*ir.Arg{{Kind: ir.ArgVarString, Str: script}}
	return n
}

func validateGlobal(v *validation, cmd *ast.Command) *ir.Node {
	c := newCursor(v, cmd.Args)
	names, _, ok := c.takeStringList()
	if !ok {
		v.errorf(cmd.Pos, "global requires a variable-name string-list")
		return &ir.Node{Name: "global", Pos: cmd.Pos}
	}
	for _, n := range names {
		if n.IsLiteral() {
			v.setVars[n.Literal()] = true
		}
	}
	return &ir.Node{Name: "global", Pos: cmd.Pos, Pos1: []*ir.Arg{{Kind: ir.ArgVarStringList, StrList: names}}}
}
