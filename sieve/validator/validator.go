// Package validator is the semantic validator (spec component C): it
// walks a parsed ast.Script, resolves every command/test name against
// the active extension set, checks argument shapes, and lowers
// everything into the ir package's typed form for codegen. Unlike the
// parser it does not stop at the first problem — diagnostics
// accumulate up to a configurable cap so a script author sees more
// than one mistake per compile.
package validator

import (
	"fmt"

	"github.com/sievegate/sievegate/consts"
	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/ext"
	"github.com/sievegate/sievegate/sieve/ir"
	"github.com/sievegate/sievegate/sieve/lexer"
)

// Error is one validation diagnostic.
type Error struct {
	Pos lexer.Position
	Msg string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// Options configures validation limits (resource-limit gate, component M).
type Options struct {
	MaxErrors int // 0 means consts.DefaultMaxErrors
	Registry  *ext.Registry
}

type validation struct {
	act       *ext.Activation
	reg       *ext.Registry
	maxErrors int
	errs      []*Error
	setVars   map[string]bool
}

func (v *validation) errorf(pos lexer.Position, format string, args ...any) {
	if len(v.errs) >= v.maxErrors {
		return
	}
	v.errs = append(v.errs, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (v *validation) full() bool { return len(v.errs) >= v.maxErrors }

// Validate lowers script into an ir.Script, returning every
// accumulated diagnostic (nil on full success).
func Validate(script *ast.Script, opts *Options) (*ir.Script, []*Error) {
	if opts == nil {
		opts = &Options{}
	}
	reg := opts.Registry
	if reg == nil {
		reg = ext.Builtins
	}
	maxErrors := opts.MaxErrors
	if maxErrors <= 0 {
		maxErrors = consts.DefaultMaxErrors
	}
	v := &validation{
		act:       ext.NewActivation(reg),
		reg:       reg,
		maxErrors: maxErrors,
		setVars:   map[string]bool{},
	}

	var requires []string
	var nodes []*ir.Node
	for _, cmd := range script.Commands {
		if v.full() {
			break
		}
		if cmd.Name == "require" {
			names := v.validateRequire(cmd)
			requires = append(requires, names...)
			continue
		}
		n, ok := v.validateCommand(cmd)
		if ok {
			nodes = append(nodes, n)
		}
	}
	if len(v.errs) > 0 {
		return nil, v.errs
	}
	return &ir.Script{Commands: nodes, Requires: requires, Filename: script.Filename}, nil
}

func (v *validation) validateRequire(cmd *ast.Command) []string {
	var names []string
	for _, a := range cmd.Args {
		switch a.Kind {
		case ast.ArgStringList:
			names = append(names, a.StrList...)
		case ast.ArgString:
			names = append(names, a.Str)
		default:
			v.errorf(a.Pos, "require takes only strings or string-lists")
			continue
		}
	}
	for _, name := range names {
		if !v.act.Require(name) {
			v.errorf(cmd.Pos, "unsupported extension %q in require", name)
		}
	}
	return names
}

// resolveExtension reports the extension (if any) that must be active
// for a command/test named `name`; ok is false if name is unknown
// entirely. provider == "" means the name is a core keyword that
// needs no require.
func resolveExtension(reg *ext.Registry, name string, isTest bool) (provider string, ok bool) {
	if isCoreCommand(name) || isCoreTest(name) {
		return "", true
	}
	for _, extName := range reg.Names() {
		e := reg.Lookup(extName)
		list := e.Commands
		if isTest {
			list = e.Tests
		}
		for _, n := range list {
			if n == name {
				return extName, true
			}
		}
	}
	return "", false
}

// validateCommand dispatches to the per-command validator and checks
// extension activation uniformly first.
func (v *validation) validateCommand(cmd *ast.Command) (*ir.Node, bool) {
	provider, known := resolveExtension(v.reg, cmd.Name, false)
	if !known {
		v.errorf(cmd.Pos, "unknown command %q", cmd.Name)
		return nil, false
	}
	if provider != "" && !v.act.IsActive(provider) {
		v.errorf(cmd.Pos, "command %q requires extension %q which was not required", cmd.Name, provider)
		return nil, false
	}
	fn, ok := commandValidators[cmd.Name]
	if !ok {
		v.errorf(cmd.Pos, "command %q is not implemented", cmd.Name)
		return nil, false
	}
	n := fn(v, cmd)
	if n == nil {
		return nil, false
	}
	n.Ext = provider
	if provider != "" {
		idx, _ := v.act.Index(provider)
		n.ExtIndex = idx
	}
	return n, true
}

// validateTest mirrors validateCommand for the test grammar.
func (v *validation) validateTest(t *ast.Command) (*ir.Node, bool) {
	provider, known := resolveExtension(v.reg, t.Name, true)
	if !known {
		v.errorf(t.Pos, "unknown test %q", t.Name)
		return nil, false
	}
	if provider != "" && !v.act.IsActive(provider) {
		v.errorf(t.Pos, "test %q requires extension %q which was not required", t.Name, provider)
		return nil, false
	}
	fn, ok := testValidators[t.Name]
	if !ok {
		v.errorf(t.Pos, "test %q is not implemented", t.Name)
		return nil, false
	}
	n := fn(v, t)
	if n == nil {
		return nil, false
	}
	n.Ext = provider
	if provider != "" {
		idx, _ := v.act.Index(provider)
		n.ExtIndex = idx
	}
	return n, true
}

func (v *validation) validateBlock(b *ast.Block) []*ir.Node {
	if b == nil {
		return nil
	}
	var out []*ir.Node
	for _, cmd := range b.Commands {
		if v.full() {
			break
		}
		if n, ok := v.validateCommand(cmd); ok {
			out = append(out, n)
		}
	}
	return out
}

func isCoreCommand(name string) bool {
	switch name {
	case "if", "elsif", "else", "stop", "keep", "discard", "redirect", "require":
		return true
	}
	return false
}

func isCoreTest(name string) bool {
	switch name {
	case "anyof", "allof", "not", "true", "false", "header", "exists", "size", "address":
		return true
	}
	return false
}
