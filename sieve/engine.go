// Package sieve is the facade spec §2's data flow describes end to
// end: source -> lexer -> parser -> validator -> codegen -> binary
// format -> interpreter. Callers that only need "compile this script"
// or "run this compiled binary against this message" use this
// package; sieve/lexer..sieve/interp remain independently testable.
package sieve

import (
	"fmt"
	"strings"
	"time"

	"github.com/sievegate/sievegate/sieve/ast"
	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/codegen"
	"github.com/sievegate/sievegate/sieve/ext"
	"github.com/sievegate/sievegate/sieve/interp"
	"github.com/sievegate/sievegate/sieve/lexer"
	"github.com/sievegate/sievegate/sieve/limits"
	"github.com/sievegate/sievegate/sieve/metrics"
	"github.com/sievegate/sievegate/sieve/validator"
)

// CompileOptions bounds one compilation (spec component M plus the
// validator's error cap).
type CompileOptions struct {
	Registry  *ext.Registry // nil means ext.Builtins
	MaxErrors int
}

// CompileError is returned by Compile when validation fails; it
// carries every accumulated diagnostic rather than just the first.
type CompileError struct {
	Errs []*validator.Error
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, d := range e.Errs {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("sieve: %d error(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Compile lexes, parses, validates, and generates source into a
// ready-to-persist bytecode.Image. filename is used only for
// diagnostic positions.
func Compile(source string, filename string, opts *CompileOptions) (*bytecode.Image, error) {
	started := time.Now()
	img, err := compile(source, filename, opts)
	metrics.RecordCompile(err == nil, time.Since(started))
	return img, err
}

func compile(source string, filename string, opts *CompileOptions) (*bytecode.Image, error) {
	if opts == nil {
		opts = &CompileOptions{}
	}
	toks, err := lexer.Lex(strings.NewReader(source), &lexer.Options{Filename: filename})
	if err != nil {
		return nil, err
	}
	script, err := ast.Parse(toks, &ast.Options{Filename: filename})
	if err != nil {
		return nil, err
	}
	reg := opts.Registry
	if reg == nil {
		reg = ext.Builtins
	}
	irScript, errs := validator.Validate(script, &validator.Options{
		Registry:  reg,
		MaxErrors: opts.MaxErrors,
	})
	if len(errs) > 0 {
		return nil, &CompileError{Errs: errs}
	}

	act := ext.NewActivation(reg)
	for _, name := range irScript.Requires {
		if !act.Require(name) {
			return nil, &CompileError{Errs: []*validator.Error{{Msg: fmt.Sprintf("unknown extension %q", name)}}}
		}
	}

	return codegen.Generate(irScript, act)
}

// Save and Load round-trip a compiled Image through the on-disk
// binary container (spec component E).
func Save(img *bytecode.Image) []byte { return img.Encode() }

func Load(data []byte) (*bytecode.Image, error) { return bytecode.Decode(data) }

// VerifyActivation rejects a loaded binary whose extension table
// doesn't match reg's currently active set, per spec §4.E: a binary
// compiled against a different activation set must be recompiled, not
// silently run with a mismatched extension table.
func VerifyActivation(img *bytecode.Image, reg *ext.Registry) error {
	names, err := bytecode.DecodeExtTable(img.Blocks[bytecode.BlockExtTable])
	if err != nil {
		return err
	}
	for _, n := range names {
		if reg.Lookup(n) == nil {
			return fmt.Errorf("sieve: binary requires unknown extension %q", n)
		}
	}
	return nil
}

// Run executes img against msg, returning the finalized action list
// and the VM's terminal status. It is the single-interpreter
// convenience entry point, and the one server/sieveengine's executor
// uses; callers that need a RuntimeData wired differently build one
// directly and call interp.Run.
func Run(img *bytecode.Image, msg interp.Message, loader interp.IncludeLoader, policy interp.VacationPolicy, l limits.Limits) (*interp.RuntimeData, bytecode.Status) {
	started := time.Now()
	rd := interp.NewRuntimeData(msg, loader)
	rd.Policy = policy
	gate := limits.NewGate(l, nil)
	status := interp.Run(img, rd, gate)
	metrics.RecordRun(status.String(), time.Since(started))
	for _, a := range rd.Result.Finalize() {
		metrics.ActionsEmitted.WithLabelValues(string(a.Kind)).Inc()
	}
	return rd, status
}
