// Package ir is the validated, typed form a Command tree is lowered
// into by the validator (component C) before codegen (component D)
// turns it into bytecode. Unlike the AST, every node here already
// knows which extension (if any) provides it, and every string
// argument has been parsed into its literal/variable-reference parts.
package ir

import "github.com/sievegate/sievegate/sieve/lexer"

// StringPart is one fragment of a (possibly) interpolated string.
// Plain Sieve strings lower to a single part with Literal set; the
// variables extension adds parts with Literal unset for "${name}" and
// numeric match-value references like "${1}".
type StringPart struct {
	Literal   bool
	Text      string // meaningful when Literal
	Name      string // meaningful when !Literal: variable or namespaced name
}

// VarString is a fully decomposed string argument. Len(Parts)==1 with
// Parts[0].Literal==true means "this was never interpolated" and
// codegen may emit it as a plain string operand.
type VarString struct {
	Parts []StringPart
}

// IsLiteral reports whether the string has no variable references.
func (v *VarString) IsLiteral() bool {
	return len(v.Parts) == 1 && v.Parts[0].Literal
}

// Literal returns the plain text; only valid when IsLiteral is true.
func (v *VarString) Literal() string {
	if len(v.Parts) == 0 {
		return ""
	}
	return v.Parts[0].Text
}

// Node is a validated command or test. Which it is follows from where
// it's referenced (Script.Commands vs. an Args[i].Test); the grammar
// never distinguishes them and neither does ir.
type Node struct {
	Name     string
	Ext      string // "" for core, else the owning extension's name
	ExtIndex int    // resolved extension table index, filled by the validator
	Pos      lexer.Position

	Tags  map[string]*Arg // tag name -> its parameter (nil if bare)
	Pos1  []*Arg          // positional (untagged) args, in source order
	Block []*Node         // nil if the command took no block

	Elsif []*Node // populated only for "if": each Name "elsif"
	Else  []*Node // populated only for "if" when a trailing "else" was present
}

// ArgKind identifies which field of Arg is populated.
type ArgKind int

const (
	ArgVarString ArgKind = iota
	ArgVarStringList
	ArgNumber
	ArgTest
	ArgTestList
)

type Arg struct {
	Kind    ArgKind
	Str     *VarString
	StrList []*VarString
	Number  int64
	Test    *Node
	Tests   []*Node
}

// Script is a fully validated compilation unit ready for codegen.
type Script struct {
	Commands  []*Node
	Requires  []string // extensions named by `require`, in source order
	Filename  string
}
