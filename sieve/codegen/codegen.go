// Package codegen lowers a validated ir.Script into a bytecode.Image
// (spec component D). Control flow (if/elsif/else, command sequencing)
// becomes real jump-threaded instructions; each test's condition is
// embedded as a self-contained operand tree (bytecode.EncodeTest)
// evaluated recursively by the interpreter, since RFC 5228's anyof/
// allof short-circuiting is cheap to execute that way without
// flattening every comparator/match-type combination into its own
// opcode.
package codegen

import (
	"fmt"

	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/ext"
	"github.com/sievegate/sievegate/sieve/ir"
)

// Generate compiles script into a ready-to-persist Image. act must be
// the same Activation the validator resolved the script against, so
// the extension table (block 0) matches what the code stream assumes.
func Generate(script *ir.Script, act *ext.Activation) (*bytecode.Image, error) {
	w := bytecode.NewWriter()
	g := &generator{w: w, act: act}
	for _, cmd := range script.Commands {
		if err := g.emitCommand(cmd); err != nil {
			return nil, err
		}
	}
	w.Op(bytecode.OpHalt)

	extTable := bytecode.EncodeExtTable(act.Table())
	return &bytecode.Image{Blocks: [][]byte{extTable, w.Bytes()}}, nil
}

type generator struct {
	w   *bytecode.Writer
	act *ext.Activation
}

func (g *generator) emitBlock(nodes []*ir.Node) error {
	for _, n := range nodes {
		if err := g.emitCommand(n); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) emitCommand(n *ir.Node) error {
	switch n.Name {
	case "if":
		return g.emitIf(n)
	case "stop":
		g.w.Op(bytecode.OpActionStop)
	case "keep":
		g.w.Op(bytecode.OpActionKeep)
		g.emitOptionalStringList(tagList(n, "flags"))
	case "discard":
		g.w.Op(bytecode.OpActionDiscard)
	case "redirect":
		g.w.Op(bytecode.OpActionRedirect)
		g.emitBool(hasTag(n, "copy"))
		g.w.VarString(n.Pos1[0].Str)
	case "fileinto":
		g.w.Op(bytecode.OpActionFileinto)
		g.emitBool(hasTag(n, "copy"))
		g.emitOptionalStringList(tagList(n, "flags"))
		g.w.VarString(n.Pos1[0].Str)
	case "reject":
		g.w.Op(bytecode.OpActionReject)
		g.w.VarString(n.Pos1[0].Str)
	case "vacation":
		g.emitVacation(n)
	case "setflag":
		g.w.Op(bytecode.OpActionSetFlag)
		g.w.VarStringList(n.Pos1[0].StrList)
	case "addflag":
		g.w.Op(bytecode.OpActionAddFlag)
		g.w.VarStringList(n.Pos1[0].StrList)
	case "removeflag":
		g.w.Op(bytecode.OpActionRemoveFlag)
		g.w.VarStringList(n.Pos1[0].StrList)
	case "set":
		g.w.Op(bytecode.OpVarSet)
		g.emitOptionalStringList(tagList(n, "modifiers"))
		g.w.VarString(n.Pos1[0].Str)
		g.w.VarString(n.Pos1[1].Str)
	case "include":
		g.w.Op(bytecode.OpInclude)
		g.emitBool(hasTag(n, "personal"))
		g.emitBool(hasTag(n, "global"))
		g.emitBool(hasTag(n, "once"))
		g.emitBool(hasTag(n, "optional"))
		g.w.VarString(n.Pos1[0].Str)
	case "global":
		idx, _ := g.act.Index("include")
		g.w.ExtOp(idx, bytecode.ExtOpIncludeGlobal)
		g.w.VarStringList(n.Pos1[0].StrList)
	case "notify":
		idx, _ := g.act.Index("enotify")
		g.w.ExtOp(idx, bytecode.ExtOpEnotifyNotify)
		g.emitOptionalString(tagArg(n, "from"))
		g.emitOptionalString(tagArg(n, "importance"))
		g.emitOptionalStringList(tagList(n, "options"))
		g.emitOptionalString(tagArg(n, "message"))
		g.w.VarString(n.Pos1[0].Str)
	default:
		return fmt.Errorf("codegen: command %q has no lowering", n.Name)
	}
	return nil
}

func (g *generator) emitVacation(n *ir.Node) {
	g.w.Op(bytecode.OpActionVacation)
	if a := tagArg(n, "days"); a != nil {
		g.emitBool(true)
		g.w.Int64(a.Number)
	} else {
		g.emitBool(false)
	}
	g.emitOptionalString(tagArg(n, "subject"))
	g.emitOptionalString(tagArg(n, "from"))
	g.emitOptionalString(tagArg(n, "handle"))
	g.emitOptionalStringList(tagList(n, "addresses"))
	g.emitBool(hasTag(n, "mime"))
	g.w.VarString(n.Pos1[0].Str)
}

func (g *generator) emitIf(n *ir.Node) error {
	hasMore := len(n.Elsif) > 0 || n.Else != nil
	branchPos := g.w.BranchIfFalse(n.Pos1[0].Test)
	if err := g.emitBlock(n.Block); err != nil {
		return err
	}
	var endJumps []int
	if hasMore {
		endJumps = append(endJumps, g.w.Jmp(bytecode.OpJmp))
	}
	g.w.PatchJump(branchPos, g.w.Pos())

	for i, clause := range n.Elsif {
		isLast := i == len(n.Elsif)-1 && n.Else == nil
		cBranch := g.w.BranchIfFalse(clause.Pos1[0].Test)
		if err := g.emitBlock(clause.Block); err != nil {
			return err
		}
		if !isLast {
			endJumps = append(endJumps, g.w.Jmp(bytecode.OpJmp))
		}
		g.w.PatchJump(cBranch, g.w.Pos())
	}
	if n.Else != nil {
		if err := g.emitBlock(n.Else); err != nil {
			return err
		}
	}
	for _, j := range endJumps {
		g.w.PatchJump(j, g.w.Pos())
	}
	return nil
}

func (g *generator) emitBool(b bool) {
	if b {
		g.w.Uvarint(1)
	} else {
		g.w.Uvarint(0)
	}
}

func (g *generator) emitOptionalString(a *ir.Arg) {
	if a == nil || a.Str == nil {
		g.emitBool(false)
		return
	}
	g.emitBool(true)
	g.w.VarString(a.Str)
}

func (g *generator) emitOptionalStringList(list []*ir.VarString) {
	if list == nil {
		g.emitBool(false)
		return
	}
	g.emitBool(true)
	g.w.VarStringList(list)
}

func tagArg(n *ir.Node, name string) *ir.Arg {
	if n.Tags == nil {
		return nil
	}
	return n.Tags[name]
}

func hasTag(n *ir.Node, name string) bool {
	return tagArg(n, name) != nil
}

func tagList(n *ir.Node, name string) []*ir.VarString {
	a := tagArg(n, name)
	if a == nil {
		return nil
	}
	return a.StrList
}
