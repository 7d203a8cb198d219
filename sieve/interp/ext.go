package interp

import (
	"strings"

	"github.com/sievegate/sievegate/sieve/bytecode"
)

// execExtOp dispatches an extension-marked instruction to its handler
// by sub-opcode alone: the ExtOp values are unique across extensions,
// so extIndex is not consulted and interp never needs an extension's
// name.
func execExtOp(r *bytecode.Reader, rd *RuntimeData, extIndex int, sub bytecode.ExtOp) bytecode.Status {
	switch sub {
	case bytecode.ExtOpIncludeGlobal:
		names, st := readVarStringList(r, rd)
		if st != bytecode.OK {
			return st
		}
		for _, n := range names {
			if v, ok := rd.Global[normalizeGlobalName(n)]; ok {
				rd.Vars.Set(n, v)
			} else {
				rd.Vars.Set(n, "")
			}
		}
		return bytecode.OK
	case bytecode.ExtOpEnotifyNotify:
		return execNotify(r, rd)
	default:
		// Unknown extension opcode: a binary compiled against a
		// newer extension table than this engine build understands.
		return bytecode.BinCorrupt
	}
}

func normalizeGlobalName(name string) string { return strings.ToLower(name) }
