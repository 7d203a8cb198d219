package interp

import (
	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/limits"
)

// execInclude decodes one OpInclude's operands in codegen.emitCommand's
// "include" order and, unless :once has already seen this name, runs
// the named sub-binary to completion against a child RuntimeData
// before resuming the parent's code stream — the "tail-recursive
// re-entry" model spec §4.H/§9 describe rather than true coroutines.
func execInclude(r *bytecode.Reader, rd *RuntimeData, gate *limits.Gate) bytecode.Status {
	personal, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	global, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	once, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	optional, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	_ = personal
	name, st := readVarString(r, rd)
	if st != bytecode.OK {
		return st
	}

	key := name
	if global {
		key = "global:" + name
	}
	if once && rd.includeSeen[key] {
		return bytecode.OK
	}

	if rd.Loader == nil {
		if optional {
			return bytecode.OK
		}
		rd.LastError = errIncludeUnavailable
		return bytecode.TempFailure
	}

	if err := gate.EnterInclude(); err != nil {
		return bytecode.ResourceLimit
	}
	defer gate.ExitInclude()

	sub, err := rd.Loader.Load(name, global)
	if err != nil {
		if optional {
			return bytecode.OK
		}
		rd.LastError = err
		return bytecode.TempFailure
	}

	rd.includeSeen[key] = true

	child := rd.Copy()
	childReader := bytecode.NewReader(sub.Code)
	status := run(childReader, child, gate)
	rd.LastError = child.LastError
	if child.interrupted {
		rd.interrupted = true
	}
	return status
}

type includeUnavailableErr struct{}

func (includeUnavailableErr) Error() string { return "sieve: include has no loader configured" }

var errIncludeUnavailable = includeUnavailableErr{}
