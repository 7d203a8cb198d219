package interp

import (
	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/limits"
	"github.com/sievegate/sievegate/sieve/vars"
)

// Run executes the main code block of img against rd, honoring gate's
// resource limits. It is the VM loop spec §4.F describes: one PC per
// call, core opcodes dispatched directly, extension opcodes routed
// through their activation index. Tests never touch a data stack —
// bytecode.OpBranchIfFalse decodes and evaluates its embedded test
// tree inline and consumes the boolean itself.
func Run(img *bytecode.Image, rd *RuntimeData, gate *limits.Gate) bytecode.Status {
	if gate == nil {
		gate = limits.NewGate(limits.Default(), nil)
	}
	r := bytecode.NewReader(img.Blocks[bytecode.BlockMainCode])
	return run(r, rd, gate)
}

func run(r *bytecode.Reader, rd *RuntimeData, gate *limits.Gate) bytecode.Status {
	for {
		if rd.interrupted {
			return bytecode.TempFailure
		}
		if err := gate.Tick(); err != nil {
			return bytecode.ResourceLimit
		}
		if r.AtEnd() {
			return bytecode.OK
		}
		op, err := r.Op()
		if err != nil {
			return bytecode.BinCorrupt
		}
		switch op {
		case bytecode.OpHalt, bytecode.OpReturn:
			return bytecode.OK
		case bytecode.OpNop:
			continue
		case bytecode.OpJmp:
			target, err := r.Jmp32()
			if err != nil {
				return bytecode.BinCorrupt
			}
			if err := r.Seek(target); err != nil {
				return bytecode.BinCorrupt
			}
		case bytecode.OpBranchIfFalse:
			tn, err := bytecode.DecodeTest(r)
			if err != nil {
				return bytecode.BinCorrupt
			}
			target, err := r.Jmp32()
			if err != nil {
				return bytecode.BinCorrupt
			}
			ok, evalErr := EvalTest(tn, rd)
			if evalErr != nil {
				rd.LastError = evalErr
			}
			if !ok {
				if err := r.Seek(target); err != nil {
					return bytecode.BinCorrupt
				}
			}
		case bytecode.OpActionStop:
			rd.Result.Stopped = true
			return bytecode.OK
		case bytecode.OpActionKeep:
			flags, st := readOptionalStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Result.AddKeep(flags)
		case bytecode.OpActionDiscard:
			rd.Result.Discard()
		case bytecode.OpActionFileinto:
			copyFlag, err := readBool(r)
			if err != nil {
				return bytecode.BinCorrupt
			}
			flags, st := readOptionalStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			mailbox, st := readVarString(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Result.AddFileinto(mailbox, copyFlag, flags)
		case bytecode.OpActionRedirect:
			copyFlag, err := readBool(r)
			if err != nil {
				return bytecode.BinCorrupt
			}
			addr, st := readVarString(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Result.AddRedirect(addr, copyFlag)
		case bytecode.OpActionReject:
			reason, st := readVarString(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Result.AddReject(reason)
			return bytecode.OK
		case bytecode.OpActionVacation:
			st := execVacation(r, rd)
			if st != bytecode.OK {
				return st
			}
		case bytecode.OpActionSetFlag:
			list, st := readVarStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Flags = list
		case bytecode.OpActionAddFlag:
			list, st := readVarStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Flags = appendUnique(rd.Flags, list)
		case bytecode.OpActionRemoveFlag:
			list, st := readVarStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			rd.Flags = removeAll(rd.Flags, list)
		case bytecode.OpVarSet:
			mods, st := readOptionalStringList(r, rd)
			if st != bytecode.OK {
				return st
			}
			name, st := readVarString(r, rd)
			if st != bytecode.OK {
				return st
			}
			value, st := readVarString(r, rd)
			if st != bytecode.OK {
				return st
			}
			value = vars.ApplyModifiers(value, mods)
			rd.Vars.Set(name, value)
		case bytecode.OpInclude:
			st := execInclude(r, rd, gate)
			if st != bytecode.OK {
				return st
			}
		case bytecode.ExtMarker:
			idx, sub, err := r.ExtOp()
			if err != nil {
				return bytecode.BinCorrupt
			}
			st := execExtOp(r, rd, idx, sub)
			if st != bytecode.OK {
				return st
			}
		default:
			return bytecode.BinCorrupt
		}
	}
}

func readBool(r *bytecode.Reader) (bool, error) {
	v, err := r.Uvarint()
	return v != 0, err
}

func readVarString(r *bytecode.Reader, rd *RuntimeData) (string, bytecode.Status) {
	vs, err := r.VarString()
	if err != nil {
		return "", bytecode.BinCorrupt
	}
	return resolveOne(vs, rd.resolver()), bytecode.OK
}

func readVarStringList(r *bytecode.Reader, rd *RuntimeData) ([]string, bytecode.Status) {
	list, err := r.VarStringList()
	if err != nil {
		return nil, bytecode.BinCorrupt
	}
	return resolveList(list, rd.resolver()), bytecode.OK
}

func readOptionalStringList(r *bytecode.Reader, rd *RuntimeData) ([]string, bytecode.Status) {
	has, err := readBool(r)
	if err != nil {
		return nil, bytecode.BinCorrupt
	}
	if !has {
		return nil, bytecode.OK
	}
	return readVarStringList(r, rd)
}

func readOptionalString(r *bytecode.Reader, rd *RuntimeData) (string, bool, bytecode.Status) {
	has, err := readBool(r)
	if err != nil {
		return "", false, bytecode.BinCorrupt
	}
	if !has {
		return "", false, bytecode.OK
	}
	s, st := readVarString(r, rd)
	return s, true, st
}

func appendUnique(have, add []string) []string {
	for _, a := range add {
		found := false
		for _, h := range have {
			if h == a {
				found = true
				break
			}
		}
		if !found {
			have = append(have, a)
		}
	}
	return have
}

func removeAll(have, remove []string) []string {
	out := have[:0:0]
	for _, h := range have {
		drop := false
		for _, rm := range remove {
			if h == rm {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, h)
		}
	}
	return out
}
