package interp

import (
	"github.com/sievegate/sievegate/sieve/action"
	"github.com/sievegate/sievegate/sieve/bytecode"
)

// execNotify decodes one notify extension-op's operands in the exact
// order codegen emits them for the "notify" command and queues a
// NotifyParams action — delivery of the notification itself (e.g.
// dispatching the mailto:/tel: URI in Method) is left to the embedding
// delivery agent, the same way vacation leaves sending the MIME
// reply to its caller.
func execNotify(r *bytecode.Reader, rd *RuntimeData) bytecode.Status {
	p := &action.NotifyParams{}

	var st bytecode.Status
	if p.From, _, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	if p.Importance, _, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	if p.Options, st = readOptionalStringList(r, rd); st != bytecode.OK {
		return st
	}
	if p.Message, _, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	method, st := readVarString(r, rd)
	if st != bytecode.OK {
		return st
	}
	p.Method = method

	rd.Result.AddNotify(p)
	return bytecode.OK
}
