package interp

import (
	"github.com/sievegate/sievegate/sieve/action"
	"github.com/sievegate/sievegate/sieve/bytecode"
)

// execVacation decodes one OpActionVacation's operands in the exact
// order codegen.emitVacation wrote them and resolves the vacation
// :days cooldown through rd.Policy before queuing the action. A nil
// Policy always permits sending, matching NewSieveExecutor's
// behavior for policy-less compile-time validation runs.
func execVacation(r *bytecode.Reader, rd *RuntimeData) bytecode.Status {
	p := &action.VacationParams{Days: 7}

	hasDays, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	if hasDays {
		days, err := r.Int64()
		if err != nil {
			return bytecode.BinCorrupt
		}
		p.Days = int(days)
	}

	var ok bool
	var st bytecode.Status
	if p.Subject, ok, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	_ = ok
	if p.From, _, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	if p.Handle, _, st = readOptionalString(r, rd); st != bytecode.OK {
		return st
	}
	if p.Addresses, st = readOptionalStringList(r, rd); st != bytecode.OK {
		return st
	}
	mime, err := readBool(r)
	if err != nil {
		return bytecode.BinCorrupt
	}
	p.MIME = mime

	reason, st := readVarString(r, rd)
	if st != bytecode.OK {
		return st
	}

	sender := primarySender(rd)
	handle := p.Handle
	if handle == "" {
		handle = reason
	}

	if rd.Policy != nil {
		allowed, err := rd.Policy.VacationAllowed(sender, handle, p.Days)
		if err != nil {
			rd.LastError = err
			return bytecode.TempFailure
		}
		if !allowed {
			return bytecode.OK
		}
		if err := rd.Policy.MarkVacationSent(sender, handle); err != nil {
			rd.LastError = err
			return bytecode.TempFailure
		}
	}

	rd.Result.AddVacation(p, reason)
	return bytecode.OK
}

// primarySender reads the From envelope/header the auto-reply goes
// to, falling back to the empty string so a malformed message never
// blocks vacation accounting — it only degrades the per-sender
// cooldown key.
func primarySender(rd *RuntimeData) string {
	if vals := rd.Msg.EnvelopeValues("from"); len(vals) > 0 {
		return vals[0]
	}
	if vals := rd.Msg.HeaderValues("from"); len(vals) > 0 {
		if addrs := ParseAddressList(vals[0]); len(addrs) > 0 {
			return addrs[0]
		}
	}
	return ""
}
