// Package interp is the bytecode VM (spec component F): it walks the
// instruction stream codegen produced, dispatching core opcodes
// directly and extension opcodes through the activation table, and
// returns a bytecode.Status plus the resolved action.Result.
package interp

import (
	"strings"

	"github.com/sievegate/sievegate/sieve/action"
	"github.com/sievegate/sievegate/sieve/vars"
)

// Message is the narrow view of an incoming message the interpreter
// needs: header lookups, the SMTP envelope, and its size. Callers
// (ManageSieve CHECKSCRIPT, the LMTP/LDA delivery path, tests) supply
// their own implementation.
type Message interface {
	HeaderValues(name string) []string
	EnvelopeValues(part string) []string
	Size() int64
}

// IncludeLoader resolves `include`d script names to already-compiled
// sub-images. It is nil-able: a RuntimeData without one fails any
// include that is not :optional with a TEMP_FAILURE-mapped error and
// skips an :optional one.
type IncludeLoader interface {
	Load(name string, global bool) (*CompiledScript, error)
}

// RuntimeData is one script execution's mutable state — the renv of
// spec component F. A fresh RuntimeData is required per run; Copy
// clones the parts a sub-interpreter invocation (include) needs to
// share with, and diverge from, its parent.
type RuntimeData struct {
	Msg    Message
	Vars   *vars.Scope
	Result *action.Result
	Loader IncludeLoader
	Global map[string]string // shared `global` variable store, keyed lowercase

	// Flags is the IMAP flag set imap4flags' setflag/addflag/removeflag
	// maintain. Nothing in interp reads it back: keep/fileinto carry
	// only the flags of their own :flags argument, and there is no
	// hasflag test.
	Flags []string

	// Policy answers vacation's :days cooldown question. Nil is valid:
	// vacation then always permits sending. redirect does not consult
	// it.
	Policy VacationPolicy

	// LastError holds the error behind the most recent failure (a test
	// evaluation error, a vacation policy error, an include failure),
	// for the caller to inspect after Run returns.
	LastError  error
	interrupted bool

	includeDepth int
	includeSeen  map[string]bool

	matchValues []string
}

// VacationPolicy answers the one host question vacation's :days
// cooldown needs (spec §6 duplicate_check/duplicate_mark, narrowed to
// vacation's RFC 5230 semantics): has a response already gone out to
// this sender/handle pair inside the requested window.
type VacationPolicy interface {
	VacationAllowed(sender, handle string, days int) (bool, error)
	MarkVacationSent(sender, handle string) error
}

// NewRuntimeData creates a fresh execution context for msg.
func NewRuntimeData(msg Message, loader IncludeLoader) *RuntimeData {
	return &RuntimeData{
		Msg:         msg,
		Vars:        vars.NewScope(0, 0),
		Result:      action.NewResult(),
		Loader:      loader,
		Global:      map[string]string{},
		includeSeen: map[string]bool{},
	}
}

// Interrupt sets the flag every instruction checks, matching spec
// §4.F/§5's cancellation contract: the next opcode boundary returns
// TEMP_FAILURE rather than running to completion.
func (rd *RuntimeData) Interrupt() { rd.interrupted = true }

func (rd *RuntimeData) IsInterrupted() bool { return rd.interrupted }

// Copy clones rd for a sub-interpreter run (include), sharing the
// Result/Global/Msg but giving the child its own variable scope
// exactly as far as `:personal` (the default) include semantics
// require; `:global` variables still flow through the shared map.
func (rd *RuntimeData) Copy() *RuntimeData {
	return &RuntimeData{
		Msg:          rd.Msg,
		Vars:         vars.NewScope(0, 0),
		Result:       rd.Result,
		Loader:       rd.Loader,
		Global:       rd.Global,
		Flags:        rd.Flags,
		Policy:       rd.Policy,
		includeDepth: rd.includeDepth,
		includeSeen:  rd.includeSeen,
		interrupted:  rd.interrupted,
	}
}

func (rd *RuntimeData) resolver() vars.Resolver {
	return scopeAndGlobalResolver{rd: rd}
}

type scopeAndGlobalResolver struct{ rd *RuntimeData }

func (r scopeAndGlobalResolver) Resolve(name string) string {
	if v := vars.ScopeResolver{Scope: r.rd.Vars}.Resolve(name); v != "" {
		return v
	}
	if v, ok := r.rd.Global[strings.ToLower(name)]; ok {
		return v
	}
	return ""
}

// CompiledScript pairs a decoded image with the extension activation
// it was compiled against, as bincache persists it.
type CompiledScript struct {
	ExtTable []string
	Code     []byte
}
