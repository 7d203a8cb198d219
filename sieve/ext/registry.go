// Package ext is the extension registry (spec component B): the set
// of named Sieve capabilities ("fileinto", "envelope", "variables",
// ...) that a script activates with `require` and that gate which
// commands, tests, and bytecode operations a validator/interpreter
// pair will accept.
//
// Everything here is pure metadata. The concrete behavior of an
// extension's operations lives with their callers (validator for
// syntax shape, interp for execution) — ext only answers "does this
// name exist" and "is it active for this compilation/run".
package ext

import "sort"

// Extension describes one named Sieve capability.
type Extension struct {
	Name string
	// Commands/Tests list the bare identifiers this extension
	// contributes, for documentation and capability advertisement
	// (ManageSieve CAPABILITY, vacation ManageSieve SIEVE response).
	Commands []string
	Tests    []string
	// Implicit extensions (like "encoded-character" or the comparator
	// names) are always considered active and never need `require`.
	Implicit bool
}

// Registry is the set of extensions a given build of the engine knows
// about. It is safe for concurrent read-only use once built.
type Registry struct {
	byName map[string]*Extension
	order  []string
}

// NewRegistry builds a registry from the given extensions.
func NewRegistry(exts ...*Extension) *Registry {
	r := &Registry{byName: make(map[string]*Extension, len(exts))}
	for _, e := range exts {
		r.byName[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	sort.Strings(r.order)
	return r
}

// Lookup returns the named extension, or nil if unknown.
func (r *Registry) Lookup(name string) *Extension {
	return r.byName[name]
}

// Names returns every known extension name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Activation tracks which extensions a single script has `require`d,
// plus implicit ones, and resolves command/test names against them.
type Activation struct {
	reg    *Registry
	active map[string]bool
	// index assigns each required extension a stable per-binary slot
	// for the bytecode extension table (spec §4.E, block 0).
	index map[string]int
	order []string
}

// NewActivation starts an activation set seeded with every Implicit
// extension in reg.
func NewActivation(reg *Registry) *Activation {
	a := &Activation{reg: reg, active: make(map[string]bool), index: make(map[string]int)}
	for _, name := range reg.order {
		if reg.byName[name].Implicit {
			a.require(name)
		}
	}
	return a
}

func (a *Activation) require(name string) {
	if a.active[name] {
		return
	}
	a.active[name] = true
	a.index[name] = len(a.order)
	a.order = append(a.order, name)
}

// Require activates name. It returns false if name is not a known
// extension (the caller — the validator — turns that into a
// diagnostic against the `require` command's argument).
func (a *Activation) Require(name string) bool {
	ext := a.reg.Lookup(name)
	if ext == nil {
		return false
	}
	a.require(name)
	return true
}

// IsActive reports whether name has been required (or is implicit).
func (a *Activation) IsActive(name string) bool {
	return a.active[name]
}

// Index returns the per-binary extension table slot for name, and
// whether it is active at all.
func (a *Activation) Index(name string) (int, bool) {
	i, ok := a.index[name]
	return i, ok
}

// Table returns the activated extension names in table order —
// exactly what codegen writes as block 0 of the compiled binary.
func (a *Activation) Table() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}
