// Package limits is the resource-limit gate (spec component M): the
// interpreter polls it on every instruction and include so a runaway
// or adversarial script is cut off with RESOURCE_LIMIT instead of
// hanging a delivery worker.
package limits

import (
	"errors"
	"time"

	"github.com/sievegate/sievegate/consts"
)

// Limits bounds one script run. NewGate replaces a Limits whose
// MaxInstructions is <= 0 with Default() as a whole; otherwise every
// field is used as given, and a zero CPUTime disables the time check.
type Limits struct {
	MaxInstructions int
	MaxIncludes     int
	MaxNestingDepth int
	CPUTime         time.Duration
}

func Default() Limits {
	return Limits{
		MaxInstructions: 1_000_000,
		MaxIncludes:     consts.DefaultMaxIncludes,
		MaxNestingDepth: consts.DefaultMaxNestingDepth,
		CPUTime:         consts.DefaultCPUTimeLimit,
	}
}

// ErrResourceLimit is returned by Gate methods once any bound trips.
// interp maps it to bytecode.ResourceLimit.
var ErrResourceLimit = errors.New("sieve: resource limit exceeded")

// Gate tracks consumption against Limits for a single script run. It
// is not safe for concurrent use — one Gate belongs to one
// interpreter invocation.
type Gate struct {
	limits       Limits
	instructions int
	includeDepth int
	started      time.Time
	now          func() time.Time
}

// NewGate creates a gate. now lets tests and replay-from-cache paths
// supply a deterministic clock; production callers pass nil for
// time.Now.
func NewGate(l Limits, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	if l.MaxInstructions <= 0 {
		l = Default()
	}
	return &Gate{limits: l, now: now, started: now()}
}

// Tick accounts for one executed instruction.
func (g *Gate) Tick() error {
	g.instructions++
	if g.instructions > g.limits.MaxInstructions {
		return ErrResourceLimit
	}
	if g.limits.CPUTime > 0 && g.now().Sub(g.started) > g.limits.CPUTime {
		return ErrResourceLimit
	}
	return nil
}

// EnterInclude accounts for one include nesting level.
func (g *Gate) EnterInclude() error {
	g.includeDepth++
	if g.includeDepth > g.limits.MaxIncludes {
		return ErrResourceLimit
	}
	return nil
}

func (g *Gate) ExitInclude() {
	if g.includeDepth > 0 {
		g.includeDepth--
	}
}

func (g *Gate) InstructionsExecuted() int { return g.instructions }
