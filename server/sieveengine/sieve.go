// Package sieveengine adapts the internal sieve compiler/VM (package
// sieve) to the mail-store's view of a message: plain header maps and
// an envelope, rather than bytecode.Image/interp.RuntimeData directly.
// ManageSieve's CHECKSCRIPT and the delivery path both go through this
// package instead of calling sieve.Compile/sieve.Run themselves.
package sieveengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sievegate/sievegate/sieve"
	"github.com/sievegate/sievegate/sieve/action"
	"github.com/sievegate/sievegate/sieve/bincache"
	"github.com/sievegate/sievegate/sieve/bytecode"
	"github.com/sievegate/sievegate/sieve/interp"
	"github.com/sievegate/sievegate/sieve/limits"
	"github.com/sievegate/sievegate/sieve/metrics"
)

// cache is the process-wide compiled-binary cache (spec §4.E / §3's
// "sources re-parsed when the on-disk mtime is newer than a cached
// compiled binary"). SetCache wires it in from main.go's startup;
// a nil cache falls back to compiling on every call. Every caller of
// compileCached, CHECKSCRIPT included, uses the cache when one is set.
var cache *bincache.Cache

// SetCache installs the process-wide bincache. Call once at startup.
func SetCache(c *bincache.Cache) { cache = c }

// defaultLimits is the resource gate every new Executor starts from.
// main.go overrides it at startup from the resolved limits.* config
// section; until then it's the engine's built-in floor.
var defaultLimits = limits.Default()

// SetLimits installs the process-wide default resource limits newly
// compiled executors are gated by. Call once at startup.
func SetLimits(l limits.Limits) { defaultLimits = l }

// compileCached compiles source, consulting the bincache by the
// SHA-256 of its bytes first and storing a fresh compile back into it
// on a miss, so PUTSCRIPT/SETACTIVE/delivery don't recompile an
// unchanged script on every run.
func compileCached(source string) (*bytecode.Image, error) {
	if cache == nil {
		return sieve.Compile(source, "script.sieve", nil)
	}
	sum := sha256.Sum256([]byte(source))
	hash := hex.EncodeToString(sum[:])

	if data, err := cache.Get(hash); err == nil {
		img, decErr := sieve.Load(data)
		if decErr == nil {
			metrics.BincacheHits.WithLabelValues("hit").Inc()
			return img, nil
		}
		// A corrupt cache entry falls through to recompiling below.
	}

	metrics.BincacheHits.WithLabelValues("miss").Inc()
	img, err := sieve.Compile(source, "script.sieve", nil)
	if err != nil {
		return nil, err
	}
	if putErr := cache.Put(hash, sieve.Save(img)); putErr == nil {
		metrics.BincacheHits.WithLabelValues("store").Inc()
	}
	return img, nil
}

// Action mirrors action.Kind for callers that would rather not import
// the sieve/action package directly.
type Action string

const (
	ActionKeep     Action = "keep"
	ActionDiscard  Action = "discard"
	ActionFileInto Action = "fileinto"
	ActionRedirect Action = "redirect"
	ActionReject   Action = "reject"
	ActionVacation Action = "vacation"
)

// Result is one resolved action a delivery agent carries out. Unlike
// action.Result, which accumulates every action a script queues, a
// sieveengine.Result is the single action the caller should perform
// for the common single-action-script case; callers that need the
// full ordered list use Results instead.
type Result struct {
	Action         Action
	Mailbox        string
	Copy           bool
	RedirectTo     string
	Flags          []string
	RejectReason   string
	VacationFrom   string
	VacationSubj   string
	VacationMsg    string
	VacationIsMime bool
}

// Context is the message view a script is evaluated against.
type Context struct {
	EnvelopeFrom string
	EnvelopeTo   string
	Header       map[string][]string
	Body         string
}

// VacationOracle is the persistence side of the vacation command's
// :days cooldown, backed by db.Database's vacation_responses ledger.
type VacationOracle interface {
	IsVacationResponseAllowed(ctx context.Context, userID int64, originalSender string, handle string, duration time.Duration) (bool, error)
	RecordVacationResponseSent(ctx context.Context, userID int64, originalSender string, handle string) error
}

// Executor compiles and evaluates one Sieve script.
type Executor interface {
	Evaluate(evalCtx context.Context, ctx Context) (Result, error)
	// Results returns every action the last Evaluate call queued, in
	// commit order, for callers that need more than the single
	// headline Result (e.g. a script with both fileinto and vacation).
	Results() []*action.Action
}

// SieveExecutor runs a compiled script through the internal VM.
type SieveExecutor struct {
	img    *bytecode.Image
	policy *vacationPolicy
	limits limits.Limits
	last   []*action.Action
}

// NewSieveExecutor compiles scriptContent with no vacation persistence
// wired in — vacation's :days check always permits sending. Suitable
// for CHECKSCRIPT-style validation where no user context exists yet.
func NewSieveExecutor(scriptContent string) (Executor, error) {
	img, err := compileCached(scriptContent)
	if err != nil {
		return nil, err
	}
	return &SieveExecutor{img: img, limits: defaultLimits}, nil
}

// NewSieveExecutorWithOracle compiles scriptContent with vacation
// responses tracked persistently through oracle, scoped to userID.
func NewSieveExecutorWithOracle(scriptContent string, userID int64, oracle VacationOracle) (Executor, error) {
	img, err := compileCached(scriptContent)
	if err != nil {
		return nil, err
	}
	policy := &vacationPolicy{userID: userID, oracle: oracle}
	return &SieveExecutor{img: img, policy: policy, limits: defaultLimits}, nil
}

func (e *SieveExecutor) Evaluate(evalCtx context.Context, ctx Context) (Result, error) {
	msg := &message{headers: ctx.Header, envelope: map[string][]string{
		"from": {ctx.EnvelopeFrom},
		"to":   {ctx.EnvelopeTo},
	}, size: int64(len(ctx.Body))}

	var policy interp.VacationPolicy
	if e.policy != nil {
		policy = e.policy
	}

	rd, status := sieve.Run(e.img, msg, nil, policy, e.limits)
	if status != bytecode.OK {
		if rd.LastError != nil {
			return Result{Action: ActionKeep}, fmt.Errorf("sieve: %s: %w", status, rd.LastError)
		}
		return Result{Action: ActionKeep}, fmt.Errorf("sieve: execution ended with status %s", status)
	}

	actions := rd.Result.Finalize()
	e.last = actions
	return headlineResult(actions), nil
}

func (e *SieveExecutor) Results() []*action.Action { return e.last }

// headlineResult picks the single most significant action from a
// finalized action list for callers that only want "the" outcome —
// reject and vacation outrank delivery actions, which outrank keep.
func headlineResult(actions []*action.Action) Result {
	result := Result{Action: ActionKeep}
	rank := func(k action.Kind) int {
		switch k {
		case action.Vacation:
			return 5
		case action.Reject:
			return 4
		case action.Redirect:
			return 3
		case action.Fileinto:
			return 2
		case action.Discard:
			return 1
		default:
			return 0
		}
	}
	best := -1
	for _, a := range actions {
		if r := rank(a.Kind); r > best {
			best = r
			switch a.Kind {
			case action.Keep:
				result = Result{Action: ActionKeep, Flags: a.Flags}
			case action.Discard:
				result = Result{Action: ActionDiscard}
			case action.Fileinto:
				result = Result{Action: ActionFileInto, Mailbox: a.Mailbox, Copy: a.Copy, Flags: a.Flags}
			case action.Redirect:
				result = Result{Action: ActionRedirect, RedirectTo: a.Address, Copy: a.Copy}
			case action.Reject:
				result = Result{Action: ActionReject, RejectReason: a.Reason}
			case action.Vacation:
				result = Result{
					Action:         ActionVacation,
					VacationFrom:   a.Vacation.From,
					VacationSubj:   a.Vacation.Subject,
					VacationMsg:    a.Reason,
					VacationIsMime: a.Vacation.MIME,
				}
			}
		}
	}
	return result
}

// vacationPolicy adapts VacationOracle to interp.VacationPolicy,
// translating the VM's sender/handle/days call into the oracle's
// userID-scoped, time.Duration-based persistence check.
type vacationPolicy struct {
	userID int64
	oracle VacationOracle
}

func (p *vacationPolicy) VacationAllowed(sender, handle string, days int) (bool, error) {
	return p.oracle.IsVacationResponseAllowed(context.Background(), p.userID, sender, handle, time.Duration(days)*24*time.Hour)
}

func (p *vacationPolicy) MarkVacationSent(sender, handle string) error {
	return p.oracle.RecordVacationResponseSent(context.Background(), p.userID, sender, handle)
}

// message implements interp.Message over the header map and envelope
// ManageSieve/the delivery path already have in hand.
type message struct {
	headers  map[string][]string
	envelope map[string][]string
	size     int64
}

func (m *message) HeaderValues(name string) []string { return m.headers[name] }
func (m *message) EnvelopeValues(part string) []string {
	return m.envelope[part]
}
func (m *message) Size() int64 { return m.size }
