// Package action is the result/action layer (spec component I): it
// accumulates the delivery actions a script's commands request,
// deduplicates and reconciles them, and produces the final ordered
// action list a delivery agent executes — including the implicit
// keep RFC 5228 §2.10.2 mandates when nothing else claims the
// message.
package action

// Kind identifies one delivery action.
type Kind string

const (
	Keep     Kind = "keep"
	Discard  Kind = "discard"
	Fileinto Kind = "fileinto"
	Redirect Kind = "redirect"
	Reject   Kind = "reject"
	Vacation Kind = "vacation"
	Notify   Kind = "notify"
)

// VacationParams carries the vacation command's tagged arguments.
type VacationParams struct {
	Days      int
	Subject   string
	From      string
	Handle    string
	Addresses []string
	MIME      bool
}

// NotifyParams carries the enotify "notify" command's tagged
// arguments (RFC 5435 §3.1).
type NotifyParams struct {
	From       string
	Importance string
	Options    []string
	Message    string
	Method     string
}

// Action is one resolved action, ready for a delivery agent to carry
// out.
type Action struct {
	Kind     Kind
	Mailbox  string // Fileinto
	Copy     bool   // Fileinto, Redirect
	Flags    []string
	Address  string // Redirect
	Reason   string // Reject, Vacation
	Vacation *VacationParams
	Notify   *NotifyParams
}

// Result accumulates actions over one script run. Stop and Discarded
// are tracked separately from Actions since they change how the
// eventual Finalize synthesizes (or cancels) the implicit keep.
type Result struct {
	Actions   []*Action
	Stopped   bool
	Discarded bool
}

func NewResult() *Result { return &Result{} }

// AddKeep records an explicit `keep`, deduping against an identical
// earlier keep (same flag set) the way check_duplicate does for
// fileinto below.
func (r *Result) AddKeep(flags []string) {
	for _, a := range r.Actions {
		if a.Kind == Keep && sameFlags(a.Flags, flags) {
			return
		}
	}
	r.Actions = append(r.Actions, &Action{Kind: Keep, Flags: flags})
}

// AddFileinto records a `fileinto`, deduping an identical mailbox+flags
// pair already queued — dovecot's pigeonhole does the same so a
// script that fileintos the same folder twice doesn't file the
// message twice.
func (r *Result) AddFileinto(mailbox string, copy bool, flags []string) {
	for _, a := range r.Actions {
		if a.Kind == Fileinto && a.Mailbox == mailbox && a.Copy == copy && sameFlags(a.Flags, flags) {
			return
		}
	}
	r.Actions = append(r.Actions, &Action{Kind: Fileinto, Mailbox: mailbox, Copy: copy, Flags: flags})
}

func (r *Result) AddRedirect(address string, copy bool) {
	for _, a := range r.Actions {
		if a.Kind == Redirect && a.Address == address {
			return
		}
	}
	r.Actions = append(r.Actions, &Action{Kind: Redirect, Address: address, Copy: copy})
}

// AddReject cancels queued delivery actions (keep/fileinto/redirect):
// rejecting a message supersedes filing or forwarding a copy of it,
// matching how Sieve implementations treat "reject" as terminal.
func (r *Result) AddReject(reason string) {
	var kept []*Action
	for _, a := range r.Actions {
		if a.Kind == Keep || a.Kind == Fileinto || a.Kind == Redirect {
			continue
		}
		kept = append(kept, a)
	}
	r.Actions = kept
	r.Actions = append(r.Actions, &Action{Kind: Reject, Reason: reason})
	r.Discarded = true
}

func (r *Result) AddVacation(p *VacationParams, reason string) {
	r.Actions = append(r.Actions, &Action{Kind: Vacation, Reason: reason, Vacation: p})
}

// AddNotify records a `notify` (RFC 5435). Unlike vacation, notify
// never cancels or is cancelled by delivery actions — it's a
// side-channel the owning mailbox watches, not an alternative to
// keep/fileinto.
func (r *Result) AddNotify(p *NotifyParams) {
	r.Actions = append(r.Actions, &Action{Kind: Notify, Notify: p})
}

// Discard cancels the implicit keep without adding an action itself.
func (r *Result) Discard() { r.Discarded = true }

func sameFlags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Finalize returns the commit-ready action list, synthesizing an
// implicit keep when the script neither discarded the message nor
// queued any delivery action of its own (RFC 5228 §2.10.2).
func (r *Result) Finalize() []*Action {
	hasDelivery := false
	for _, a := range r.Actions {
		switch a.Kind {
		case Keep, Fileinto, Redirect, Reject:
			hasDelivery = true
		}
	}
	if !hasDelivery && !r.Discarded {
		return append(append([]*Action{}, r.Actions...), &Action{Kind: Keep})
	}
	return r.Actions
}
