package engine

import (
	"context"
	"time"

	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// Input is what a handler sees: a snapshot of the session, the event and
// the dispatch time.
type Input struct {
	Session session.Session
	Event   Event
	Now     time.Time
}

// Handler computes a Result. Handlers run inside the identity's commit,
// which a store may retry, so they may read but must not write: ask for a
// job through Result.Job and for any other write through Result.Effects.
type Handler func(ctx context.Context, in Input) (Result, error)

// JobRequest asks the engine to schedule a one-shot job for the identity
// once the commit succeeds.
type JobRequest struct {
	Delay   time.Duration
	Payload string

	// Ref comes back as Event.Ref when the job fires. Defaults to the
	// token of the dispatch that asked for the job.
	Ref string
}

// Effect is a write outside the session, e.g. to the roster. Effects of
// the committed attempt run in order after the commit, never inside it.
type Effect func(ctx context.Context) error

// Result is a handler's answer.
type Result struct {
	Messages []transport.Message

	// Next is the state to move to. Empty stays in the current state;
	// session.Idle ends the flow and clears scratch.
	Next session.State

	// Scratch replaces the flow's scratch when non-nil.
	Scratch session.Scratch

	// History replaces the session history when non-nil.
	History []session.FocusRecord

	Job *JobRequest

	Effects []Effect

	// CancelJobs cancels the identity's pending jobs after the commit,
	// before Job is scheduled. Terminal results always cancel.
	CancelJobs bool

	// Reject refuses the event without touching the session. Entry
	// handlers use it for eligibility checks.
	Reject bool

	// Drop ignores the event as if no rule had matched.
	Drop bool
}

// Stay re-prompts in the current state.
func Stay(msgs ...transport.Message) Result {
	return Result{Messages: msgs}
}

// Goto moves to next.
func Goto(next session.State, msgs ...transport.Message) Result {
	return Result{Next: next, Messages: msgs}
}

// End terminates the flow.
func End(msgs ...transport.Message) Result {
	return Result{Next: session.Idle, Messages: msgs}
}

// Reject refuses the event.
func Reject(msgs ...transport.Message) Result {
	return Result{Reject: true, Messages: msgs}
}

// Ignore drops the event, e.g. a job firing that no longer applies.
func Ignore() Result {
	return Result{Drop: true}
}

// WithScratch returns r with scratch set.
func (r Result) WithScratch(sc session.Scratch) Result {
	r.Scratch = sc
	return r
}

// WithJob returns r asking for a job after delay.
func (r Result) WithJob(delay time.Duration, payload string) Result {
	r.Job = &JobRequest{Delay: delay, Payload: payload}
	return r
}

// WithEffect returns r with fx appended to its effects.
func (r Result) WithEffect(fx Effect) Result {
	r.Effects = append(r.Effects[:len(r.Effects):len(r.Effects)], fx)
	return r
}

// WithCancel returns r asking for the identity's pending jobs to be
// cancelled.
func (r Result) WithCancel() Result {
	r.CancelJobs = true
	return r
}

// WithHistory returns r replacing the session history.
func (r Result) WithHistory(h []session.FocusRecord) Result {
	if h == nil {
		h = []session.FocusRecord{}
	}
	r.History = h
	return r
}

// terminal reports whether r ends the flow.
func (r Result) terminal() bool {
	return r.Next == session.Idle
}

// applyTo returns base with r applied.
func (r Result) applyTo(base session.Session) session.Session {
	next := base
	switch {
	case r.terminal():
		next = next.Exit()
	case r.Next != "":
		next.State = r.Next
	}
	if r.Scratch != nil && !r.terminal() {
		next.Scratch = r.Scratch
	}
	if r.History != nil {
		next.History = r.History
	}
	return next
}
