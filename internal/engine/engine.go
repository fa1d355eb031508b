package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/idgen"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// Jobs is the part of the scheduler the engine uses.
// Implemented by *scheduler.Scheduler.
type Jobs interface {
	ScheduleOnceAfter(id session.Identity, delay time.Duration, payload string, cb scheduler.Callback) (scheduler.JobID, error)
	CancelAllFor(id session.Identity) int
}

// Observer receives dispatch metrics.
type Observer interface {
	Dispatched(flow, outcome string, elapsed time.Duration)
	Defect(code string)
	DeliveryFailed()
}

type noopObserver struct{}

func (noopObserver) Dispatched(string, string, time.Duration) {}
func (noopObserver) Defect(string)                            {}
func (noopObserver) DeliveryFailed()                          {}

// Engine dispatches events against the transition table.
//
// Thread-safety model:
//   - Dispatch/Handle: safe from any goroutine; per-identity serialisation
//     comes from the session store
//   - the table is read-only after construction
type Engine struct {
	table     *Table
	store     session.Store
	jobs      Jobs
	transport transport.Transport
	clock     clock.Clock
	tokens    idgen.Generator
	logger    *slog.Logger
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobs sets the scheduler. Without one, job requests and cancellation
// are ignored.
func WithJobs(j Jobs) Option {
	return func(e *Engine) { e.jobs = j }
}

// WithTransport sets the outbound transport used by Handle.
func WithTransport(t transport.Transport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithClock sets the time source for Input.Now.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTokens sets the correlation token generator.
func WithTokens(g idgen.Generator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// New creates an Engine over table and store.
func New(table *Table, store session.Store, opts ...Option) *Engine {
	e := &Engine{
		table:    table,
		store:    store,
		clock:    clock.Real(),
		tokens:   idgen.UUIDv7{},
		logger:   slog.Default(),
		observer: noopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the engine's transition table.
func (e *Engine) Table() *Table {
	return e.table
}

// stepResult carries what a dispatch decided inside the commit to the code
// running after it.
type stepResult struct {
	kind     OutcomeKind
	messages []transport.Message
	job      *JobRequest
	effects  []Effect
	cancel   bool
}

// Dispatch runs ev through the transition table and commits the result.
// It does not deliver messages; see Handle.
func (e *Engine) Dispatch(ctx context.Context, ev Event) Outcome {
	start := time.Now()
	if ev.Token == "" {
		ev.Token = e.tokens.Generate()
	}
	out := Outcome{Event: ev}

	if ev.Identity == "" {
		out.Kind = Aborted
		out.Err = session.ErrInvalidIdentity
		e.logger.Warn("dispatch without identity", "event", ev.String(), "token", ev.Token)
		return out
	}

	now := e.clock.Now()
	var step stepResult
	var before session.Session

	committed, err := e.store.Commit(ctx, ev.Identity, func(cur session.Session) (next session.Session, err error) {
		before = cur
		step = stepResult{}
		defer func() {
			if r := recover(); r != nil {
				err = Defect(ErrCodeHandlerPanic, "handler panicked: %v", r)
			}
		}()
		return e.step(ctx, cur, ev, now, &step)
	})

	out.Before = before
	out.Session = committed
	switch {
	case err == nil:
		out.Kind = Transitioned
		out.Messages = step.messages
	case errors.Is(err, session.ErrUnchanged):
		out.Kind = step.kind
		out.Messages = step.messages
	case errors.Is(err, session.ErrInvalidIdentity), ctx.Err() != nil:
		out.Kind = Aborted
		out.Err = err
	default:
		de := asDefect(err, before, ev)
		out.Kind = Aborted
		out.Err = de
		e.observer.Defect(string(de.Code))
		e.logger.Error("dispatch aborted",
			"code", de.Code,
			"identity", ev.Identity,
			"flow", before.Flow.String(),
			"state", before.State,
			"event", ev.String(),
			"token", ev.Token,
			"error", de.Message,
		)
	}

	if out.Kind == Transitioned {
		e.afterCommit(ctx, ev, step, &out)
	}

	e.observer.Dispatched(out.Session.Flow.String(), out.Kind.String(), time.Since(start))
	e.logger.Debug("dispatch",
		"identity", ev.Identity,
		"event", ev.String(),
		"token", ev.Token,
		"outcome", out.Kind.String(),
		"from", fmt.Sprintf("%s/%s", out.Before.Flow, out.Before.State),
		"to", fmt.Sprintf("%s/%s", out.Session.Flow, out.Session.State),
		"version", out.Session.Version,
	)
	return out
}

// afterCommit runs effects, cancels stale jobs and schedules requested
// ones. Runs without the session lock, once per committed dispatch.
func (e *Engine) afterCommit(ctx context.Context, ev Event, step stepResult, out *Outcome) {
	for i, fx := range step.effects {
		if err := fx(ctx); err != nil {
			de := asDefect(Defect(ErrCodeEffectFailed, "effect %d: %v", i, err), out.Session, ev)
			de.Cause = err
			out.Err = de
			e.observer.Defect(string(de.Code))
			e.logger.Error("effect failed",
				"identity", ev.Identity,
				"event", ev.String(),
				"token", ev.Token,
				"error", err,
			)
			break
		}
	}

	if e.jobs == nil {
		return
	}
	if step.cancel {
		out.Cancelled = e.jobs.CancelAllFor(ev.Identity)
	}
	if step.job == nil {
		return
	}
	ref := step.job.Ref
	fire := func(ctx context.Context, job scheduler.Job) error {
		return e.fireJob(ctx, job, ref)
	}
	id, err := e.jobs.ScheduleOnceAfter(ev.Identity, step.job.Delay, step.job.Payload, fire)
	if err != nil {
		e.logger.Error("schedule job failed",
			"identity", ev.Identity,
			"payload", step.job.Payload,
			"delay", step.job.Delay,
			"token", ev.Token,
			"error", err,
		)
		return
	}
	out.Job = id
}

// fireJob is the callback of every job the engine schedules. The firing
// goes through Handle like any other event, so it is serialised against
// user input for the same identity. A firing can still lose the race with
// the commit that cancels it; handlers compare Event.Ref with what the
// session expects to drop such stale firings.
func (e *Engine) fireJob(ctx context.Context, job scheduler.Job, ref string) error {
	ev := JobFired(job.Identity, job.Payload)
	ev.Ref = ref
	out := e.Handle(ctx, ev)
	if out.Kind == Aborted {
		return out.Err
	}
	return nil
}

// Handle dispatches ev and delivers the outcome's messages. Delivery
// failures are logged; the session has already been committed.
func (e *Engine) Handle(ctx context.Context, ev Event) Outcome {
	out := e.Dispatch(ctx, ev)
	if e.transport == nil {
		return out
	}
	for _, msg := range out.Messages {
		if err := transport.Deliver(ctx, e.transport, ev.Identity, msg); err != nil {
			e.observer.DeliveryFailed()
			e.logger.Warn("delivery failed",
				"identity", ev.Identity,
				"token", out.Event.Token,
				"edit", msg.Edit,
				"error", err,
			)
		}
	}
	return out
}

// step selects and runs the rule for ev. It runs inside the commit.
func (e *Engine) step(ctx context.Context, cur session.Session, ev Event, now time.Time, res *stepResult) (session.Session, error) {
	in := Input{Session: cur, Event: ev, Now: now}

	if ev.Kind == EventCommand {
		if entry, ok := e.table.entries[ev.Payload]; ok {
			return e.enter(ctx, entry, in, res)
		}
	}

	if !cur.IsIdle() {
		for _, r := range e.table.fallbacks[cur.Flow] {
			if r.matcher.Match(ev) {
				return e.run(ctx, r.handler, in, res)
			}
		}
		for _, r := range e.table.rules[ruleKey{cur.Flow, cur.State}] {
			if r.matcher.Match(ev) {
				return e.run(ctx, r.handler, in, res)
			}
		}
	}

	for _, r := range e.table.globals {
		if r.matcher.Match(ev) {
			result, err := r.handler(ctx, in)
			if err != nil {
				return cur, err
			}
			res.kind = Handled
			res.messages = result.Messages
			return cur, session.ErrUnchanged
		}
	}

	if !cur.IsIdle() && ev.Kind != EventJobFired {
		if h, ok := e.table.otherwise[ruleKey{cur.Flow, cur.State}]; ok {
			return e.run(ctx, h, in, res)
		}
	}

	res.kind = Dropped
	return cur, session.ErrUnchanged
}

// enter handles a flow's entry command.
func (e *Engine) enter(ctx context.Context, entry entryRule, in Input, res *stepResult) (session.Session, error) {
	cur := in.Session
	if !cur.IsIdle() && cur.Flow != entry.flow {
		res.kind = WrongFlow
		if e.table.wrongFlow != nil {
			result, err := e.table.wrongFlow(ctx, in)
			if err != nil {
				return cur, err
			}
			res.messages = result.Messages
		}
		return cur, session.ErrUnchanged
	}

	// Entering, or re-entering the same flow, starts from fresh scratch.
	in.Session = cur.Enter(entry.flow, entry.initial)
	next, err := e.run(ctx, entry.handler, in, res)
	if err == nil {
		res.cancel = true
	}
	return next, err
}

// run calls h and applies its result to in.Session.
func (e *Engine) run(ctx context.Context, h Handler, in Input, res *stepResult) (session.Session, error) {
	result, err := h(ctx, in)
	if err != nil {
		return in.Session, err
	}
	res.messages = result.Messages
	switch {
	case result.Drop:
		res.kind = Dropped
		res.messages = nil
		return in.Session, session.ErrUnchanged
	case result.Reject:
		res.kind = Rejected
		return in.Session, session.ErrUnchanged
	}
	if result.terminal() || result.CancelJobs {
		res.cancel = true
	}
	if result.Job != nil {
		job := *result.Job
		if job.Ref == "" {
			job.Ref = in.Event.Token
		}
		res.job = &job
	}
	res.effects = result.Effects
	return result.applyTo(in.Session), nil
}
