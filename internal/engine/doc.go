// Package engine implements the conversation state machine.
//
// The engine receives normalised inbound events (commands, free text,
// button presses) and job firings, looks up the identity's session, selects
// the first matching rule of the transition table and commits the handler's
// result onto the session.
//
// ARCHITECTURE:
//
// Transition Table:
// Built once at start-up with TableBuilder and immutable afterwards, so it
// is read without locks. Rules are evaluated in declaration order; the
// first matching rule wins.
//
// Dispatch Flow:
//  1. Entry command of a flow: begin the flow if the session is idle (or
//     restart it if already in that flow); report "wrong flow" if the
//     session is in another flow.
//  2. Flow-level fallbacks (cancel) are checked before state rules.
//  3. State rules for (flow, state), in declaration order.
//  4. Global rules (help), then the state's Otherwise re-prompt.
//  5. Nothing matched: the event is dropped.
//
// Rule matching and the handler run inside session.Store.Commit, so a job
// firing and a user message for the same identity are strictly ordered.
// Everything slow (transport delivery, scheduling, cancellation) happens
// after the commit returns, as do the handler's effects: a store may run
// the mutate function more than once, the effects of a dispatch run once.
//
// Job firings carry Event.Ref, the ref of the job request that scheduled
// them, so a handler can tell a firing for the current timer from one left
// over by an earlier one.
//
// Input validation never surfaces as an error: handlers re-prompt and stay
// in the same state. Structural defects (a handler reached with scratch it
// does not expect, a handler panic) abort only that dispatch, are logged,
// and leave the session as it was.
//
// Inbound Path:
// Runner shards events over a small worker pool by identity hash. Each
// worker drains its own FIFO queue, so per-identity arrival order is kept
// while different identities proceed concurrently.
package engine
