package engine

import (
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// OutcomeKind classifies a dispatch.
type OutcomeKind int

const (
	// Transitioned: a rule ran and its result was committed. Self-loops
	// (re-prompts) are transitions too.
	Transitioned OutcomeKind = iota + 1
	// Rejected: a handler refused the event; the session is unchanged.
	Rejected
	// WrongFlow: an entry command arrived while another flow was active.
	WrongFlow
	// Dropped: nothing matched.
	Dropped
	// Aborted: a defect stopped the dispatch; the session is unchanged.
	Aborted
	// Handled: a global rule replied; the session is unchanged.
	Handled
)

func (k OutcomeKind) String() string {
	switch k {
	case Transitioned:
		return "transitioned"
	case Rejected:
		return "rejected"
	case WrongFlow:
		return "wrong_flow"
	case Dropped:
		return "dropped"
	case Aborted:
		return "aborted"
	case Handled:
		return "handled"
	default:
		return "unknown"
	}
}

// Outcome is the result of one dispatch.
type Outcome struct {
	Kind  OutcomeKind
	Event Event

	// Before is the session the dispatch started from; Session is the
	// stored session afterwards.
	Before  session.Session
	Session session.Session

	Messages []transport.Message

	// Job is set when the dispatch scheduled a job.
	Job scheduler.JobID

	// Cancelled counts jobs cancelled after the commit.
	Cancelled int

	// Err is set for Aborted outcomes; defects are *DefectError.
	Err error
}

// Refused reports whether the event was turned away with the session left
// as it was: an eligibility rejection or a wrong-flow entry.
func (o Outcome) Refused() bool {
	return o.Kind == Rejected || o.Kind == WrongFlow
}

// Committed reports whether the session was written.
func (o Outcome) Committed() bool {
	return o.Kind == Transitioned
}
