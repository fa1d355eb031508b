package session

import (
	"errors"
	"fmt"
	"time"
)

// Identity is the opaque, stable key of one end user.
type Identity string

// Flow names one of the top-level conversational procedures.
type Flow string

const (
	FlowNone         Flow = ""
	FlowRegistration Flow = "registration"
	FlowSupervisor   Flow = "supervisor"
	FlowParticipant  Flow = "participant"
)

// Flows lists the flows a session can be in, FlowNone excluded.
var Flows = []Flow{FlowRegistration, FlowSupervisor, FlowParticipant}

// Valid reports whether f is FlowNone or one of Flows.
func (f Flow) Valid() bool {
	if f == FlowNone {
		return true
	}
	for _, known := range Flows {
		if f == known {
			return true
		}
	}
	return false
}

// String returns "none" for FlowNone so log lines never carry empty values.
func (f Flow) String() string {
	if f == FlowNone {
		return "none"
	}
	return string(f)
}

// State is a named step within a flow's transition table.
type State string

// Idle is the universal state of a session that is in no flow.
const Idle State = "idle"

// FocusRecord is one completed focus session.
type FocusRecord struct {
	Task  string    `json:"task"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Session is the per-identity conversation record.
type Session struct {
	Identity Identity
	Flow     Flow
	State    State

	// Scratch is flow-local working data. Nil while idle.
	Scratch Scratch

	// History survives flow exit; only the participant flow writes it.
	History []FocusRecord

	// Version counts commits applied to this identity.
	Version   int64
	UpdatedAt time.Time
}

// ErrInvariant is wrapped by every session invariant violation.
var ErrInvariant = errors.New("session invariant violated")

// New returns the idle session for id.
func New(id Identity) Session {
	return Session{Identity: id, Flow: FlowNone, State: Idle}
}

// IsIdle reports whether the session is in no flow.
func (s Session) IsIdle() bool {
	return s.Flow == FlowNone
}

// Enter returns s moved into flow at state with fresh scratch.
func (s Session) Enter(flow Flow, state State) Session {
	s.Flow = flow
	s.State = state
	s.Scratch = NewScratch(flow)
	return s
}

// Exit returns s moved to the idle terminal state. Scratch is cleared;
// History is kept.
func (s Session) Exit() Session {
	s.Flow = FlowNone
	s.State = Idle
	s.Scratch = nil
	return s
}

// Clone returns a copy that shares no mutable memory with s.
func (s Session) Clone() Session {
	if s.History != nil {
		h := make([]FocusRecord, len(s.History))
		copy(h, s.History)
		s.History = h
	}
	return s
}

// Validate checks the session invariants.
func (s Session) Validate() error {
	if s.Identity == "" {
		return fmt.Errorf("%w: empty identity", ErrInvariant)
	}
	if !s.Flow.Valid() {
		return fmt.Errorf("%w: unknown flow %q", ErrInvariant, s.Flow)
	}
	if s.State == "" {
		return fmt.Errorf("%w: empty state", ErrInvariant)
	}
	if (s.Flow == FlowNone) != (s.State == Idle) {
		return fmt.Errorf("%w: flow %s with state %s", ErrInvariant, s.Flow, s.State)
	}
	if s.Flow == FlowNone {
		if s.Scratch != nil {
			return fmt.Errorf("%w: idle session carries %s scratch", ErrInvariant, s.Scratch.Flow())
		}
		return nil
	}
	if s.Scratch == nil {
		return fmt.Errorf("%w: %s session without scratch", ErrInvariant, s.Flow)
	}
	if s.Scratch.Flow() != s.Flow {
		return fmt.Errorf("%w: %s session carries %s scratch", ErrInvariant, s.Flow, s.Scratch.Flow())
	}
	return nil
}
