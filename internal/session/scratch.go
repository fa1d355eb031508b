package session

import "time"

// Scratch is the typed, flow-local working data of a session. Each flow has
// exactly one scratch type; Validate rejects a session whose scratch belongs
// to another flow.
type Scratch interface {
	Flow() Flow
}

// RegistrationScratch is collected while registering.
type RegistrationScratch struct {
	Subject string `json:"subject,omitempty"`
}

// Flow implements Scratch.
func (RegistrationScratch) Flow() Flow { return FlowRegistration }

// SupervisorScratch holds the task being drafted.
type SupervisorScratch struct {
	Title    string    `json:"title,omitempty"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Flow implements Scratch.
func (SupervisorScratch) Flow() Flow { return FlowSupervisor }

// ParticipantScratch holds the running focus session and the subject being
// browsed.
type ParticipantScratch struct {
	Task    string    `json:"task,omitempty"`
	Start   time.Time `json:"start,omitempty"`
	End     time.Time `json:"end,omitempty"`
	Minutes int       `json:"minutes,omitempty"`
	Subject string    `json:"subject,omitempty"`

	// Timer is the ref of the pending focus.end job.
	Timer string `json:"timer,omitempty"`
}

// Flow implements Scratch.
func (ParticipantScratch) Flow() Flow { return FlowParticipant }

// NewScratch returns the empty scratch of flow, or nil for FlowNone.
func NewScratch(flow Flow) Scratch {
	switch flow {
	case FlowRegistration:
		return RegistrationScratch{}
	case FlowSupervisor:
		return SupervisorScratch{}
	case FlowParticipant:
		return ParticipantScratch{}
	default:
		return nil
	}
}
