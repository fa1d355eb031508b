package engine

import (
	"fmt"

	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// EventKind distinguishes the inbound event kinds.
type EventKind int

const (
	// EventCommand is a slash command; Payload is the name without "/".
	EventCommand EventKind = iota + 1
	// EventText is free text.
	EventText
	// EventButton is a button press; Payload is the button data.
	EventButton
	// EventJobFired is a scheduled job firing; Payload is the job payload.
	EventJobFired
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventButton:
		return "button"
	case EventJobFired:
		return "job"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is the unit of input to Dispatch.
type Event struct {
	Kind     EventKind
	Identity session.Identity
	Payload  string

	// Name is the sender's display name, if known.
	Name string

	// Token correlates log lines of one dispatch. Generated if empty.
	Token string

	// Ref is the JobRequest.Ref of a firing job.
	Ref string
}

func (e Event) String() string {
	switch e.Kind {
	case EventCommand:
		return "/" + e.Payload
	case EventButton:
		return "!" + e.Payload
	case EventJobFired:
		return "job:" + e.Payload
	default:
		return fmt.Sprintf("%q", e.Payload)
	}
}

// Command builds a command event.
func Command(id session.Identity, name string) Event {
	return Event{Kind: EventCommand, Identity: id, Payload: name}
}

// Text builds a free-text event.
func Text(id session.Identity, text string) Event {
	return Event{Kind: EventText, Identity: id, Payload: text}
}

// Button builds a button-press event.
func Button(id session.Identity, data string) Event {
	return Event{Kind: EventButton, Identity: id, Payload: data}
}

// JobFired builds a job firing event.
func JobFired(id session.Identity, payload string) Event {
	return Event{Kind: EventJobFired, Identity: id, Payload: payload}
}

// FromUpdate converts a transport update into an Event.
func FromUpdate(u transport.Update) (Event, error) {
	ev := Event{Identity: u.Identity, Payload: u.Data, Name: u.Name}
	switch u.Kind {
	case transport.UpdateCommand:
		ev.Kind = EventCommand
	case transport.UpdateText:
		ev.Kind = EventText
	case transport.UpdateButton:
		ev.Kind = EventButton
	default:
		return Event{}, fmt.Errorf("unknown update kind %d", u.Kind)
	}
	return ev, nil
}
