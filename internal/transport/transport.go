// Package transport is the boundary between the conversation engine and a
// chat platform: outbound messages with button keyboards, and inbound
// updates normalised from platform input.
package transport

//go:generate mockgen -source=transport.go -destination=mocks/mocks.go -package=mocks Transport

import (
	"context"

	"github.com/roach88/studybot/internal/session"
)

// Button is one inline keyboard button. Data comes back as the payload of a
// button-press update.
type Button struct {
	Text string
	Data string
}

// Message is a rendered bot message.
type Message struct {
	Text    string
	Buttons [][]Button

	// Edit replaces the last message sent to the identity instead of
	// sending a new one.
	Edit bool
}

// Text returns a plain message.
func Text(text string) Message {
	return Message{Text: text}
}

// WithButtons returns a message with one keyboard row per argument.
func WithButtons(text string, rows ...[]Button) Message {
	return Message{Text: text, Buttons: rows}
}

// Row groups buttons on one keyboard line.
func Row(buttons ...Button) []Button {
	return buttons
}

// Btn is shorthand for a Button.
func Btn(text, data string) Button {
	return Button{Text: text, Data: data}
}

// AsEdit returns m marked as an edit of the previous message.
func (m Message) AsEdit() Message {
	m.Edit = true
	return m
}

// Transport delivers messages to end users. Implementations may block on
// network I/O; the engine only calls them after a session commit.
type Transport interface {
	Send(ctx context.Context, id session.Identity, msg Message) error
	EditLast(ctx context.Context, id session.Identity, msg Message) error
}

// Deliver sends msg through t, as an edit when msg.Edit is set.
func Deliver(ctx context.Context, t Transport, id session.Identity, msg Message) error {
	if msg.Edit {
		return t.EditLast(ctx, id, msg)
	}
	return t.Send(ctx, id, msg)
}

// UpdateKind classifies an inbound update.
type UpdateKind int

const (
	UpdateCommand UpdateKind = iota + 1
	UpdateText
	UpdateButton
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateCommand:
		return "command"
	case UpdateText:
		return "text"
	case UpdateButton:
		return "button"
	default:
		return "unknown"
	}
}

// Update is platform input normalised to identity, kind and data. For
// commands Data is the command name without the leading slash.
type Update struct {
	Identity session.Identity
	Kind     UpdateKind
	Data     string

	// Name is the sender's display name, if the platform provides one.
	Name string
}
