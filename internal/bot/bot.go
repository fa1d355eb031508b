package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// DefaultMaxFocusMinutes caps a focus session.
const DefaultMaxFocusMinutes = 180

// Bot holds the handlers' collaborators.
type Bot struct {
	dir        *roster.Directory
	loc        *time.Location
	maxMinutes int
	clock      clock.Clock
	logger     *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithMaxFocusMinutes sets the longest focus session a participant may
// start. Values below 1 are ignored.
func WithMaxFocusMinutes(n int) Option {
	return func(b *Bot) {
		if n >= 1 {
			b.maxMinutes = n
		}
	}
}

// WithClock sets the time source of the maintenance sweep. Handlers use
// the dispatch time from engine.Input instead.
func WithClock(c clock.Clock) Option {
	return func(b *Bot) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a Bot over dir. Dates and times are shown in dir's location.
func New(dir *roster.Directory, opts ...Option) *Bot {
	b := &Bot{
		dir:        dir,
		loc:        dir.Location(),
		maxMinutes: DefaultMaxFocusMinutes,
		clock:      clock.Real(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Table builds the transition table of all three flows.
func (b *Bot) Table() (*engine.Table, error) {
	tb := engine.NewTableBuilder()
	b.registrationRules(tb)
	b.supervisorRules(tb)
	b.participantRules(tb)

	tb.Global(engine.OnCommand(CmdHelp), func(context.Context, engine.Input) (engine.Result, error) {
		return engine.Stay(transport.Text(textHelp)), nil
	})
	// Only reached while idle: every flow has its own cancel fallback.
	tb.Global(cancelMatcher(), b.cancel)
	tb.WrongFlow(func(_ context.Context, in engine.Input) (engine.Result, error) {
		return engine.Reject(transport.Text(wrongFlow(in.Session.Flow))), nil
	})

	t, err := tb.Build()
	if err != nil {
		return nil, fmt.Errorf("bot table: %w", err)
	}
	return t, nil
}

func cancelMatcher() engine.Matcher {
	return engine.AnyOf(engine.OnCommand(CmdCancel), engine.OnButton(btnCancel))
}

// cancel ends whatever flow is active.
func (b *Bot) cancel(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.End(reply(in, transport.Text(textGoodbye))), nil
}

// reply turns msg into an edit of the keyboard message when the event is a
// button press on it.
func reply(in engine.Input, msg transport.Message) transport.Message {
	if in.Event.Kind == engine.EventButton {
		return msg.AsEdit()
	}
	return msg
}

// stay returns a handler that repeats msg without changing state.
func stay(msg transport.Message) engine.Handler {
	return func(context.Context, engine.Input) (engine.Result, error) {
		return engine.Stay(msg), nil
	}
}

// checkRole returns the user if they hold want, or a refusal text.
func (b *Bot) checkRole(ctx context.Context, id session.Identity, want roster.Role) (roster.User, string, error) {
	u, _, err := b.dir.FindUser(ctx, id)
	if err != nil {
		return roster.User{}, "", err
	}
	switch u.Role {
	case want:
		return u, "", nil
	case roster.RoleNone:
		return u, textNotReg, nil
	default:
		return u, wrongRole(u.Role), nil
	}
}

// today returns midnight of in.Now in the bot's location.
func (b *Bot) today(now time.Time) time.Time {
	return roster.DateOf(now, b.loc)
}
