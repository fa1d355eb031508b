package bot

import (
	"context"
	"fmt"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/textutil"
	"github.com/roach88/studybot/internal/transport"
)

func (b *Bot) registrationRules(tb *engine.TableBuilder) {
	f := session.FlowRegistration
	tb.Entry(f, CmdStart, RegRole, b.start).
		Fallback(f, cancelMatcher(), b.cancel).
		Register(f, RegRole, engine.OnButton(btnRegSupervisor), b.askSubject).
		Register(f, RegRole, engine.OnButton(btnRegParticipant), b.askParticipantConfirm).
		Otherwise(f, RegRole, stay(rolePrompt())).
		Register(f, RegSubject, engine.OnText(), b.askSupervisorConfirm).
		Otherwise(f, RegSubject, stay(transport.Text(textSubject))).
		Register(f, RegSupervisorConfirm, engine.OnButton(btnSupervisorConfirm), b.registerSupervisor).
		Register(f, RegSupervisorConfirm, engine.OnButton(btnNotConfirmed), b.backToRole).
		Otherwise(f, RegSupervisorConfirm, b.repeatSupervisorConfirm).
		Register(f, RegParticipantConfirm, engine.OnButton(btnParticipantConfirm), b.registerParticipant).
		Register(f, RegParticipantConfirm, engine.OnButton(btnNotConfirmed), b.backToRole).
		Otherwise(f, RegParticipantConfirm, stay(confirmParticipant()))
}

// start refuses registered users and records new ones.
func (b *Bot) start(ctx context.Context, in engine.Input) (engine.Result, error) {
	u, found, err := b.dir.FindUser(ctx, in.Event.Identity)
	if err != nil {
		return engine.Result{}, err
	}
	if found && u.Registered() {
		return engine.Reject(transport.Text(alreadyRegistered(u.Role))), nil
	}
	id, name := in.Event.Identity, in.Event.Name
	return engine.Stay(rolePrompt()).WithEffect(func(ctx context.Context) error {
		return b.dir.Touch(ctx, id, name)
	}), nil
}

func (b *Bot) askSubject(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(RegSubject, reply(in, transport.Text(textSubject))), nil
}

func (b *Bot) askParticipantConfirm(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(RegParticipantConfirm, reply(in, confirmParticipant())), nil
}

func (b *Bot) askSupervisorConfirm(_ context.Context, in engine.Input) (engine.Result, error) {
	subject := textutil.Capitalize(in.Event.Payload)
	if subject == "" {
		return engine.Stay(transport.Text(textSubject)), nil
	}
	return engine.Goto(RegSupervisorConfirm, confirmSupervisor(subject)).
		WithScratch(session.RegistrationScratch{Subject: subject}), nil
}

func (b *Bot) repeatSupervisorConfirm(_ context.Context, in engine.Input) (engine.Result, error) {
	sc, err := engine.ScratchAs[session.RegistrationScratch](in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Subject == "" {
		return engine.Result{}, engine.MissingScratch("subject")
	}
	return engine.Stay(confirmSupervisor(sc.Subject)), nil
}

func (b *Bot) backToRole(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(RegRole, reply(in, rolePrompt())).
		WithScratch(session.RegistrationScratch{}), nil
}

func (b *Bot) registerSupervisor(ctx context.Context, in engine.Input) (engine.Result, error) {
	sc, err := engine.ScratchAs[session.RegistrationScratch](in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Subject == "" {
		return engine.Result{}, engine.MissingScratch("subject")
	}
	return b.register(ctx, in, roster.RoleSupervisor, sc.Subject, registeredSupervisor(sc.Subject))
}

func (b *Bot) registerParticipant(ctx context.Context, in engine.Input) (engine.Result, error) {
	return b.register(ctx, in, roster.RoleParticipant, "", textRegisteredParticipant)
}

// register checks the roster and leaves the write to an effect. A user
// registered elsewhere between the check and the effect makes the effect
// fail with ErrAlreadyRegistered.
func (b *Bot) register(ctx context.Context, in engine.Input, role roster.Role, subject, done string) (engine.Result, error) {
	id := in.Event.Identity
	u, found, err := b.dir.FindUser(ctx, id)
	switch {
	case err != nil:
		return engine.Result{}, err
	case !found:
		return engine.Result{}, fmt.Errorf("register %s: %w", id, roster.ErrUnknownUser)
	case u.Registered():
		return engine.End(reply(in, transport.Text(alreadyRegistered(u.Role)))), nil
	}
	return engine.End(reply(in, transport.Text(done))).WithEffect(func(ctx context.Context) error {
		u, err := b.dir.Register(ctx, id, role, subject)
		if err != nil {
			return err
		}
		b.logger.Info("user registered",
			"identity", id,
			"role", u.Role.String(),
			"subject", u.Subject,
		)
		return nil
	}), nil
}
