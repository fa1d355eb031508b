package bot

import (
	"context"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/textutil"
	"github.com/roach88/studybot/internal/transport"
)

func (b *Bot) supervisorRules(tb *engine.TableBuilder) {
	f := session.FlowSupervisor
	tb.Entry(f, CmdSupervisor, SupMenu, b.supervisorEnter).
		Fallback(f, cancelMatcher(), b.cancel).
		Register(f, SupMenu, engine.OnButton(btnAddTask), b.askTitle).
		Register(f, SupMenu, engine.OnButton(btnViewTasks), b.viewOwnTasks).
		Otherwise(f, SupMenu, stay(supervisorMenu(""))).
		Register(f, SupTitle, engine.OnText(), b.askDeadline).
		Otherwise(f, SupTitle, stay(transport.Text(textTitlePrompt))).
		Register(f, SupDeadline, engine.OnText(), b.checkDeadline).
		Otherwise(f, SupDeadline, stay(transport.Text(textDeadline))).
		Register(f, SupConfirm, engine.OnButton(btnConfirmTask), b.saveTask).
		Register(f, SupConfirm, engine.OnButton(btnSupervisorMenu), b.supervisorBack).
		Otherwise(f, SupConfirm, b.repeatTaskConfirm).
		Register(f, SupViewing, engine.OnButton(btnSupervisorMenu), b.supervisorBack).
		Otherwise(f, SupViewing, b.viewOwnTasks)
}

func (b *Bot) supervisorEnter(ctx context.Context, in engine.Input) (engine.Result, error) {
	_, refusal, err := b.checkRole(ctx, in.Event.Identity, roster.RoleSupervisor)
	if err != nil {
		return engine.Result{}, err
	}
	if refusal != "" {
		return engine.Reject(transport.Text(refusal)), nil
	}
	return engine.Stay(supervisorMenu("")), nil
}

func (b *Bot) supervisorBack(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(SupMenu, reply(in, supervisorMenu(""))).
		WithScratch(session.SupervisorScratch{}), nil
}

func (b *Bot) askTitle(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(SupTitle, reply(in, transport.Text(textTitlePrompt))), nil
}

func (b *Bot) askDeadline(_ context.Context, in engine.Input) (engine.Result, error) {
	title := textutil.StripCommas(in.Event.Payload)
	if title == "" {
		return engine.Stay(transport.Text(textTitlePrompt)), nil
	}
	return engine.Goto(SupDeadline, transport.Text(textDeadline)).
		WithScratch(session.SupervisorScratch{Title: title}), nil
}

// checkDeadline validates the deadline. Bad input loops back to the same
// prompt.
func (b *Bot) checkDeadline(_ context.Context, in engine.Input) (engine.Result, error) {
	sc, err := engine.ScratchAs[session.SupervisorScratch](in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Title == "" {
		return engine.Result{}, engine.MissingScratch("title")
	}

	deadline, err := ParseDeadline(in.Event.Payload, in.Now, b.loc)
	if err != nil {
		return engine.Stay(transport.Text(textNotUnderstood + textDeadline)), nil
	}
	if deadline.Before(b.today(in.Now)) {
		return engine.Stay(transport.Text(textPast + textDeadline)), nil
	}

	sc.Deadline = deadline
	return engine.Goto(SupConfirm, confirmTask(sc.Title, deadline)).WithScratch(sc), nil
}

func (b *Bot) repeatTaskConfirm(_ context.Context, in engine.Input) (engine.Result, error) {
	sc, err := draftTask(in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	return engine.Stay(confirmTask(sc.Title, sc.Deadline.In(b.loc))), nil
}

func (b *Bot) saveTask(ctx context.Context, in engine.Input) (engine.Result, error) {
	sc, err := draftTask(in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	u, refusal, err := b.checkRole(ctx, in.Event.Identity, roster.RoleSupervisor)
	if err != nil {
		return engine.Result{}, err
	}
	if refusal != "" {
		return engine.End(reply(in, transport.Text(refusal))), nil
	}

	task := roster.Task{Subject: u.Subject, Title: sc.Title, Deadline: sc.Deadline}
	id := in.Event.Identity
	return engine.Goto(SupMenu, reply(in, supervisorMenu("Task added!\n\n"))).
		WithScratch(session.SupervisorScratch{}).
		WithEffect(func(ctx context.Context) error {
			if err := b.dir.AddTask(ctx, task); err != nil {
				return err
			}
			b.logger.Info("task added",
				"identity", id,
				"subject", task.Subject,
				"title", task.Title,
				"deadline", task.Deadline.Format("2006-01-02"),
			)
			return nil
		}), nil
}

func (b *Bot) viewOwnTasks(ctx context.Context, in engine.Input) (engine.Result, error) {
	u, _, err := b.dir.FindUser(ctx, in.Event.Identity)
	if err != nil {
		return engine.Result{}, err
	}
	tasks, err := b.dir.TasksFor(ctx, u.Subject)
	if err != nil {
		return engine.Result{}, err
	}
	msg := transport.WithButtons(taskList(u.Subject, b.localTasks(tasks)),
		transport.Row(transport.Btn("Return to Supervisor Main Menu", btnSupervisorMenu)),
	)
	return engine.Goto(SupViewing, reply(in, msg)), nil
}

// draftTask returns the task being drafted, which must be complete.
func draftTask(s session.Session) (session.SupervisorScratch, error) {
	sc, err := engine.ScratchAs[session.SupervisorScratch](s)
	if err != nil {
		return sc, err
	}
	if sc.Title == "" {
		return sc, engine.MissingScratch("title")
	}
	if sc.Deadline.IsZero() {
		return sc, engine.MissingScratch("deadline")
	}
	return sc, nil
}

func (b *Bot) localTasks(tasks []roster.Task) []roster.Task {
	out := make([]roster.Task, len(tasks))
	for i, t := range tasks {
		t.Deadline = t.Deadline.In(b.loc)
		out[i] = t
	}
	return out
}
