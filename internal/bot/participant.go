package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/textutil"
	"github.com/roach88/studybot/internal/transport"
)

func (b *Bot) participantRules(tb *engine.TableBuilder) {
	f := session.FlowParticipant
	tb.Entry(f, CmdParticipant, PartMenu, b.participantEnter).
		Fallback(f, cancelMatcher(), b.cancel).
		Register(f, PartMenu, engine.OnButton(btnFocus), b.askFocusName).
		Register(f, PartMenu, engine.OnButton(btnTasks), b.pickSubject).
		Register(f, PartMenu, engine.OnButton(btnCompleted), b.showHistory).
		Otherwise(f, PartMenu, stay(participantMenu(""))).
		Register(f, FocusName, engine.OnText(), b.askDuration).
		Otherwise(f, FocusName, stay(transport.Text(textFocusName))).
		Register(f, FocusDuration, engine.OnTextMatching(`^[-0-9]+$`), b.startFocus).
		Otherwise(f, FocusDuration, stay(transport.Text(durationPrompt(b.maxMinutes)))).
		Register(f, FocusRunning, engine.OnJob(JobFocusEnd), b.endFocus).
		Register(f, FocusRunning, engine.OnButton(btnParticipantMenu), b.leaveFocus).
		Otherwise(f, FocusRunning, b.remindFocus).
		Register(f, PartCompleted, engine.OnButton(btnClearHistory), b.clearHistory).
		Register(f, PartCompleted, engine.OnButton(btnParticipantMenu), b.participantBack).
		Otherwise(f, PartCompleted, b.showHistory).
		Register(f, PartSubjects, engine.OnButton(btnParticipantMenu), b.participantBack).
		Register(f, PartSubjects, engine.OnButton(`.+`), b.viewSubject).
		Otherwise(f, PartSubjects, b.pickSubject).
		Register(f, PartViewing, engine.OnButton(btnBackSubjects), b.pickSubject).
		Otherwise(f, PartViewing, b.repeatSubject)
}

func (b *Bot) participantEnter(ctx context.Context, in engine.Input) (engine.Result, error) {
	_, refusal, err := b.checkRole(ctx, in.Event.Identity, roster.RoleParticipant)
	if err != nil {
		return engine.Result{}, err
	}
	if refusal != "" {
		return engine.Reject(transport.Text(refusal)), nil
	}
	return engine.Stay(participantMenu("")), nil
}

func (b *Bot) participantBack(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(PartMenu, reply(in, participantMenu(""))).
		WithScratch(session.ParticipantScratch{}), nil
}

func (b *Bot) askFocusName(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(FocusName, reply(in, transport.Text(textFocusName))), nil
}

func (b *Bot) askDuration(_ context.Context, in engine.Input) (engine.Result, error) {
	task := textutil.Capitalize(in.Event.Payload)
	if task == "" {
		return engine.Stay(transport.Text(textFocusName)), nil
	}
	return engine.Goto(FocusDuration, transport.Text(durationPrompt(b.maxMinutes))).
		WithScratch(session.ParticipantScratch{Task: task}), nil
}

// startFocus validates the duration and schedules the end of the session.
func (b *Bot) startFocus(_ context.Context, in engine.Input) (engine.Result, error) {
	prompt := durationPrompt(b.maxMinutes)
	minutes, err := strconv.Atoi(strings.TrimSpace(in.Event.Payload))
	switch {
	case err != nil:
		return engine.Stay(transport.Text(prompt)), nil
	case minutes < 1:
		return engine.Stay(transport.Text("Positive duration please!\n" + prompt)), nil
	case minutes > b.maxMinutes:
		return engine.Stay(transport.Text(fmt.Sprintf("Please choose a duration less than %d minutes!\n%s", b.maxMinutes, prompt))), nil
	}

	sc, err := engine.ScratchAs[session.ParticipantScratch](in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Task == "" {
		return engine.Result{}, engine.MissingScratch("task")
	}

	d := time.Duration(minutes) * time.Minute
	sc.Minutes = minutes
	sc.Start = in.Now
	sc.End = in.Now.Add(d)
	sc.Timer = in.Event.Token
	msg := transport.Text(focusStarted(sc.Task, minutes, sc.End.In(b.loc)))
	return engine.Goto(FocusRunning, msg).WithScratch(sc).WithJob(d, JobFocusEnd), nil
}

// endFocus runs when the focus timer fires. The session stays where it is;
// the participant leaves with the Back to Menu button. A firing whose ref
// is not the running session's timer belongs to a session already left
// and is dropped.
func (b *Bot) endFocus(_ context.Context, in engine.Input) (engine.Result, error) {
	sc, err := runningFocus(in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Timer == "" || in.Event.Ref != sc.Timer {
		return engine.Ignore(), nil
	}
	h := make([]session.FocusRecord, 0, len(in.Session.History)+1)
	h = append(h, in.Session.History...)
	h = append(h, session.FocusRecord{Task: sc.Task, Start: sc.Start, End: sc.End})
	sc.Timer = ""
	return engine.Stay(focusDone()).WithScratch(sc).WithHistory(h), nil
}

// leaveFocus returns to the menu. A session left early is not recorded and
// its timer is cancelled.
func (b *Bot) leaveFocus(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(PartMenu, reply(in, participantMenu(""))).
		WithScratch(session.ParticipantScratch{}).
		WithCancel(), nil
}

func (b *Bot) remindFocus(_ context.Context, in engine.Input) (engine.Result, error) {
	sc, err := runningFocus(in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if !in.Now.Before(sc.End) {
		return engine.Stay(focusDone()), nil
	}
	return engine.Stay(transport.Text(focusReminder(sc.Task, sc.End.In(b.loc)))), nil
}

func (b *Bot) showHistory(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(PartCompleted, reply(in, history(in.Session.History, b.loc))), nil
}

func (b *Bot) clearHistory(_ context.Context, in engine.Input) (engine.Result, error) {
	return engine.Goto(PartMenu, reply(in, participantMenu("History Cleared!\n\n"))).
		WithScratch(session.ParticipantScratch{}).
		WithHistory(nil), nil
}

func (b *Bot) pickSubject(ctx context.Context, in engine.Input) (engine.Result, error) {
	subjects, err := b.dir.Subjects(ctx)
	if err != nil {
		return engine.Result{}, err
	}
	return engine.Goto(PartSubjects, reply(in, subjectPicker(subjects))).
		WithScratch(session.ParticipantScratch{}), nil
}

func (b *Bot) viewSubject(ctx context.Context, in engine.Input) (engine.Result, error) {
	return b.showSubject(ctx, in, in.Event.Payload)
}

func (b *Bot) repeatSubject(ctx context.Context, in engine.Input) (engine.Result, error) {
	sc, err := engine.ScratchAs[session.ParticipantScratch](in.Session)
	if err != nil {
		return engine.Result{}, err
	}
	if sc.Subject == "" {
		return engine.Result{}, engine.MissingScratch("subject")
	}
	return b.showSubject(ctx, in, sc.Subject)
}

func (b *Bot) showSubject(ctx context.Context, in engine.Input, subject string) (engine.Result, error) {
	tasks, err := b.dir.TasksFor(ctx, subject)
	if err != nil {
		return engine.Result{}, err
	}
	label := textutil.Capitalize(subject)
	if len(tasks) > 0 {
		label = tasks[0].Subject
	}
	return engine.Goto(PartViewing, reply(in, subjectTasks(label, b.localTasks(tasks)))).
		WithScratch(session.ParticipantScratch{Subject: label}), nil
}

// runningFocus returns the focus session in progress.
func runningFocus(s session.Session) (session.ParticipantScratch, error) {
	sc, err := engine.ScratchAs[session.ParticipantScratch](s)
	if err != nil {
		return sc, err
	}
	switch {
	case sc.Task == "":
		return sc, engine.MissingScratch("task")
	case sc.End.IsZero():
		return sc, engine.MissingScratch("end")
	}
	return sc, nil
}
