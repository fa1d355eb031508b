package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	// Scenarios name IANA zones; do not depend on the host's zoneinfo.
	_ "time/tzdata"

	"github.com/roach88/studybot/internal/bot"
	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/idgen"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// Harness is one scenario run: the bot wired to in-memory stores, a fake
// clock and a recording transport.
type Harness struct {
	bot       *bot.Bot
	engine    *engine.Engine
	dir       *roster.Directory
	sessions  *session.MemoryStore
	sched     *scheduler.Scheduler
	clock     *clock.FakeClock
	transport *transport.Recorder
	logger    *slog.Logger
}

// Option configures a run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sends the run's logs to l. By default they are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh roster and session store. Expect
// clauses and assertions that fail are reported in Result.Errors; the
// returned error is reserved for scenarios that cannot be set up.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	h, err := setup(ctx, scenario, o.logger)
	if err != nil {
		return nil, err
	}
	defer h.sched.Stop()

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// setup seeds the roster and wires the bot.
func setup(ctx context.Context, scenario *Scenario, logger *slog.Logger) (*Harness, error) {
	loc, err := scenario.location()
	if err != nil {
		return nil, err
	}
	start, err := scenario.startTime(loc)
	if err != nil {
		return nil, err
	}

	users := make([]roster.User, len(scenario.Users))
	for i, u := range scenario.Users {
		users[i] = roster.User{
			Identity: session.Identity(u.Identity),
			Name:     u.Name,
			Role:     roster.Role(u.Role),
			Subject:  u.Subject,
		}
	}
	tasks := make([]roster.Task, len(scenario.Tasks))
	for i, t := range scenario.Tasks {
		deadline, err := time.ParseInLocation(DeadlineLayout, t.Deadline, loc)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i, err)
		}
		tasks[i] = roster.Task{Subject: t.Subject, Title: t.Title, Deadline: deadline}
	}

	clk := clock.Fake(start)
	dir := roster.NewDirectory(roster.NewMemory(users, tasks), loc)

	botOpts := []bot.Option{bot.WithClock(clk), bot.WithLogger(logger)}
	if scenario.MaxFocusMinutes > 0 {
		botOpts = append(botOpts, bot.WithMaxFocusMinutes(scenario.MaxFocusMinutes))
	}
	b := bot.New(dir, botOpts...)
	table, err := b.Table()
	if err != nil {
		return nil, err
	}

	sessions := session.NewMemoryStore(session.WithClock(clk))
	sched := scheduler.New(
		scheduler.WithClock(clk),
		scheduler.WithIDs(idgen.NewSequential("job")),
		scheduler.WithLogger(logger),
	)
	rec := transport.NewRecorder()
	eng := engine.New(table, sessions,
		engine.WithJobs(sched),
		engine.WithTransport(rec),
		engine.WithClock(clk),
		engine.WithTokens(idgen.NewSequential("tok")),
		engine.WithLogger(logger),
	)

	if scenario.Maintenance != "" {
		at, err := parseTimeOfDay(scenario.Maintenance)
		if err != nil {
			return nil, err
		}
		if _, err := b.ScheduleMaintenance(sched, at); err != nil {
			return nil, err
		}
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}

	return &Harness{
		bot:       b,
		engine:    eng,
		dir:       dir,
		sessions:  sessions,
		sched:     sched,
		clock:     clk,
		transport: rec,
		logger:    logger,
	}, nil
}

// executeStep plays one step and records what the bot sent.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) error {
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return err
		}
		// Due jobs fire synchronously inside Advance.
		h.clock.Advance(d)
		result.Transcript = append(result.Transcript, h.exchange("~ advance "+d.String(), ""))
		return nil
	}

	id := session.Identity(step.User)
	var ev engine.Event
	var input string
	switch {
	case step.Command != "":
		ev, input = engine.Command(id, step.Command), "/"+step.Command
	case step.Text != "":
		ev, input = engine.Text(id, step.Text), step.Text
	case step.Button != "":
		ev, input = engine.Button(id, step.Button), "!"+step.Button
	default:
		return fmt.Errorf("empty step")
	}
	ev.Name = step.User

	out := h.engine.Handle(ctx, ev)
	ex := h.exchange(
		fmt.Sprintf("> %s %s", step.User, input),
		fmt.Sprintf("%s %s/%s", out.Kind, out.Session.Flow, out.Session.State),
	)
	result.Transcript = append(result.Transcript, ex)

	h.logger.Debug("scenario step",
		"step", index,
		"identity", id,
		"event", ev.String(),
		"outcome", out.Kind.String(),
	)

	if out.Kind == engine.Aborted {
		result.AddError(fmt.Sprintf("steps[%d]: dispatch aborted: %v", index, out.Err))
	}
	if step.Expect != nil {
		if err := checkExpect(index, *step.Expect, out, ex); err != nil {
			result.AddError(err.Error())
		}
	}
	return nil
}

// exchange drains the recorder into a transcript entry.
func (h *Harness) exchange(input, outcome string) Exchange {
	ex := Exchange{Input: input, Outcome: outcome, Deliveries: h.transport.Drain()}
	for _, d := range ex.Deliveries {
		marker := ""
		if d.Edit {
			marker = "(edit) "
		}
		ex.Output = append(ex.Output, transport.Render(d.Identity, marker, d.Message))
	}
	return ex
}

// collect snapshots the final state for assertions.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	for _, s := range h.sessions.List() {
		result.Sessions[s.Identity] = s
	}
	users, err := h.dir.Users(ctx)
	if err != nil {
		return fmt.Errorf("collect users: %w", err)
	}
	tasks, err := h.dir.Tasks(ctx)
	if err != nil {
		return fmt.Errorf("collect tasks: %w", err)
	}
	result.Users = users
	result.Tasks = tasks
	result.Pending = h.sched.Jobs()
	return nil
}
