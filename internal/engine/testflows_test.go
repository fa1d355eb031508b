package engine

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/idgen"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// A cut-down focus flow used to exercise the engine without the bot
// package.
const (
	stMenu     session.State = "menu"
	stDuration session.State = "ask_duration"
	stRunning  session.State = "running"
	stSupMenu  session.State = "sup_menu"

	maxMinutes = 180
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testTable(t *testing.T) *Table {
	t.Helper()

	cancel := func(context.Context, Input) (Result, error) {
		return End(transport.Text("bye")), nil
	}

	table, err := NewTableBuilder().
		Entry(session.FlowParticipant, "participant", stMenu, func(_ context.Context, in Input) (Result, error) {
			if in.Event.Name == "blocked" {
				return Reject(transport.Text("not allowed")), nil
			}
			return Stay(transport.Text("participant menu")), nil
		}).
		Fallback(session.FlowParticipant, AnyOf(OnCommand("cancel"), OnButton("cancel")), cancel).
		Register(session.FlowParticipant, stMenu, OnButton("focus"), func(context.Context, Input) (Result, error) {
			return Goto(stDuration, transport.Text("how long?")), nil
		}).
		Register(session.FlowParticipant, stMenu, OnButton("defect"), func(context.Context, Input) (Result, error) {
			return Result{}, MissingScratch("task")
		}).
		Register(session.FlowParticipant, stMenu, OnButton("boom"), func(context.Context, Input) (Result, error) {
			panic("kaboom")
		}).
		Register(session.FlowParticipant, stMenu, OnButton("bad_scratch"), func(context.Context, Input) (Result, error) {
			return Goto(stDuration).WithScratch(session.SupervisorScratch{}), nil
		}).
		Register(session.FlowParticipant, stDuration, OnTextMatching(`^-?\d+$`), func(_ context.Context, in Input) (Result, error) {
			n, _ := strconv.Atoi(strings.TrimSpace(in.Event.Payload))
			if n < 1 || n > maxMinutes {
				return Stay(transport.Text("out of range")), nil
			}
			sc, err := ScratchAs[session.ParticipantScratch](in.Session)
			if err != nil {
				return Result{}, err
			}
			d := time.Duration(n) * time.Minute
			sc.Minutes = n
			sc.Start = in.Now
			sc.End = in.Now.Add(d)
			return Goto(stRunning, transport.Text("focus!")).WithScratch(sc).WithJob(d, "focus.end"), nil
		}).
		Otherwise(session.FlowParticipant, stDuration, func(context.Context, Input) (Result, error) {
			return Stay(transport.Text("numbers only")), nil
		}).
		Register(session.FlowParticipant, stRunning, OnJob("focus.end"), func(_ context.Context, in Input) (Result, error) {
			sc, err := ScratchAs[session.ParticipantScratch](in.Session)
			if err != nil {
				return Result{}, err
			}
			h := append(in.Session.History, session.FocusRecord{Start: sc.Start, End: sc.End})
			return Stay(transport.Text("done")).WithHistory(h), nil
		}).
		Register(session.FlowParticipant, stRunning, OnButton("leave"), func(context.Context, Input) (Result, error) {
			return Goto(stMenu, transport.Text("left early")).WithScratch(session.ParticipantScratch{}).WithCancel(), nil
		}).
		Entry(session.FlowSupervisor, "supervisor", stSupMenu, func(context.Context, Input) (Result, error) {
			return Stay(transport.Text("supervisor menu")), nil
		}).
		Fallback(session.FlowSupervisor, OnCommand("cancel"), cancel).
		Global(OnCommand("help"), func(context.Context, Input) (Result, error) {
			return Stay(transport.Text("help")), nil
		}).
		WrongFlow(func(_ context.Context, in Input) (Result, error) {
			return Reject(transport.Text("finish " + in.Session.Flow.String() + " first")), nil
		}).
		Build()
	require.NoError(t, err)
	return table
}

type fixture struct {
	engine    *Engine
	store     *session.MemoryStore
	sched     *scheduler.Scheduler
	clock     *clock.FakeClock
	transport *transport.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.Fake(testStart)
	store := session.NewMemoryStore(session.WithClock(clk))
	sched := scheduler.New(scheduler.WithClock(clk), scheduler.WithIDs(idgen.NewSequential("job")))
	require.NoError(t, sched.Start(context.Background()))
	t.Cleanup(sched.Stop)

	rec := transport.NewRecorder()
	e := New(testTable(t), store,
		WithJobs(sched),
		WithTransport(rec),
		WithClock(clk),
		WithTokens(idgen.NewSequential("tok")),
	)
	return &fixture{engine: e, store: store, sched: sched, clock: clk, transport: rec}
}

func (f *fixture) get(t *testing.T, id session.Identity) session.Session {
	t.Helper()
	s, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *fixture) dispatch(ev Event) Outcome {
	return f.engine.Dispatch(context.Background(), ev)
}

// toRunning drives id into the running state with a focus of minutes.
func (f *fixture) toRunning(t *testing.T, id session.Identity, minutes int) Outcome {
	t.Helper()
	require.Equal(t, Transitioned, f.dispatch(Command(id, "participant")).Kind)
	require.Equal(t, Transitioned, f.dispatch(Button(id, "focus")).Kind)
	out := f.dispatch(Text(id, strconv.Itoa(minutes)))
	require.Equal(t, Transitioned, out.Kind)
	require.Equal(t, stRunning, out.Session.State)
	return out
}
