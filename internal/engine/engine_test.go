package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
	"github.com/roach88/studybot/internal/transport/mocks"
)

func TestDispatch_EntryFromIdle(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(Command("u1", "participant"))

	assert.Equal(t, Transitioned, out.Kind)
	assert.True(t, out.Before.IsIdle())
	assert.Equal(t, session.FlowParticipant, out.Session.Flow)
	assert.Equal(t, stMenu, out.Session.State)
	assert.Equal(t, session.ParticipantScratch{}, out.Session.Scratch)
	assert.Equal(t, int64(1), out.Session.Version)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "participant menu", out.Messages[0].Text)
	assert.Equal(t, "tok-1", out.Event.Token)
}

func TestDispatch_WrongFlow(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(Command("U1", "supervisor"))
	require.Equal(t, Transitioned, out.Kind)
	assert.Equal(t, session.FlowSupervisor, out.Session.Flow)
	assert.Equal(t, stSupMenu, out.Session.State)

	out = f.dispatch(Command("U1", "participant"))

	assert.Equal(t, WrongFlow, out.Kind)
	assert.True(t, out.Refused())
	assert.False(t, out.Committed())
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "finish supervisor first", out.Messages[0].Text)

	s := f.get(t, "U1")
	assert.Equal(t, session.FlowSupervisor, s.Flow)
	assert.Equal(t, stSupMenu, s.State)
	assert.Equal(t, int64(1), s.Version)
}

func TestDispatch_EntryRejected(t *testing.T) {
	f := newFixture(t)

	ev := Command("u1", "participant")
	ev.Name = "blocked"
	out := f.dispatch(ev)

	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, "not allowed", out.Messages[0].Text)
	s := f.get(t, "u1")
	assert.True(t, s.IsIdle())
	assert.Zero(t, s.Version)
}

func TestDispatch_InvalidDurationSelfLoops(t *testing.T) {
	for _, input := range []string{"-5", "181", "0"} {
		t.Run(input, func(t *testing.T) {
			f := newFixture(t)
			f.dispatch(Command("u1", "participant"))
			before := f.dispatch(Button("u1", "focus")).Session

			out := f.dispatch(Text("u1", input))

			assert.Equal(t, Transitioned, out.Kind)
			assert.Equal(t, "out of range", out.Messages[0].Text)
			assert.Equal(t, before.Flow, out.Session.Flow)
			assert.Equal(t, before.State, out.Session.State)
			assert.Equal(t, before.Scratch, out.Session.Scratch)
			assert.Equal(t, before.Version+1, out.Session.Version)
			assert.Equal(t, 0, f.sched.Pending())
		})
	}
}

func TestDispatch_OtherwiseReprompts(t *testing.T) {
	f := newFixture(t)
	f.dispatch(Command("u1", "participant"))
	f.dispatch(Button("u1", "focus"))

	out := f.dispatch(Text("u1", "thirty"))
	assert.Equal(t, Transitioned, out.Kind)
	assert.Equal(t, "numbers only", out.Messages[0].Text)
	assert.Equal(t, stDuration, out.Session.State)

	// Buttons with no rule also get the re-prompt.
	out = f.dispatch(Button("u1", "stale_button"))
	assert.Equal(t, "numbers only", out.Messages[0].Text)
}

func TestDispatch_DroppedWhenNothingMatches(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(Text("u1", "hello?"))
	assert.Equal(t, Dropped, out.Kind)
	assert.Empty(t, out.Messages)

	f.dispatch(Command("u1", "participant"))
	out = f.dispatch(Text("u1", "hello?"))
	assert.Equal(t, Dropped, out.Kind, "menu has no otherwise")
	assert.Equal(t, int64(1), f.get(t, "u1").Version)
}

func TestDispatch_GlobalRule(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(Command("u1", "help"))
	assert.Equal(t, Handled, out.Kind)
	assert.Equal(t, "help", out.Messages[0].Text)

	f.dispatch(Command("u1", "participant"))
	out = f.dispatch(Command("u1", "help"))
	assert.Equal(t, Handled, out.Kind)
	assert.Equal(t, int64(1), out.Session.Version)
}

func TestDispatch_FocusSessionJob(t *testing.T) {
	f := newFixture(t)

	out := f.toRunning(t, "U2", 30)

	assert.Equal(t, "job-1", string(out.Job))
	next, ok := f.sched.Next()
	require.True(t, ok)
	assert.Equal(t, testStart.Add(30*time.Minute), next)
	jobs := f.sched.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, session.Identity("U2"), jobs[0].Identity)
	assert.Equal(t, "focus.end", jobs[0].Payload)

	running := f.get(t, "U2")
	sc := running.Scratch.(session.ParticipantScratch)
	assert.Equal(t, testStart.Add(30*time.Minute), sc.End)

	f.clock.Advance(30 * time.Minute)

	after := f.get(t, "U2")
	assert.Equal(t, stRunning, after.State)
	assert.Equal(t, sc, after.Scratch, "firing leaves scratch untouched")
	require.Len(t, after.History, 1)
	assert.Equal(t, sc.End, after.History[0].End)

	last, ok := f.transport.Last("U2")
	require.True(t, ok)
	assert.Equal(t, "done", last.Message.Text)
}

func TestDispatch_CancelClearsScratchAndJobs(t *testing.T) {
	f := newFixture(t)
	f.toRunning(t, "u1", 30)
	require.Equal(t, 1, f.sched.Pending())

	out := f.dispatch(Command("u1", "cancel"))

	assert.Equal(t, Transitioned, out.Kind)
	assert.True(t, out.Session.IsIdle())
	assert.Nil(t, out.Session.Scratch)
	assert.Equal(t, 1, out.Cancelled)
	assert.Equal(t, 0, f.sched.Pending())

	f.clock.Advance(time.Hour)
	assert.Empty(t, f.get(t, "u1").History, "cancelled job never fires")
}

func TestDispatch_NonTerminalCancel(t *testing.T) {
	f := newFixture(t)
	f.toRunning(t, "u1", 30)

	out := f.dispatch(Button("u1", "leave"))

	assert.Equal(t, Transitioned, out.Kind)
	assert.Equal(t, stMenu, out.Session.State)
	assert.Equal(t, session.FlowParticipant, out.Session.Flow)
	assert.Equal(t, 1, out.Cancelled)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestDispatch_CancelButton(t *testing.T) {
	f := newFixture(t)
	f.dispatch(Command("u1", "participant"))
	f.dispatch(Button("u1", "focus"))

	out := f.dispatch(Button("u1", "cancel"))
	assert.True(t, out.Session.IsIdle())
	assert.Equal(t, "bye", out.Messages[0].Text)
}

func TestDispatch_StaleJobIsDropped(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(JobFired("u1", "focus.end"))
	assert.Equal(t, Dropped, out.Kind)

	f.dispatch(Command("u1", "participant"))
	out = f.dispatch(JobFired("u1", "focus.end"))
	assert.Equal(t, Dropped, out.Kind, "job firings never reach otherwise handlers")
}

func TestDispatch_ReentryRestartsFlow(t *testing.T) {
	f := newFixture(t)
	f.toRunning(t, "u1", 30)

	out := f.dispatch(Command("u1", "participant"))

	assert.Equal(t, Transitioned, out.Kind)
	assert.Equal(t, stMenu, out.Session.State)
	assert.Equal(t, session.ParticipantScratch{}, out.Session.Scratch)
	assert.Equal(t, 1, out.Cancelled)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestDispatch_DefectLeavesSessionUnchanged(t *testing.T) {
	tests := []struct {
		button string
		code   DefectCode
	}{
		{"defect", ErrCodeMissingScratch},
		{"boom", ErrCodeHandlerPanic},
		{"bad_scratch", ErrCodeInvariant},
	}

	for _, tt := range tests {
		t.Run(tt.button, func(t *testing.T) {
			f := newFixture(t)
			before := f.dispatch(Command("u1", "participant")).Session

			out := f.dispatch(Button("u1", tt.button))

			assert.Equal(t, Aborted, out.Kind)
			var de *DefectError
			require.True(t, errors.As(out.Err, &de))
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, session.Identity("u1"), de.Identity)
			assert.Equal(t, stMenu, de.State)
			assert.Equal(t, "!"+tt.button, de.Event)
			assert.True(t, IsDefect(out.Err))
			assert.Empty(t, out.Messages)

			assert.Equal(t, before, f.get(t, "u1"))
		})
	}
}

func TestDispatch_EmptyIdentity(t *testing.T) {
	f := newFixture(t)

	out := f.dispatch(Command("", "participant"))
	assert.Equal(t, Aborted, out.Kind)
	assert.ErrorIs(t, out.Err, session.ErrInvalidIdentity)
}

func TestDispatch_SequentialCommitsInOrder(t *testing.T) {
	f := newFixture(t)
	events := []Event{
		Command("u1", "participant"), // commit
		Text("u1", "noise"),          // dropped
		Button("u1", "focus"),        // commit
		Text("u1", "abc"),            // commit (re-prompt)
		Text("u1", "500"),            // commit (self-loop)
		Command("u1", "help"),        // handled, no commit
		Text("u1", "25"),             // commit
	}

	commits := 0
	for _, ev := range events {
		out := f.dispatch(ev)
		if out.Committed() {
			commits++
			assert.Equal(t, int64(commits), out.Session.Version)
		}
	}
	assert.Equal(t, 5, commits)
	assert.Equal(t, int64(commits), f.get(t, "u1").Version)
}

func TestDispatch_JobRacesUserInput(t *testing.T) {
	// Firing then cancelling ends idle with one history entry and two
	// commits; cancelling then firing ends idle with none and one commit
	// (the firing is dropped). Anything else is a merged state.
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		base := f.toRunning(t, "u1", 30).Session.Version

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.engine.Handle(context.Background(), JobFired("u1", "focus.end"))
		}()
		go func() {
			defer wg.Done()
			f.engine.Handle(context.Background(), Command("u1", "cancel"))
		}()
		wg.Wait()

		s := f.get(t, "u1")
		require.True(t, s.IsIdle())
		switch len(s.History) {
		case 1:
			assert.Equal(t, base+2, s.Version)
		case 0:
			assert.Equal(t, base+1, s.Version)
		default:
			t.Fatalf("unexpected history %v", s.History)
		}
	}
}

func TestHandle_DeliversAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	store := session.NewMemoryStore()
	e := New(testTable(t), store, WithTransport(tr), WithClock(clock.Fake(testStart)))
	ctx := context.Background()

	tr.EXPECT().Send(ctx, session.Identity("u1"), gomock.Any()).DoAndReturn(
		func(ctx context.Context, id session.Identity, msg transport.Message) error {
			// The commit is visible by the time the transport is called.
			s, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, session.FlowParticipant, s.Flow)
			assert.Equal(t, "participant menu", msg.Text)
			return errors.New("network down")
		})

	out := e.Handle(ctx, Command("u1", "participant"))
	assert.Equal(t, Transitioned, out.Kind, "delivery failure does not undo the commit")
}

func TestHandle_NoMessagesNoDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTransport(ctrl)
	e := New(testTable(t), session.NewMemoryStore(), WithTransport(tr))

	// No EXPECT: any transport call fails the test.
	out := e.Handle(context.Background(), Text("u1", "nobody listens"))
	assert.Equal(t, Dropped, out.Kind)
}

func TestEngine_WithoutScheduler(t *testing.T) {
	e := New(testTable(t), session.NewMemoryStore(), WithClock(clock.Fake(testStart)))
	ctx := context.Background()

	e.Dispatch(ctx, Command("u1", "participant"))
	e.Dispatch(ctx, Button("u1", "focus"))
	out := e.Dispatch(ctx, Text("u1", "30"))

	assert.Equal(t, Transitioned, out.Kind)
	assert.Empty(t, out.Job)
}

func TestFromUpdate(t *testing.T) {
	ev, err := FromUpdate(transport.Update{Identity: "u1", Kind: transport.UpdateButton, Data: "focus", Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, Event{Kind: EventButton, Identity: "u1", Payload: "focus", Name: "Ann"}, ev)

	_, err = FromUpdate(transport.Update{Identity: "u1"})
	assert.Error(t, err)
}
