package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

func sampleResult() *Result {
	r := NewResult()
	r.Transcript = []Exchange{
		{
			Input:   "> pat /participant",
			Outcome: "transitioned participant/part_menu",
			Deliveries: []transport.Delivery{
				{Identity: "pat", Message: transport.Text("Participant's Menu")},
			},
		},
		{
			Input: "~ advance 1h0m0s",
			Deliveries: []transport.Delivery{
				{Identity: "pat", Message: transport.Text("Focus Session done!")},
				{Identity: "sam", Message: transport.Text("unrelated")},
			},
		},
	}
	r.Sessions["pat"] = session.New("pat").Enter(session.FlowParticipant, "part_menu")
	r.Sessions["pat"] = withHistory(r.Sessions["pat"], 2)
	r.Users = []roster.User{{Identity: "pat", Role: roster.RoleParticipant}}
	r.Tasks = []roster.Task{
		{Subject: "Physics", Title: "A"},
		{Subject: "physics", Title: "B"},
		{Subject: "Chemistry", Title: "C"},
	}
	r.Pending = []scheduler.Job{{Payload: "maintenance.sweep", Due: time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)}}
	return r
}

func withHistory(s session.Session, n int) session.Session {
	for i := 0; i < n; i++ {
		s.History = append(s.History, session.FocusRecord{Task: "t"})
	}
	return s
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertSession, User: "pat", Flow: "participant", State: "part_menu"},
		{Type: AssertSession, User: "nobody", Flow: "none", State: "idle"},
		{Type: AssertReplyContains, User: "pat", Text: "done"},
		{Type: AssertUserRole, User: "pat", Role: "participant"},
		{Type: AssertUserRole, User: "nobody", Role: ""},
		{Type: AssertTaskCount, Count: 3},
		{Type: AssertTaskCount, Subject: "PHYSICS", Count: 2},
		{Type: AssertHistoryCount, User: "pat", Count: 2},
		{Type: AssertPendingJobs, Count: 1},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	r := sampleResult()
	tests := []struct {
		assertion Assertion
		want      string
	}{
		{Assertion{Type: AssertSession, User: "pat", State: "focus_name"}, "participant/part_menu"},
		{Assertion{Type: AssertReplyContains, User: "sam", Text: "done"}, "1 replies, none matching"},
		{Assertion{Type: AssertUserRole, User: "pat", Role: "supervisor"}, "Actual: participant"},
		{Assertion{Type: AssertTaskCount, Subject: "Biology", Count: 1}, "1 tasks for Biology"},
		{Assertion{Type: AssertHistoryCount, User: "pat", Count: 0}, "Actual: 2"},
		{Assertion{Type: AssertPendingJobs, Count: 0}, "maintenance.sweep 2024-03-05 08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.assertion.Type, func(t *testing.T) {
			errs := EvaluateAssertions(r, []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_ListsSteps(t *testing.T) {
	err := &AssertionError{
		Type:       AssertSession,
		Expected:   "pat in participant/*",
		Actual:     "none/idle",
		Transcript: sampleResult().Transcript,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: session")
	assert.Contains(t, msg, "[1] > pat /participant (transitioned participant/part_menu)")
	assert.Contains(t, msg, "[2] ~ advance 1h0m0s\n")
}

func TestResult_Render(t *testing.T) {
	r := NewResult()
	r.Transcript = []Exchange{
		{Input: "> pat /help", Outcome: "handled none/idle", Output: []string{"[pat] hi\n"}},
		{Input: "~ advance 1m0s"},
	}
	assert.Equal(t, "> pat /help\n= handled none/idle\n[pat] hi\n\n~ advance 1m0s\n", r.Render())
}
