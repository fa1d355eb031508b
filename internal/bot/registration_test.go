package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
)

func TestRegistration_Participant(t *testing.T) {
	f := newFixture(t)

	out := f.handle(engine.Event{Kind: engine.EventCommand, Identity: "u1", Payload: CmdStart, Name: "@ann"})
	require.Equal(t, engine.Transitioned, out.Kind)
	assert.Equal(t, RegRole, out.Session.State)
	prompt := f.last(t, "u1").Message
	assert.Equal(t, textRolePrompt, prompt.Text)
	assert.Equal(t, []string{"reg_supervisor", "reg_participant", "cancel"}, buttonData(prompt))

	u, found, err := f.dir.FindUser(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found, "start records the user")
	assert.Equal(t, "@ann", u.Name)
	assert.False(t, u.Registered())

	f.press("u1", "reg_participant")
	d := f.last(t, "u1")
	assert.True(t, d.Edit, "button replies edit the keyboard message")
	assert.Equal(t, []string{"participant_confirm", "not_confirmed"}, buttonData(d.Message))

	out = f.press("u1", "participant_confirm")
	assert.True(t, out.Session.IsIdle())
	assert.Equal(t, textRegisteredParticipant, f.last(t, "u1").Message.Text)

	role, err := f.dir.RoleOf(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, roster.RoleParticipant, role)
}

func TestRegistration_SupervisorSubjectIsCapitalised(t *testing.T) {
	f := newFixture(t)
	f.cmd("u1", CmdStart)
	f.press("u1", "reg_supervisor")
	assert.Equal(t, textSubject, f.last(t, "u1").Message.Text)

	out := f.text("u1", "  pHYSICS ")
	assert.Equal(t, RegSupervisorConfirm, out.Session.State)
	assert.Equal(t, session.RegistrationScratch{Subject: "Physics"}, out.Session.Scratch)
	confirm := f.last(t, "u1").Message
	assert.Equal(t, "Register as 'Physics Supervisor'", confirm.Buttons[0][0].Text)

	out = f.press("u1", "supervisor_confirm")
	assert.True(t, out.Session.IsIdle())
	assert.Equal(t,
		"You have been successfully registered as the Physics supervisor. Please input '/supervisor' to proceed.",
		f.last(t, "u1").Message.Text)

	u, _, err := f.dir.FindUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, roster.RoleSupervisor, u.Role)
	assert.Equal(t, "Physics", u.Subject)
}

func TestRegistration_BackReturnsToRolePrompt(t *testing.T) {
	f := newFixture(t)
	f.cmd("u1", CmdStart)
	f.press("u1", "reg_supervisor")
	f.text("u1", "Maths")

	out := f.press("u1", "not_confirmed")

	assert.Equal(t, RegRole, out.Session.State)
	assert.Equal(t, session.RegistrationScratch{}, out.Session.Scratch)
	assert.Equal(t, textRolePrompt, f.last(t, "u1").Message.Text)
}

func TestRegistration_AlreadyRegisteredIsRejected(t *testing.T) {
	f := newFixture(t, participant("u1"))

	out := f.cmd("u1", CmdStart)

	assert.Equal(t, engine.Rejected, out.Kind)
	assert.True(t, out.Session.IsIdle())
	assert.Equal(t, "You have already been registered as a participant.\nReturn and type /participant to begin.",
		f.last(t, "u1").Message.Text)
}

func TestRegistration_Cancel(t *testing.T) {
	f := newFixture(t)
	f.cmd("u1", CmdStart)

	out := f.press("u1", "cancel")

	assert.True(t, out.Session.IsIdle())
	d := f.last(t, "u1")
	assert.True(t, d.Edit)
	assert.Equal(t, textGoodbye, d.Message.Text)
}

func TestRegistration_RepromptsUnexpectedInput(t *testing.T) {
	f := newFixture(t)
	f.cmd("u1", CmdStart)

	out := f.text("u1", "supervisor please")
	assert.Equal(t, RegRole, out.Session.State)
	assert.Equal(t, textRolePrompt, f.last(t, "u1").Message.Text)

	f.press("u1", "reg_supervisor")
	out = f.press("u1", "reg_participant")
	assert.Equal(t, RegSubject, out.Session.State, "stale buttons do not jump states")
	assert.Equal(t, textSubject, f.last(t, "u1").Message.Text)
}

func TestRegistration_ConcurrentRegistrationLosesGracefully(t *testing.T) {
	f := newFixture(t)
	f.cmd("u1", CmdStart)
	f.press("u1", "reg_participant")

	// Registered elsewhere in the meantime.
	_, err := f.dir.Register(context.Background(), "u1", roster.RoleSupervisor, "Art")
	require.NoError(t, err)

	out := f.press("u1", "participant_confirm")
	assert.True(t, out.Session.IsIdle())
	assert.Contains(t, f.last(t, "u1").Message.Text, "already been registered as a supervisor")
}

func TestRegistration_CommitRetryRegistersOnce(t *testing.T) {
	f := newFixtureOn(t, replaying)
	f.cmd("u1", CmdStart)
	f.press("u1", "reg_supervisor")
	f.text("u1", "art")

	out := f.press("u1", "supervisor_confirm")

	require.True(t, out.Session.IsIdle())
	assert.NoError(t, out.Err, "a replayed register would fail as already registered")
	u, found, err := f.dir.FindUser(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, roster.RoleSupervisor, u.Role)
	assert.Equal(t, "Art", u.Subject)
}
