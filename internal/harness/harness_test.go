package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/studybot/internal/roster"
)

func mustParse(t *testing.T, content string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return s
}

func TestRun_Registration(t *testing.T) {
	s := mustParse(t, `
name: register_supervisor
description: "Supervisor registration"
steps:
  - user: sam
    command: start
  - user: sam
    button: reg_supervisor
  - user: sam
    text: "  physics  "
    expect:
      state: reg_supervisor_confirm
      reply: "Are you sure?"
  - user: sam
    button: supervisor_confirm
    expect:
      outcome: transitioned
      flow: none
assertions:
  - type: user_role
    user: sam
    role: supervisor
  - type: reply_contains
    user: sam
    text: "registered as the Physics supervisor"
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Transcript, 4)
	assert.Equal(t, "> sam /start", result.Transcript[0].Input)
	assert.Equal(t, "transitioned registration/reg_role", result.Transcript[0].Outcome)
	assert.Equal(t, "> sam !reg_supervisor", result.Transcript[1].Input)

	require.Len(t, result.Users, 1)
	assert.Equal(t, roster.RoleSupervisor, result.Users[0].Role)
	assert.Equal(t, "Physics", result.Users[0].Subject)
	assert.Equal(t, "sam", result.Users[0].Name)
}

func TestRun_FailedExpectationsAreReported(t *testing.T) {
	s := mustParse(t, `
name: wrong_expectations
description: "Expectations that do not hold"
steps:
  - user: pat
    command: participant
    expect:
      outcome: transitioned
      state: part_menu
assertions:
  - type: session
    user: pat
    flow: participant
  - type: task_count
    count: 3
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "outcome rejected, want transitioned")
	assert.Contains(t, result.Errors[0], "state idle, want part_menu")
	assert.Contains(t, result.Errors[1], "assertions[0]")
	assert.Contains(t, result.Errors[2], "3 tasks")
}

func TestRun_AdvanceFiresJobs(t *testing.T) {
	s := mustParse(t, `
name: short_focus
description: "A one minute focus session ends after an advance"
max_focus_minutes: 5
users:
  - identity: pat
    role: participant
steps:
  - user: pat
    command: participant
  - user: pat
    button: focus
  - user: pat
    text: reading
  - user: pat
    text: "6"
    expect:
      state: focus_duration
      reply: "less than 5 minutes"
  - user: pat
    text: "1"
    expect:
      state: focus_running
  - advance: 30s
  - advance: 30s
assertions:
  - type: history_count
    user: pat
    count: 1
  - type: pending_jobs
    count: 0
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	n := len(result.Transcript)
	assert.Equal(t, "~ advance 30s", result.Transcript[n-2].Input)
	assert.Empty(t, result.Transcript[n-2].Output)
	assert.Equal(t, "~ advance 30s", result.Transcript[n-1].Input)
	require.Len(t, result.Transcript[n-1].Output, 1)
	assert.Contains(t, result.Transcript[n-1].Output[0], "Focus Session done!")
}

func TestRun_MaintenanceIsScheduled(t *testing.T) {
	s := mustParse(t, `
name: maintenance
description: "The sweep is pending and drops expired tasks"
start: "2024-03-04 09:00"
maintenance: "08:00"
tasks:
  - subject: Physics
    title: Old
    deadline: "2024-03-04"
  - subject: Physics
    title: Later
    deadline: "2024-03-09"
steps:
  - advance: 24h
assertions:
  - type: task_count
    subject: PHYSICS
    count: 1
  - type: pending_jobs
    count: 1
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "Later", result.Tasks[0].Title)
	require.Len(t, result.Pending, 1)
	assert.Equal(t, "maintenance.sweep", result.Pending[0].Payload)
}

func TestRun_HelpIsHandledWithoutCommit(t *testing.T) {
	s := mustParse(t, `
name: help
description: "Help replies and leaves the session alone"
steps:
  - user: pat
    command: help
    expect:
      outcome: handled
      flow: none
      reply: "/start to register"
  - user: pat
    text: anything
    expect:
      outcome: dropped
`)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Transcript[1].Output)
	assert.Zero(t, result.Sessions["pat"].Version)
}
