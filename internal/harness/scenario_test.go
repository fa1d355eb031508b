package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
start: "2024-03-04 09:00"
timezone: Asia/Singapore
max_focus_minutes: 60
maintenance: "08:00"
users:
  - identity: sam
    role: supervisor
    subject: Physics
tasks:
  - subject: Physics
    title: Lab report
    deadline: "2024-03-10"
steps:
  - user: sam
    command: supervisor
    expect:
      outcome: transitioned
      state: sup_menu
  - advance: 1h
assertions:
  - type: task_count
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, 60, scenario.MaxFocusMinutes)
	require.Len(t, scenario.Users, 1)
	assert.Equal(t, "supervisor", scenario.Users[0].Role)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "supervisor", scenario.Steps[0].Command)
	require.NotNil(t, scenario.Steps[0].Expect)
	assert.Equal(t, "sup_menu", scenario.Steps[0].Expect.State)
	assert.Equal(t, "1h", scenario.Steps[1].Advance)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "assertion instead of assertions"
steps:
  - user: pat
    command: start
assertion:
  - type: pending_jobs
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\nsteps: [{user: pat, command: start}]\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\nsteps: [{user: pat, command: start}]\n",
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: "name: n\ndescription: d\n",
			want: "steps list is required",
		},
		{
			name: "two inputs in one step",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: start, text: hi}]\n",
			want: "exactly one of",
		},
		{
			name: "step without user",
			yaml: "name: n\ndescription: d\nsteps: [{command: start}]\n",
			want: "user is required",
		},
		{
			name: "command with slash",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: /start}]\n",
			want: "leave out the slash",
		},
		{
			name: "bad advance",
			yaml: "name: n\ndescription: d\nsteps: [{advance: soon}]\n",
			want: "advance",
		},
		{
			name: "negative advance",
			yaml: "name: n\ndescription: d\nsteps: [{advance: -5m}]\n",
			want: "advance must be positive",
		},
		{
			name: "unknown outcome",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: start, expect: {outcome: done}}]\n",
			want: "unknown outcome",
		},
		{
			name: "bad start",
			yaml: "name: n\ndescription: d\nstart: monday\nsteps: [{user: pat, command: start}]\n",
			want: "start",
		},
		{
			name: "bad timezone",
			yaml: "name: n\ndescription: d\ntimezone: Mars/Olympus\nsteps: [{user: pat, command: start}]\n",
			want: "timezone",
		},
		{
			name: "bad maintenance",
			yaml: "name: n\ndescription: d\nmaintenance: \"25:00\"\nsteps: [{user: pat, command: start}]\n",
			want: "maintenance",
		},
		{
			name: "unknown role",
			yaml: "name: n\ndescription: d\nusers: [{identity: pat, role: admin}]\nsteps: [{user: pat, command: start}]\n",
			want: "unknown role",
		},
		{
			name: "duplicate user",
			yaml: "name: n\ndescription: d\nusers: [{identity: pat}, {identity: pat}]\nsteps: [{user: pat, command: start}]\n",
			want: "duplicate identity",
		},
		{
			name: "bad deadline",
			yaml: "name: n\ndescription: d\ntasks: [{subject: S, title: T, deadline: tomorrow}]\nsteps: [{user: pat, command: start}]\n",
			want: "want YYYY-MM-DD",
		},
		{
			name: "unknown assertion",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: start}]\nassertions: [{type: trace_count}]\n",
			want: "unknown assertion type",
		},
		{
			name: "session assertion without position",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: start}]\nassertions: [{type: session, user: pat}]\n",
			want: "flow or state is required",
		},
		{
			name: "reply assertion without text",
			yaml: "name: n\ndescription: d\nsteps: [{user: pat, command: start}]\nassertions: [{type: reply_contains, user: pat}]\n",
			want: "user and text are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
