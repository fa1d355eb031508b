// Package harness runs scripted conversations against the bot.
//
// A scenario seeds the roster, then plays a list of steps (commands, free
// text, button presses and clock advances) through the real engine, session
// store and scheduler. Every reply is recorded into a transcript, which can
// be checked with assertions or compared against a golden file.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: participant_focus
//	description: "A participant runs a short focus session"
//	start: "2024-03-04 09:00"
//	timezone: Asia/Singapore
//	users:
//	  - identity: pat
//	    role: participant
//	tasks:
//	  - subject: Physics
//	    title: Lab report
//	    deadline: "2024-03-10"
//	steps:
//	  - user: pat
//	    command: participant
//	  - user: pat
//	    button: focus
//	  - user: pat
//	    text: Revision
//	    expect:
//	      outcome: transitioned
//	      state: focus_duration
//	  - advance: 25m
//	assertions:
//	  - type: session
//	    user: pat
//	    flow: participant
//	    state: focus_running
//	  - type: reply_contains
//	    user: pat
//	    text: "Focus Session done!"
//
// # Assertion Types
//
//   - session: the user's final flow and state
//   - reply_contains: some reply to the user contains the text
//   - user_role: the user's registered role
//   - task_count: tasks in total, or for one subject
//   - history_count: completed focus sessions of the user
//   - pending_jobs: jobs still queued in the scheduler
//
// # Determinism
//
// Each run gets a fresh in-memory roster and session store, a fake clock
// that only moves on advance steps, and sequential job IDs and dispatch
// tokens, so the transcript of a scenario is identical on every run.
package harness
