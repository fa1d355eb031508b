package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/textutil"
	"github.com/roach88/studybot/internal/transport"
)

const (
	focusTimeLayout  = "02/01 03:04 PM"
	confirmDayLayout = "02/01"
	listDateLayout   = "02 Jan 06"
)

const (
	textGoodbye       = "Send /supervisor or /participant to start the bot again. Goodbye!"
	textRolePrompt    = "Are you a supervisor or a participant?"
	textSubject       = "Send the subject you're supervising. e.g. 'Physics'"
	textAreYouSure    = "Are you sure? This choice cannot be changed."
	textNotReg        = "You have not registered yet! Send /start to begin."
	textTitlePrompt   = "What is the name of the task?"
	textDeadline      = "What is the deadline of the task?\ne.g. tomorrow, or 25 July"
	textNotUnderstood = "We didn't understand your input.\n\n"
	textPast          = "Your participants can't travel to the past.\nPlease set a deadline for the future!\n\n"
	textConfirmTask   = "Please confirm new task."
	textFocusName     = "What is the name of your focus session? e.g. Physics Homework"
	textFocusDone     = "Focus Session done!"
	textNoSessions    = "No tasks completed!"
	textPickSubject   = "Which subject do you wish to view"
	textNoSubjects    = "No tasks have been set yet!"
	textMenuSup       = "Supervisor's Menu"
	textMenuPart      = "Participant's Menu"
)

func alreadyRegistered(role roster.Role) string {
	return fmt.Sprintf("You have already been registered as a %s.\nReturn and type /%s to begin.", role, role)
}

func wrongRole(role roster.Role) string {
	return fmt.Sprintf("You are registered as a %s! Did you mean to type /%s?", role, role)
}

func rolePrompt() transport.Message {
	return transport.WithButtons(textRolePrompt,
		transport.Row(
			transport.Btn("Supervisor", btnRegSupervisor),
			transport.Btn("Participant", btnRegParticipant),
		),
		transport.Row(transport.Btn("Cancel", btnCancel)),
	)
}

func confirmSupervisor(subject string) transport.Message {
	return transport.WithButtons(textAreYouSure,
		transport.Row(transport.Btn(fmt.Sprintf("Register as '%s Supervisor'", subject), btnSupervisorConfirm)),
		transport.Row(transport.Btn("Back", btnNotConfirmed)),
	)
}

func confirmParticipant() transport.Message {
	return transport.WithButtons(textAreYouSure,
		transport.Row(transport.Btn("Register as 'Participant'", btnParticipantConfirm)),
		transport.Row(transport.Btn("Back", btnNotConfirmed)),
	)
}

func registeredSupervisor(subject string) string {
	return fmt.Sprintf("You have been successfully registered as the %s supervisor. Please input '/supervisor' to proceed.", subject)
}

const textRegisteredParticipant = "You have been successfully registered. Please input '/participant' to proceed."

func supervisorMenu(prefix string) transport.Message {
	return transport.WithButtons(prefix+textMenuSup,
		transport.Row(
			transport.Btn("Add task", btnAddTask),
			transport.Btn("View tasks", btnViewTasks),
		),
		transport.Row(transport.Btn("Cancel", btnCancel)),
	)
}

func confirmTask(title string, deadline time.Time) transport.Message {
	return transport.WithButtons(textConfirmTask,
		transport.Row(transport.Btn(fmt.Sprintf("Confirm %s by %s", title, deadline.Format(confirmDayLayout)), btnConfirmTask)),
		transport.Row(transport.Btn("Return to Supervisor Main Menu", btnSupervisorMenu)),
	)
}

// taskList renders the tasks of subject, or a placeholder when there are
// none.
func taskList(subject string, tasks []roster.Task) string {
	if len(tasks) == 0 {
		return fmt.Sprintf("No tasks yet for %s!", subject)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tasks for %s\n\n", subject)
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s by %s\n", t.Title, t.Deadline.Format(listDateLayout))
	}
	return b.String()
}

func participantMenu(prefix string) transport.Message {
	return transport.WithButtons(prefix+textMenuPart,
		transport.Row(
			transport.Btn("Focus", btnFocus),
			transport.Btn("Tasks", btnTasks),
		),
		transport.Row(
			transport.Btn("Completed Tasks", btnCompleted),
			transport.Btn("Cancel", btnCancel),
		),
	)
}

func durationPrompt(max int) string {
	return fmt.Sprintf("How long is your focus session in minutes? (%d minutes maximum)", max)
}

func focusStarted(task string, minutes int, end time.Time) string {
	plural := "s"
	if minutes == 1 {
		plural = ""
	}
	return fmt.Sprintf("Focus Session %s for %d minute%s ending at %s", task, minutes, plural, end.Format(focusTimeLayout))
}

func focusReminder(task string, end time.Time) string {
	return fmt.Sprintf("Please focus on %s until %s", task, end.Format(focusTimeLayout))
}

func focusDone() transport.Message {
	return transport.WithButtons(textFocusDone,
		transport.Row(transport.Btn("Back to Menu", btnParticipantMenu)),
	)
}

func history(records []session.FocusRecord, loc *time.Location) transport.Message {
	text := textNoSessions
	if len(records) > 0 {
		var b strings.Builder
		for _, r := range records {
			fmt.Fprintf(&b, "%s:\n%s TO %s\n\n",
				r.Task,
				r.Start.In(loc).Format(focusTimeLayout),
				r.End.In(loc).Format(focusTimeLayout),
			)
		}
		text = b.String()
	}
	return transport.WithButtons(text,
		transport.Row(
			transport.Btn("Clear History", btnClearHistory),
			transport.Btn("Back to Menu", btnParticipantMenu),
		),
	)
}

// subjectPicker lays subjects out two per row with a Back button below.
func subjectPicker(subjects []string) transport.Message {
	text := textPickSubject
	if len(subjects) == 0 {
		text = textNoSubjects
	}
	var rows [][]transport.Button
	for i, s := range subjects {
		if i%2 == 0 {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], transport.Btn(textutil.Capitalize(s), textutil.Lower(s)))
	}
	rows = append(rows, transport.Row(transport.Btn("Back", btnParticipantMenu)))
	return transport.WithButtons(text, rows...)
}

func subjectTasks(subject string, tasks []roster.Task) transport.Message {
	return transport.WithButtons(taskList(subject, tasks),
		transport.Row(transport.Btn("Back", btnBackSubjects)),
	)
}

const textHelp = "Here is the list of commands you can send:\n\n" +
	"/start to register (for new users)\n" +
	"/supervisor if you're a supervisor\n" +
	"/participant if you're a participant\n" +
	"/cancel to leave the current menu\n" +
	"/help for more information"

func wrongFlow(flow session.Flow) string {
	return fmt.Sprintf("You are still in the %s menu. Send /cancel to leave it first.", flow)
}
