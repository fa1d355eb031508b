package bot

import "github.com/roach88/studybot/internal/session"

// Registration states.
const (
	RegRole               session.State = "reg_role"
	RegSubject            session.State = "reg_subject"
	RegSupervisorConfirm  session.State = "reg_supervisor_confirm"
	RegParticipantConfirm session.State = "reg_participant_confirm"
)

// Supervisor states.
const (
	SupMenu     session.State = "sup_menu"
	SupTitle    session.State = "sup_title"
	SupDeadline session.State = "sup_deadline"
	SupConfirm  session.State = "sup_confirm"
	SupViewing  session.State = "sup_viewing"
)

// Participant states.
const (
	PartMenu      session.State = "part_menu"
	FocusName     session.State = "focus_name"
	FocusDuration session.State = "focus_duration"
	FocusRunning  session.State = "focus_running"
	PartCompleted session.State = "part_completed"
	PartSubjects  session.State = "part_subjects"
	PartViewing   session.State = "part_viewing"
)

// Commands.
const (
	CmdStart       = "start"
	CmdSupervisor  = "supervisor"
	CmdParticipant = "participant"
	CmdCancel      = "cancel"
	CmdHelp        = "help"
)

// Button payloads.
const (
	btnCancel             = "cancel"
	btnRegSupervisor      = "reg_supervisor"
	btnRegParticipant     = "reg_participant"
	btnSupervisorConfirm  = "supervisor_confirm"
	btnParticipantConfirm = "participant_confirm"
	btnNotConfirmed       = "not_confirmed"

	btnAddTask        = "add_task"
	btnViewTasks      = "view_tasks"
	btnConfirmTask    = "confirm_task"
	btnSupervisorMenu = "back_supervisor_menu"

	btnFocus           = "focus"
	btnTasks           = "tasks"
	btnCompleted       = "completed"
	btnClearHistory    = "clear_history"
	btnParticipantMenu = "back_participant_menu"
	btnBackSubjects    = "back_subjects"
)

// JobFocusEnd is the payload of the one-shot job that ends a focus session.
const JobFocusEnd = "focus.end"

// JobMaintenance is the payload of the daily task sweep.
const JobMaintenance = "maintenance.sweep"
