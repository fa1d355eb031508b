package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/scheduler"
)

// Layouts of the scenario's time fields.
const (
	StartLayout    = "2006-01-02 15:04"
	DeadlineLayout = "2006-01-02"
)

// Defaults applied to fields a scenario leaves empty.
const (
	DefaultStart    = "2024-03-04 09:00"
	DefaultTimezone = "Asia/Singapore"
)

// Scenario is a scripted conversation with the bot.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Start is the fake clock's initial reading, in Timezone.
	// Format "2006-01-02 15:04". Defaults to DefaultStart.
	Start string `yaml:"start,omitempty"`

	// Timezone is the bot's IANA location. Defaults to DefaultTimezone.
	Timezone string `yaml:"timezone,omitempty"`

	// MaxFocusMinutes caps focus sessions. Zero keeps the bot default.
	MaxFocusMinutes int `yaml:"max_focus_minutes,omitempty"`

	// Maintenance, when set, schedules the daily sweep at this "HH:MM".
	Maintenance string `yaml:"maintenance,omitempty"`

	// Users and Tasks seed the roster before the first step.
	Users []UserSeed `yaml:"users,omitempty"`
	Tasks []TaskSeed `yaml:"tasks,omitempty"`

	// Steps are played in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// UserSeed is a roster user present before the scenario starts.
type UserSeed struct {
	Identity string `yaml:"identity"`
	Name     string `yaml:"name,omitempty"`
	Role     string `yaml:"role,omitempty"`
	Subject  string `yaml:"subject,omitempty"`
}

// TaskSeed is a task present before the scenario starts.
type TaskSeed struct {
	Subject  string `yaml:"subject"`
	Title    string `yaml:"title"`
	Deadline string `yaml:"deadline"`
}

// Step is one input to the bot. Exactly one of Command, Text, Button or
// Advance is set; the first three need User.
type Step struct {
	User    string `yaml:"user,omitempty"`
	Command string `yaml:"command,omitempty"`
	Text    string `yaml:"text,omitempty"`
	Button  string `yaml:"button,omitempty"`

	// Advance moves the fake clock, firing any jobs that fall due.
	// Go duration syntax, e.g. "25m".
	Advance string `yaml:"advance,omitempty"`

	// Expect checks the dispatch outcome of this step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause checks one dispatch. Empty fields are not checked.
type ExpectClause struct {
	// Outcome is the outcome kind, e.g. "transitioned" or "rejected".
	Outcome string `yaml:"outcome,omitempty"`

	// Flow and State are the session's position after the step.
	Flow  string `yaml:"flow,omitempty"`
	State string `yaml:"state,omitempty"`

	// Reply must appear in one of the step's replies.
	Reply string `yaml:"reply,omitempty"`
}

// Assertion checks the final state of a run.
type Assertion struct {
	// Type selects the check, see the Assert* constants.
	Type string `yaml:"type"`

	User    string `yaml:"user,omitempty"`
	Flow    string `yaml:"flow,omitempty"`
	State   string `yaml:"state,omitempty"`
	Text    string `yaml:"text,omitempty"`
	Role    string `yaml:"role,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSession       = "session"
	AssertReplyContains = "reply_contains"
	AssertUserRole      = "user_role"
	AssertTaskCount     = "task_count"
	AssertHistoryCount  = "history_count"
	AssertPendingJobs   = "pending_jobs"
)

var outcomeNames = map[string]bool{
	engine.Transitioned.String(): true,
	engine.Rejected.String():     true,
	engine.WrongFlow.String():    true,
	engine.Dropped.String():      true,
	engine.Aborted.String():      true,
	engine.Handled.String():      true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields: a typo like "assertion:" must not silently drop checks.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	loc, err := s.location()
	if err != nil {
		return err
	}
	if _, err := s.startTime(loc); err != nil {
		return err
	}
	if s.MaxFocusMinutes < 0 {
		return fmt.Errorf("max_focus_minutes must be non-negative")
	}
	if s.Maintenance != "" {
		if _, err := parseTimeOfDay(s.Maintenance); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
	}

	seen := make(map[string]bool)
	for i, u := range s.Users {
		if u.Identity == "" {
			return fmt.Errorf("users[%d]: identity is required", i)
		}
		if seen[u.Identity] {
			return fmt.Errorf("users[%d]: duplicate identity %q", i, u.Identity)
		}
		seen[u.Identity] = true
		if !roster.Role(u.Role).Valid() {
			return fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
	}

	for i, t := range s.Tasks {
		if t.Subject == "" || t.Title == "" {
			return fmt.Errorf("tasks[%d]: subject and title are required", i)
		}
		if _, err := time.ParseInLocation(DeadlineLayout, t.Deadline, loc); err != nil {
			return fmt.Errorf("tasks[%d]: deadline %q: want YYYY-MM-DD", i, t.Deadline)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	set := 0
	for _, v := range []string{st.Command, st.Text, st.Button, st.Advance} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of command, text, button or advance is required", index)
	}

	if st.Advance != "" {
		d, err := time.ParseDuration(st.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
		if st.User != "" || st.Expect != nil {
			return fmt.Errorf("steps[%d]: advance takes no user or expect", index)
		}
		return nil
	}

	if st.User == "" {
		return fmt.Errorf("steps[%d]: user is required", index)
	}
	if strings.HasPrefix(st.Command, "/") {
		return fmt.Errorf("steps[%d]: command %q: leave out the slash", index, st.Command)
	}
	if st.Expect != nil && st.Expect.Outcome != "" && !outcomeNames[st.Expect.Outcome] {
		return fmt.Errorf("steps[%d].expect: unknown outcome %q", index, st.Expect.Outcome)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSession:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for session", index)
		}
		if a.Flow == "" && a.State == "" {
			return fmt.Errorf("assertions[%d]: flow or state is required for session", index)
		}
	case AssertReplyContains:
		if a.User == "" || a.Text == "" {
			return fmt.Errorf("assertions[%d]: user and text are required for reply_contains", index)
		}
	case AssertUserRole:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for user_role", index)
		}
		if !roster.Role(a.Role).Valid() {
			return fmt.Errorf("assertions[%d]: unknown role %q", index, a.Role)
		}
	case AssertTaskCount, AssertPendingJobs:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertHistoryCount:
		if a.User == "" {
			return fmt.Errorf("assertions[%d]: user is required for history_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for history_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (s *Scenario) location() (*time.Location, error) {
	name := s.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", name, err)
	}
	return loc, nil
}

func (s *Scenario) startTime(loc *time.Location) (time.Time, error) {
	start := s.Start
	if start == "" {
		start = DefaultStart
	}
	t, err := time.ParseInLocation(StartLayout, start, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("start %q: want %q", start, StartLayout)
	}
	return t, nil
}

// parseTimeOfDay parses "HH:MM".
func parseTimeOfDay(s string) (scheduler.TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return scheduler.TimeOfDay{}, fmt.Errorf("time of day %q: want HH:MM", s)
	}
	return scheduler.TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}
