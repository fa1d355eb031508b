package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/studybot/internal/engine"
	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/textutil"
)

// AssertionError is returned when an assertion fails.
// It includes the step inputs to help debug the failure.
type AssertionError struct {
	Type       string // Assertion type for categorization
	Expected   string // Human-readable expected outcome
	Actual     string // Human-readable actual outcome
	Transcript []Exchange
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Transcript) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for i, ex := range e.Transcript {
			fmt.Fprintf(&buf, "  [%d] %s", i+1, ex.Input)
			if ex.Outcome != "" {
				fmt.Fprintf(&buf, " (%s)", ex.Outcome)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against a finished run and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertSession:
		return assertSession(result, a)
	case AssertReplyContains:
		return assertReplyContains(result, a)
	case AssertUserRole:
		return assertUserRole(result, a)
	case AssertTaskCount:
		return assertTaskCount(result, a)
	case AssertHistoryCount:
		return assertHistoryCount(result, a)
	case AssertPendingJobs:
		return assertPendingJobs(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// sessionOf returns the final session of id; identities that never
// committed are idle.
func (r *Result) sessionOf(id session.Identity) session.Session {
	if s, ok := r.Sessions[id]; ok {
		return s
	}
	return session.New(id)
}

func assertSession(result *Result, a Assertion) error {
	s := result.sessionOf(session.Identity(a.User))
	flowOK := a.Flow == "" || a.Flow == s.Flow.String()
	stateOK := a.State == "" || a.State == string(s.State)
	if flowOK && stateOK {
		return nil
	}
	return &AssertionError{
		Type:       AssertSession,
		Expected:   fmt.Sprintf("%s in %s/%s", a.User, orAny(a.Flow), orAny(a.State)),
		Actual:     fmt.Sprintf("%s/%s", s.Flow, s.State),
		Transcript: result.Transcript,
	}
}

func assertReplyContains(result *Result, a Assertion) error {
	replies := result.RepliesTo(session.Identity(a.User))
	for _, text := range replies {
		if strings.Contains(text, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:       AssertReplyContains,
		Expected:   fmt.Sprintf("a reply to %s containing %q", a.User, a.Text),
		Actual:     fmt.Sprintf("%d replies, none matching", len(replies)),
		Transcript: result.Transcript,
	}
}

func assertUserRole(result *Result, a Assertion) error {
	role := roster.RoleNone
	for _, u := range result.Users {
		if string(u.Identity) == a.User {
			role = u.Role
			break
		}
	}
	if role == roster.Role(a.Role) {
		return nil
	}
	return &AssertionError{
		Type:       AssertUserRole,
		Expected:   fmt.Sprintf("%s registered as %s", a.User, roster.Role(a.Role)),
		Actual:     role.String(),
		Transcript: result.Transcript,
	}
}

func assertTaskCount(result *Result, a Assertion) error {
	n := 0
	for _, t := range result.Tasks {
		if a.Subject == "" || textutil.Equal(t.Subject, a.Subject) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	what := "tasks"
	if a.Subject != "" {
		what = "tasks for " + a.Subject
	}
	return &AssertionError{
		Type:     AssertTaskCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d", n),
	}
}

func assertHistoryCount(result *Result, a Assertion) error {
	n := len(result.sessionOf(session.Identity(a.User)).History)
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:       AssertHistoryCount,
		Expected:   fmt.Sprintf("%d completed focus sessions for %s", a.Count, a.User),
		Actual:     fmt.Sprintf("%d", n),
		Transcript: result.Transcript,
	}
}

func assertPendingJobs(result *Result, a Assertion) error {
	if len(result.Pending) == a.Count {
		return nil
	}
	pending := make([]string, len(result.Pending))
	for i, j := range result.Pending {
		pending[i] = fmt.Sprintf("%s %s", j.Payload, j.Due.Format(StartLayout))
	}
	return &AssertionError{
		Type:     AssertPendingJobs,
		Expected: fmt.Sprintf("%d pending jobs", a.Count),
		Actual:   fmt.Sprintf("%d %v", len(result.Pending), pending),
	}
}

// checkExpect validates a step's expect clause against its dispatch.
func checkExpect(index int, exp ExpectClause, out engine.Outcome, ex Exchange) error {
	var problems []string
	if exp.Outcome != "" && exp.Outcome != out.Kind.String() {
		problems = append(problems, fmt.Sprintf("outcome %s, want %s", out.Kind, exp.Outcome))
	}
	if exp.Flow != "" && exp.Flow != out.Session.Flow.String() {
		problems = append(problems, fmt.Sprintf("flow %s, want %s", out.Session.Flow, exp.Flow))
	}
	if exp.State != "" && exp.State != string(out.Session.State) {
		problems = append(problems, fmt.Sprintf("state %s, want %s", out.Session.State, exp.State))
	}
	if exp.Reply != "" {
		found := false
		for _, d := range ex.Deliveries {
			if strings.Contains(d.Message.Text, exp.Reply) {
				found = true
				break
			}
		}
		if !found {
			problems = append(problems, fmt.Sprintf("no reply containing %q", exp.Reply))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     "expect",
		Expected: fmt.Sprintf("steps[%d] %s", index, ex.Input),
		Actual:   strings.Join(problems, "; "),
	}
}

func orAny(s string) string {
	if s == "" {
		return "*"
	}
	return s
}
