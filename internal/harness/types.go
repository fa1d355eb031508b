package harness

import (
	"strings"

	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/scheduler"
	"github.com/roach88/studybot/internal/session"
	"github.com/roach88/studybot/internal/transport"
)

// Exchange is one step of a run and what the bot answered.
type Exchange struct {
	// Input describes the step: "> pat /participant", "> pat !focus",
	// "> pat Revision" or "~ advance 25m0s".
	Input string `json:"input"`

	// Outcome is "<kind> <flow>/<state>" for user input. Empty for
	// advances, whose jobs dispatch on their own.
	Outcome string `json:"outcome,omitempty"`

	// Output holds the deliveries rendered the way the console prints them.
	Output []string `json:"output,omitempty"`

	Deliveries []transport.Delivery `json:"-"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	Transcript []Exchange `json:"transcript"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final state, for assertions and inspection.
	Sessions map[session.Identity]session.Session `json:"-"`
	Users    []roster.User                        `json:"-"`
	Tasks    []roster.Task                        `json:"-"`
	Pending  []scheduler.Job                      `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Transcript: []Exchange{},
		Errors:     []string{},
		Sessions:   make(map[session.Identity]session.Session),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Render prints every exchange, separated by blank lines.
func (r *Result) Render() string {
	var b strings.Builder
	for i, ex := range r.Transcript {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ex.Input)
		b.WriteString("\n")
		if ex.Outcome != "" {
			b.WriteString("= ")
			b.WriteString(ex.Outcome)
			b.WriteString("\n")
		}
		for _, out := range ex.Output {
			b.WriteString(out)
		}
	}
	return b.String()
}

// RepliesTo returns the text of every delivery to id, in order.
func (r *Result) RepliesTo(id session.Identity) []string {
	var out []string
	for _, ex := range r.Transcript {
		for _, d := range ex.Deliveries {
			if d.Identity == id {
				out = append(out, d.Message.Text)
			}
		}
	}
	return out
}
