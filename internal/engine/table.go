package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/studybot/internal/session"
)

type ruleKey struct {
	flow  session.Flow
	state session.State
}

type rule struct {
	matcher Matcher
	handler Handler
}

type entryRule struct {
	flow    session.Flow
	command string
	initial session.State
	handler Handler
}

// Table is the immutable transition table. Build one with TableBuilder.
//
// INVARIANTS:
//   - rule order within a (flow, state) never changes after Build
//   - every flow with rules has exactly one entry command
type Table struct {
	entries   map[string]entryRule
	fallbacks map[session.Flow][]rule
	rules     map[ruleKey][]rule
	otherwise map[ruleKey]Handler
	globals   []rule
	wrongFlow Handler
	states    map[session.Flow][]session.State
}

// TableBuilder collects rules at start-up. Errors are accumulated and
// reported by Build.
type TableBuilder struct {
	t    *Table
	errs []error
	seen map[ruleKey]bool
}

// NewTableBuilder returns an empty builder.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{
		t: &Table{
			entries:   make(map[string]entryRule),
			fallbacks: make(map[session.Flow][]rule),
			rules:     make(map[ruleKey][]rule),
			otherwise: make(map[ruleKey]Handler),
			states:    make(map[session.Flow][]session.State),
		},
		seen: make(map[ruleKey]bool),
	}
}

func (b *TableBuilder) fail(format string, args ...any) *TableBuilder {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
	return b
}

func (b *TableBuilder) checkFlow(flow session.Flow) bool {
	if flow == session.FlowNone || !flow.Valid() {
		b.fail("unknown flow %q", flow)
		return false
	}
	return true
}

func (b *TableBuilder) checkState(flow session.Flow, state session.State) bool {
	if state == "" || state == session.Idle {
		b.fail("flow %s: invalid state %q", flow, state)
		return false
	}
	key := ruleKey{flow, state}
	if !b.seen[key] {
		b.seen[key] = true
		b.t.states[flow] = append(b.t.states[flow], state)
	}
	return true
}

// Entry declares the command that begins flow at initial. The handler runs
// against the freshly entered session and may Reject.
func (b *TableBuilder) Entry(flow session.Flow, command string, initial session.State, h Handler) *TableBuilder {
	if !b.checkFlow(flow) || !b.checkState(flow, initial) {
		return b
	}
	if h == nil {
		return b.fail("entry /%s: nil handler", command)
	}
	if command == "" {
		return b.fail("flow %s: empty entry command", flow)
	}
	if prev, dup := b.t.entries[command]; dup {
		return b.fail("entry /%s declared for %s and %s", command, prev.flow, flow)
	}
	for _, e := range b.t.entries {
		if e.flow == flow {
			return b.fail("flow %s has two entry commands: /%s and /%s", flow, e.command, command)
		}
	}
	b.t.entries[command] = entryRule{flow: flow, command: command, initial: initial, handler: h}
	return b
}

// Register appends a rule for (flow, state).
func (b *TableBuilder) Register(flow session.Flow, state session.State, m Matcher, h Handler) *TableBuilder {
	if !b.checkFlow(flow) || !b.checkState(flow, state) {
		return b
	}
	if h == nil || m.fn == nil {
		return b.fail("flow %s state %s: nil matcher or handler", flow, state)
	}
	key := ruleKey{flow, state}
	b.t.rules[key] = append(b.t.rules[key], rule{matcher: m, handler: h})
	return b
}

// Fallback appends a flow-level rule, checked in every state of flow
// before the state's own rules.
func (b *TableBuilder) Fallback(flow session.Flow, m Matcher, h Handler) *TableBuilder {
	if !b.checkFlow(flow) {
		return b
	}
	if h == nil || m.fn == nil {
		return b.fail("flow %s fallback: nil matcher or handler", flow)
	}
	b.t.fallbacks[flow] = append(b.t.fallbacks[flow], rule{matcher: m, handler: h})
	return b
}

// Otherwise sets the handler for user events no rule of (flow, state)
// accepted. Job firings never reach it.
func (b *TableBuilder) Otherwise(flow session.Flow, state session.State, h Handler) *TableBuilder {
	if !b.checkFlow(flow) || !b.checkState(flow, state) {
		return b
	}
	if h == nil {
		return b.fail("flow %s state %s: nil otherwise handler", flow, state)
	}
	key := ruleKey{flow, state}
	if _, dup := b.t.otherwise[key]; dup {
		return b.fail("flow %s state %s: otherwise declared twice", flow, state)
	}
	b.t.otherwise[key] = h
	return b
}

// Global appends a session-independent rule. Global handlers may reply but
// never change the session.
func (b *TableBuilder) Global(m Matcher, h Handler) *TableBuilder {
	if h == nil || m.fn == nil {
		return b.fail("global %s: nil matcher or handler", m)
	}
	b.t.globals = append(b.t.globals, rule{matcher: m, handler: h})
	return b
}

// WrongFlow sets the handler rendering the reply to an entry command sent
// while another flow is active.
func (b *TableBuilder) WrongFlow(h Handler) *TableBuilder {
	if h == nil {
		return b.fail("nil wrong-flow handler")
	}
	b.t.wrongFlow = h
	return b
}

// Build validates and returns the table. The builder must not be reused.
func (b *TableBuilder) Build() (*Table, error) {
	for flow := range b.t.states {
		if !b.hasEntry(flow) {
			b.fail("flow %s has rules but no entry command", flow)
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("build transition table: %w", errors.Join(b.errs...))
	}
	t := b.t
	b.t = nil
	return t, nil
}

func (b *TableBuilder) hasEntry(flow session.Flow) bool {
	for _, e := range b.t.entries {
		if e.flow == flow {
			return true
		}
	}
	return false
}

// EntryCommand returns the entry command of flow.
func (t *Table) EntryCommand(flow session.Flow) (string, bool) {
	for cmd, e := range t.entries {
		if e.flow == flow {
			return cmd, true
		}
	}
	return "", false
}

// States returns the states of flow in declaration order.
func (t *Table) States(flow session.Flow) []session.State {
	out := make([]session.State, len(t.states[flow]))
	copy(out, t.states[flow])
	return out
}

// Commands returns the entry commands, sorted.
func (t *Table) Commands() []string {
	cmds := make([]string, 0, len(t.entries))
	for cmd := range t.entries {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// HasState reports whether state belongs to flow.
func (t *Table) HasState(flow session.Flow, state session.State) bool {
	for _, s := range t.states[flow] {
		if s == state {
			return true
		}
	}
	return false
}
