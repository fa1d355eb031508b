package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher decides whether a rule applies to an event.
type Matcher struct {
	name string
	fn   func(Event) bool
}

// Match reports whether ev is accepted.
func (m Matcher) Match(ev Event) bool {
	return m.fn != nil && m.fn(ev)
}

func (m Matcher) String() string {
	return m.name
}

// OnCommand matches the command name (without the leading slash).
func OnCommand(name string) Matcher {
	return Matcher{
		name: "/" + name,
		fn: func(ev Event) bool {
			return ev.Kind == EventCommand && ev.Payload == name
		},
	}
}

// OnText matches any free text.
func OnText() Matcher {
	return Matcher{
		name: "text",
		fn:   func(ev Event) bool { return ev.Kind == EventText },
	}
}

// OnTextMatching matches free text against pattern. The pattern is compiled
// once; an invalid pattern panics at table construction.
func OnTextMatching(pattern string) Matcher {
	re := regexp.MustCompile(pattern)
	return Matcher{
		name: fmt.Sprintf("text~%s", pattern),
		fn: func(ev Event) bool {
			return ev.Kind == EventText && re.MatchString(strings.TrimSpace(ev.Payload))
		},
	}
}

// OnButton matches button data against an anchored pattern, so
// OnButton("cancel") does not accept "cancel_all".
func OnButton(pattern string) Matcher {
	re := regexp.MustCompile("^(?:" + pattern + ")$")
	return Matcher{
		name: "!" + pattern,
		fn: func(ev Event) bool {
			return ev.Kind == EventButton && re.MatchString(ev.Payload)
		},
	}
}

// OnJob matches a job firing with the given payload.
func OnJob(payload string) Matcher {
	return Matcher{
		name: "job:" + payload,
		fn: func(ev Event) bool {
			return ev.Kind == EventJobFired && ev.Payload == payload
		},
	}
}

// OnAny matches every event except job firings.
func OnAny() Matcher {
	return Matcher{
		name: "any",
		fn:   func(ev Event) bool { return ev.Kind != EventJobFired },
	}
}

// AnyOf matches if any of ms matches.
func AnyOf(ms ...Matcher) Matcher {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.name
	}
	return Matcher{
		name: strings.Join(names, "|"),
		fn: func(ev Event) bool {
			for _, m := range ms {
				if m.Match(ev) {
					return true
				}
			}
			return false
		},
	}
}
