package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/studybot/internal/session"
)

// JobID identifies a scheduled job.
type JobID string

// Kind distinguishes one-shot from daily jobs.
type Kind int

const (
	OneShot Kind = iota
	Daily
)

func (k Kind) String() string {
	switch k {
	case OneShot:
		return "oneshot"
	case Daily:
		return "daily"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Valid reports whether t is a real time of day.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Job is the public view of a scheduled job.
type Job struct {
	ID   JobID
	Kind Kind

	// Identity is empty for global jobs.
	Identity session.Identity

	// Due is the instant this firing was scheduled for.
	Due time.Time

	// Payload tells the callback what the job is about.
	Payload string

	// Daily jobs only.
	At       TimeOfDay
	Location *time.Location
}

// Callback is run when a job fires. The context is the one passed to
// Scheduler.Start.
type Callback func(ctx context.Context, job Job) error

// nextOccurrence returns the first instant strictly after `after` whose
// wall-clock time in loc is at.
func nextOccurrence(at TimeOfDay, loc *time.Location, after time.Time) time.Time {
	t := after.In(loc)
	candidate := time.Date(t.Year(), t.Month(), t.Day(), at.Hour, at.Minute, 0, 0, loc)
	if candidate.After(after) {
		return candidate
	}
	return time.Date(t.Year(), t.Month(), t.Day()+1, at.Hour, at.Minute, 0, 0, loc)
}
