// Package roster holds the two flat collections the bot persists: users
// and tasks. Collections are read and replaced whole, behind a Repository;
// Directory adds the read-modify-write operations the flows need and
// serialises them.
package roster

import (
	"context"
	"time"

	"github.com/roach88/studybot/internal/session"
)

// Role is what a registered user does.
type Role string

const (
	RoleNone        Role = ""
	RoleSupervisor  Role = "supervisor"
	RoleParticipant Role = "participant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleNone, RoleSupervisor, RoleParticipant:
		return true
	}
	return false
}

func (r Role) String() string {
	if r == RoleNone {
		return "unregistered"
	}
	return string(r)
}

// User is a known identity. Subject is only meaningful for supervisors.
type User struct {
	Identity session.Identity `json:"identity"`
	Name     string           `json:"name,omitempty"`
	Role     Role             `json:"role,omitempty"`
	Subject  string           `json:"subject,omitempty"`
}

// Registered reports whether u has picked a role.
func (u User) Registered() bool {
	return u.Role != RoleNone
}

// Task is a dated piece of work a supervisor set for a subject. Deadline
// is a date: midnight in the bot's time zone.
type Task struct {
	Subject  string    `json:"subject"`
	Title    string    `json:"title"`
	Deadline time.Time `json:"deadline"`
}

// Repository loads and replaces whole collections.
type Repository interface {
	LoadUsers(ctx context.Context) ([]User, error)
	SaveUsers(ctx context.Context, users []User) error
	LoadTasks(ctx context.Context) ([]Task, error)
	SaveTasks(ctx context.Context, tasks []Task) error
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// dateKey orders calendar days in loc.
func dateKey(t time.Time, loc *time.Location) int {
	t = t.In(loc)
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
