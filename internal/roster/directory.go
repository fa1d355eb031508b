package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/studybot/internal/session"
)

var (
	// ErrUnknownUser is returned for an identity the roster has never seen.
	ErrUnknownUser = errors.New("unknown user")

	// ErrAlreadyRegistered is returned when a registered user registers
	// again. Roles are fixed once chosen.
	ErrAlreadyRegistered = errors.New("already registered")
)

// Directory is the handlers' view of the roster. Every operation is a
// whole-collection load, modify and save, serialised by one mutex that is
// independent of any session lock.
type Directory struct {
	mu   sync.Mutex
	repo Repository
	loc  *time.Location
}

// NewDirectory wraps repo. Task deadlines are compared as dates in loc.
func NewDirectory(repo Repository, loc *time.Location) *Directory {
	if loc == nil {
		loc = time.UTC
	}
	return &Directory{repo: repo, loc: loc}
}

// Location returns the zone task dates are interpreted in.
func (d *Directory) Location() *time.Location {
	return d.loc
}

// FindUser returns the user for id.
func (d *Directory) FindUser(ctx context.Context, id session.Identity) (User, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.repo.LoadUsers(ctx)
	if err != nil {
		return User{}, false, fmt.Errorf("find user %s: %w", id, err)
	}
	for _, u := range users {
		if u.Identity == id {
			return u, true, nil
		}
	}
	return User{}, false, nil
}

// RoleOf returns the role of id, RoleNone for unknown identities.
func (d *Directory) RoleOf(ctx context.Context, id session.Identity) (Role, error) {
	u, _, err := d.FindUser(ctx, id)
	return u.Role, err
}

// Users returns every known user.
func (d *Directory) Users(ctx context.Context) ([]User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.repo.LoadUsers(ctx)
}

// Touch records id as a known, unregistered user if it is new. The name is
// refreshed when it was empty.
func (d *Directory) Touch(ctx context.Context, id session.Identity, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.repo.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("touch user %s: %w", id, err)
	}
	for i, u := range users {
		if u.Identity != id {
			continue
		}
		if u.Name != "" || name == "" {
			return nil
		}
		users[i].Name = name
		return d.repo.SaveUsers(ctx, users)
	}
	users = append(users, User{Identity: id, Name: name})
	if err := d.repo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("touch user %s: %w", id, err)
	}
	return nil
}

// Register fixes the role (and, for supervisors, the subject) of id.
func (d *Directory) Register(ctx context.Context, id session.Identity, role Role, subject string) (User, error) {
	if role == RoleNone || !role.Valid() {
		return User{}, fmt.Errorf("register %s: invalid role %q", id, role)
	}
	if role == RoleSupervisor && strings.TrimSpace(subject) == "" {
		return User{}, fmt.Errorf("register %s: supervisor needs a subject", id)
	}
	if role == RoleParticipant {
		subject = ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	users, err := d.repo.LoadUsers(ctx)
	if err != nil {
		return User{}, fmt.Errorf("register %s: %w", id, err)
	}
	idx := -1
	for i, u := range users {
		if u.Identity == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return User{}, fmt.Errorf("register %s: %w", id, ErrUnknownUser)
	}
	if users[idx].Registered() {
		return users[idx], fmt.Errorf("register %s: %w as %s", id, ErrAlreadyRegistered, users[idx].Role)
	}

	users[idx].Role = role
	users[idx].Subject = subject
	if err := d.repo.SaveUsers(ctx, users); err != nil {
		return User{}, fmt.Errorf("register %s: %w", id, err)
	}
	return users[idx], nil
}

// AddTask appends a task.
func (d *Directory) AddTask(ctx context.Context, t Task) error {
	if t.Subject == "" || t.Title == "" {
		return fmt.Errorf("add task: subject and title are required")
	}
	t.Deadline = DateOf(t.Deadline, d.loc)

	d.mu.Lock()
	defer d.mu.Unlock()

	tasks, err := d.repo.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	tasks = append(tasks, t)
	if err := d.repo.SaveTasks(ctx, tasks); err != nil {
		return fmt.Errorf("add task: %w", err)
	}
	return nil
}

// Tasks returns every task in insertion order.
func (d *Directory) Tasks(ctx context.Context) ([]Task, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.repo.LoadTasks(ctx)
}

// TasksFor returns the tasks of subject in insertion order. Subjects
// compare case-insensitively.
func (d *Directory) TasksFor(ctx context.Context, subject string) ([]Task, error) {
	tasks, err := d.Tasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("tasks for %s: %w", subject, err)
	}
	var out []Task
	for _, t := range tasks {
		if strings.EqualFold(t.Subject, subject) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Subjects returns the distinct subjects that have tasks, in order of
// first appearance.
func (d *Directory) Subjects(ctx context.Context) ([]string, error) {
	tasks, err := d.Tasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("subjects: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		key := strings.ToLower(t.Subject)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t.Subject)
	}
	return out, nil
}

// SweepExpired drops tasks whose deadline date is before the date of now
// and returns how many were dropped. Tasks due today are kept: a task is
// listed through the whole of its deadline day and goes at the first
// sweep after it. A cut at deadline midnight against now would drop it
// at the sweep on the day itself.
func (d *Directory) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks, err := d.repo.LoadTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	today := dateKey(now, d.loc)
	kept := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if dateKey(t.Deadline, d.loc) >= today {
			kept = append(kept, t)
		}
	}
	removed := len(tasks) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := d.repo.SaveTasks(ctx, kept); err != nil {
		return 0, fmt.Errorf("sweep: %w", err)
	}
	return removed, nil
}
