package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/studybot/internal/roster"
	"github.com/roach88/studybot/internal/session"
)

const dateLayout = "2006-01-02"

var _ roster.Repository = (*Store)(nil)

// LoadUsers returns every user in insertion order.
func (s *Store) LoadUsers(ctx context.Context) ([]roster.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, name, role, subject
		FROM users
		ORDER BY pos ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var users []roster.User
	for rows.Next() {
		var (
			u        roster.User
			identity string
			role     string
		)
		if err := rows.Scan(&identity, &u.Name, &role, &u.Subject); err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		u.Identity = session.Identity(identity)
		u.Role = roster.Role(role)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

// SaveUsers replaces the user collection.
func (s *Store) SaveUsers(ctx context.Context, users []roster.User) error {
	err := s.replace(ctx, "users",
		`INSERT INTO users (identity, pos, name, role, subject) VALUES (?, ?, ?, ?, ?)`,
		len(users), func(i int) ([]any, error) {
			u := users[i]
			if !u.Role.Valid() {
				return nil, fmt.Errorf("user %s: invalid role %q", u.Identity, u.Role)
			}
			return []any{string(u.Identity), i, u.Name, string(u.Role), u.Subject}, nil
		})
	if err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

// LoadTasks returns every task in insertion order. Deadlines come back as
// midnight in the store's location.
func (s *Store) LoadTasks(ctx context.Context) ([]roster.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, title, deadline
		FROM tasks
		ORDER BY pos ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []roster.Task
	for rows.Next() {
		var (
			t        roster.Task
			deadline string
		)
		if err := rows.Scan(&t.Subject, &t.Title, &deadline); err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
		t.Deadline, err = time.ParseInLocation(dateLayout, deadline, s.loc)
		if err != nil {
			return nil, fmt.Errorf("load tasks: deadline %q: %w", deadline, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return tasks, nil
}

// SaveTasks replaces the task collection.
func (s *Store) SaveTasks(ctx context.Context, tasks []roster.Task) error {
	err := s.replace(ctx, "tasks",
		`INSERT INTO tasks (pos, subject, title, deadline) VALUES (?, ?, ?, ?)`,
		len(tasks), func(i int) ([]any, error) {
			t := tasks[i]
			return []any{i, t.Subject, t.Title, t.Deadline.In(s.loc).Format(dateLayout)}, nil
		})
	if err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}
