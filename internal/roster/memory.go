package roster

import (
	"context"
	"sync"
)

// Memory is an in-process Repository.
type Memory struct {
	mu    sync.Mutex
	users []User
	tasks []Task
}

// NewMemory returns a Memory seeded with copies of users and tasks.
func NewMemory(users []User, tasks []Task) *Memory {
	return &Memory{users: clone(users), tasks: clone(tasks)}
}

// LoadUsers implements Repository.
func (m *Memory) LoadUsers(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.users), nil
}

// SaveUsers implements Repository.
func (m *Memory) SaveUsers(_ context.Context, users []User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = clone(users)
	return nil
}

// LoadTasks implements Repository.
func (m *Memory) LoadTasks(context.Context) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.tasks), nil
}

// SaveTasks implements Repository.
func (m *Memory) SaveTasks(_ context.Context, tasks []Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = clone(tasks)
	return nil
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
