package session

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/studybot/internal/clock"
)

// MemoryStore is an in-process Store. It is the default for single-process
// deployments and for tests.
type MemoryStore struct {
	locks keyedMutex
	clock clock.Clock

	mu       sync.RWMutex
	sessions map[Identity]Session
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to stamp UpdatedAt.
func WithClock(c clock.Clock) MemoryOption {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		clock:    clock.Real(),
		sessions: make(map[Identity]Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id Identity) (Session, error) {
	if err := checkIdentity(id); err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()
	return s.load(id).Clone(), nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(ctx context.Context, id Identity, fn MutateFunc) (Session, error) {
	if err := checkIdentity(id); err != nil {
		return Session{}, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	cur := s.load(id)
	next, err := apply(id, cur, fn, s.clock.Now())
	if err != nil {
		return cur.Clone(), err
	}

	s.mu.Lock()
	s.sessions[id] = next
	s.mu.Unlock()
	return next.Clone(), nil
}

// List returns a snapshot of every known session ordered by identity.
func (s *MemoryStore) List() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// load returns the stored session, creating the idle one if absent. The
// identity lock must be held.
func (s *MemoryStore) load(id Identity) Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	sess = New(id)
	sess.UpdatedAt = s.clock.Now()
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return sess
}
