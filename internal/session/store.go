package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidIdentity is returned for an empty identity.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrUnchanged may be returned by a MutateFunc to end a commit without
	// writing. Commit hands it back to the caller so it can tell a dropped
	// event from an applied one.
	ErrUnchanged = errors.New("session unchanged")
)

// MutateFunc computes the next session from the current one. It runs while
// the identity's commit lock is held and must not call back into the store
// for the same identity.
//
// Returning an error leaves the stored session untouched.
type MutateFunc func(cur Session) (Session, error)

// Store keeps one Session per Identity.
type Store interface {
	// Get returns the current session for id, creating the idle session
	// if none exists yet.
	Get(ctx context.Context, id Identity) (Session, error)

	// Commit runs fn against the current session and stores its result
	// atomically. The returned session is the stored one: the new state on
	// success, the unchanged state on error.
	Commit(ctx context.Context, id Identity, fn MutateFunc) (Session, error)
}

// apply is the commit step shared by all stores: run fn, stamp the result
// and check invariants.
func apply(id Identity, cur Session, fn MutateFunc, now time.Time) (Session, error) {
	next, err := fn(cur.Clone())
	if err != nil {
		return cur, err
	}
	next.Identity = id
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	if err := next.Validate(); err != nil {
		return cur, fmt.Errorf("commit %s: %w", id, err)
	}
	return next, nil
}

func checkIdentity(id Identity) error {
	if id == "" {
		return ErrInvalidIdentity
	}
	return nil
}
