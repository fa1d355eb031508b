// Package session holds the per-identity conversation record and the stores
// that keep it.
//
// A Session says which flow an identity is in, which step of that flow is
// active, and the flow-local scratch data the flow has gathered so far.
// Sessions are created lazily on first access and never deleted.
//
// CONCURRENCY:
//
// Store.Commit is the single mutation primitive. Commits for one identity
// are serialised; commits for different identities run concurrently. Both
// the conversation engine and scheduled job callbacks go through Commit, so
// a timer firing and a user message racing for the same identity are
// strictly ordered and the loser observes the winner's post-state.
//
// INVARIANTS (checked on every commit):
//   - Flow == FlowNone if and only if State == Idle
//   - idle sessions carry no scratch
//   - an active session's scratch belongs to its flow
//   - Version increases by exactly one per commit
package session
