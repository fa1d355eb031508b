// Package scheduler runs deferred callbacks: one-shot jobs that fire once
// after a delay, and daily jobs that fire at a wall-clock time in a given
// location every calendar day.
//
// Jobs live in a binary heap ordered by due time, then by insertion order.
// A single clock timer is armed for the earliest due job. When it fires,
// every job due at the current instant is taken off the heap and its
// callback run in due order.
//
// Delivery rules:
//   - a one-shot job is removed before its callback runs, so it is never
//     delivered twice, even if the callback fails or panics
//   - a daily job is re-armed for the next calendar day before its callback
//     runs, so the schedule survives a failing callback
//   - if the clock jumped over several occurrences of a daily job, each
//     missed occurrence fires once, oldest first
//   - callback errors and panics are logged and counted, never retried
//
// The scheduler never touches sessions itself. Callbacks that need to
// mutate a session go through session.Store.Commit like any other writer.
package scheduler
