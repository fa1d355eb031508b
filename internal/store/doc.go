// Package store provides SQLite-backed durable storage for the roster:
// registered users and supervisor-created tasks.
//
// Store implements roster.Repository. Each Save replaces a whole
// collection inside one transaction, so a reader never sees a half
// written list.
//
// Connections are opened in WAL mode with synchronous=NORMAL and a five
// second busy timeout. Older files are upgraded on Open through the
// numbered migrations, tracked in user_version.
//
// Deadlines are stored as YYYY-MM-DD text and read back as midnight in
// the store's location.
package store
