// Package bot is the study bot's handler set: the registration, supervisor
// and participant flows expressed as an engine transition table, plus the
// daily task maintenance job.
//
// Handlers read and write the roster through a roster.Directory and keep
// per-conversation data in the session's typed scratch. They never touch
// the session store or the scheduler directly: focus-session timers are
// requested through engine.Result.WithJob and fire back into the table as
// job events.
package bot
