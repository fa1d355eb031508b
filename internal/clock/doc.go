// Package clock provides the time sources used by the scheduler and the
// conversation engine.
//
// Two kinds of clocks live here:
//
//   - Clock: wall-clock time with timers. Production code uses Real(); tests
//     use Fake(), whose timers fire only when Advance is called. AfterFunc
//     callbacks run synchronously inside Advance, in deadline order, so a test
//     can step a scheduler forward without sleeping.
//
//   - Sequence: a monotonic logical counter. It orders things that must never
//     be ordered by wall-clock time (job insertion order, dispatch tokens).
//
// Components never call time.Now or time.AfterFunc directly; they hold a
// Clock field.
package clock
