package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/studybot/internal/clock"
	"github.com/roach88/studybot/internal/idgen"
	"github.com/roach88/studybot/internal/session"
)

var (
	// ErrInvalidDelay is returned for a one-shot delay that is not positive.
	ErrInvalidDelay = errors.New("delay must be positive")

	// ErrInvalidTimeOfDay is returned for an out-of-range daily time.
	ErrInvalidTimeOfDay = errors.New("invalid time of day")

	// ErrStopped is returned when scheduling on a stopped scheduler.
	ErrStopped = errors.New("scheduler stopped")
)

// Observer receives scheduler events for metrics.
type Observer interface {
	JobScheduled(kind string)
	JobFired(kind, outcome string)
	JobsCancelled(n int)
	QueueDepth(n int)
}

type noopObserver struct{}

func (noopObserver) JobScheduled(string)     {}
func (noopObserver) JobFired(string, string) {}
func (noopObserver) JobsCancelled(int)       {}
func (noopObserver) QueueDepth(int)          {}

// Fire outcomes reported to the Observer.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Scheduler holds pending jobs and fires them from clock timers.
//
// Thread-safety: every method is safe for concurrent use. Callbacks run
// without the scheduler lock held and may schedule or cancel jobs.
type Scheduler struct {
	clock    clock.Clock
	ids      idgen.Generator
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	queue    jobHeap
	seq      *clock.Sequence
	timer    *clock.Timer
	armedFor time.Time
	ctx      context.Context
	running  bool
	stopped  bool

	inflight sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Default: clock.Real().
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithIDs sets the job ID generator. Default: idgen.UUIDv7.
func WithIDs(g idgen.Generator) Option {
	return func(s *Scheduler) { s.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// New returns an idle scheduler. Jobs may be added before Start; nothing
// fires until Start is called.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clock.Real(),
		ids:      idgen.UUIDv7{},
		logger:   slog.Default(),
		observer: noopObserver{},
		seq:      clock.NewSequence(),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleOnceAfter runs cb once, delay from now, on behalf of identity.
// The delay is a hard deadline: later activity on the identity does not
// move it.
func (s *Scheduler) ScheduleOnceAfter(identity session.Identity, delay time.Duration, payload string, cb Callback) (JobID, error) {
	if delay <= 0 {
		return "", fmt.Errorf("%w: %s", ErrInvalidDelay, delay)
	}
	if cb == nil {
		return "", errors.New("nil callback")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrStopped
	}

	job := Job{
		ID:       JobID(s.ids.Generate()),
		Kind:     OneShot,
		Identity: identity,
		Due:      s.clock.Now().Add(delay),
		Payload:  payload,
	}
	s.pushLocked(job, cb)

	s.logger.Debug("job scheduled",
		"job", job.ID,
		"kind", job.Kind,
		"identity", identity,
		"payload", payload,
		"due", job.Due,
	)
	return job.ID, nil
}

// ScheduleDaily runs cb every day at the wall-clock time at in loc. A nil
// loc means UTC. The job is global: it belongs to no identity.
func (s *Scheduler) ScheduleDaily(at TimeOfDay, loc *time.Location, payload string, cb Callback) (JobID, error) {
	if !at.Valid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidTimeOfDay, at)
	}
	if cb == nil {
		return "", errors.New("nil callback")
	}
	if loc == nil {
		loc = time.UTC
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrStopped
	}

	job := Job{
		ID:       JobID(s.ids.Generate()),
		Kind:     Daily,
		Due:      nextOccurrence(at, loc, s.clock.Now()),
		Payload:  payload,
		At:       at,
		Location: loc,
	}
	s.pushLocked(job, cb)

	s.logger.Info("daily job scheduled",
		"job", job.ID,
		"payload", payload,
		"at", at.String(),
		"location", loc.String(),
		"first", job.Due,
	)
	return job.ID, nil
}

// CancelAllFor removes every pending job of identity and returns how many
// were removed. Cancelling with nothing pending is a no-op. Global jobs are
// never matched.
func (s *Scheduler) CancelAllFor(identity session.Identity) int {
	if identity == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.queue.removeIf(func(e *entry) bool { return e.job.Identity == identity })
	if n > 0 {
		s.observer.JobsCancelled(n)
		s.observer.QueueDepth(s.queue.Len())
		s.armLocked()
		s.logger.Debug("jobs cancelled", "identity", identity, "count", n)
	}
	return n
}

// Cancel removes a single job. It reports whether the job was pending.
func (s *Scheduler) Cancel(id JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.queue.removeIf(func(e *entry) bool { return e.job.ID == id })
	if n > 0 {
		s.observer.JobsCancelled(n)
		s.observer.QueueDepth(s.queue.Len())
		s.armLocked()
	}
	return n > 0
}

// Next returns the due time of the earliest pending job.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e := s.queue.peek(); e != nil {
		return e.job.Due, true
	}
	return time.Time{}, false
}

// Pending returns the number of queued jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Jobs returns the pending jobs in firing order.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(jobHeap, len(s.queue))
	copy(entries, s.queue)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.job.Due.Equal(b.job.Due) {
			return a.job.Due.Before(b.job.Due)
		}
		return a.seq < b.seq
	})

	jobs := make([]Job, len(entries))
	for i, e := range entries {
		jobs[i] = e.job
	}
	return jobs
}

// Start begins firing jobs. Callbacks receive ctx. Calling Start twice is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.running {
		return nil
	}
	s.ctx = ctx
	s.running = true
	s.armLocked()
	s.logger.Debug("scheduler started", "pending", s.queue.Len())
	return nil
}

// Stop disarms the timer, rejects further scheduling and waits for
// callbacks already running to return. Pending jobs are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.running = false
	s.timer.Stop()
	s.timer = nil
	dropped := s.queue.Len()
	s.queue = nil
	s.mu.Unlock()

	s.inflight.Wait()
	s.logger.Debug("scheduler stopped", "dropped", dropped)
}

func (s *Scheduler) pushLocked(job Job, cb Callback) {
	heap.Push(&s.queue, &entry{job: job, callback: cb, seq: s.seq.Next()})
	s.observer.JobScheduled(job.Kind.String())
	s.observer.QueueDepth(s.queue.Len())
	s.armLocked()
}

// armLocked points the timer at the earliest due job.
func (s *Scheduler) armLocked() {
	top := s.queue.peek()
	if !s.running || top == nil {
		s.timer.Stop()
		s.timer = nil
		return
	}
	if s.timer != nil && s.armedFor.Equal(top.job.Due) {
		return
	}
	s.timer.Stop()

	delay := top.job.Due.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	s.armedFor = top.job.Due
	s.timer = s.clock.AfterFunc(delay, s.fire)
}

type firing struct {
	job      Job
	callback Callback
}

// fire runs every job due now. It tolerates spurious calls from timers that
// were stopped too late: nothing fires unless it is due.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	ctx := s.ctx

	var due []firing
	for {
		top := s.queue.peek()
		if top == nil || top.job.Due.After(now) {
			break
		}
		heap.Pop(&s.queue)
		due = append(due, firing{job: top.job, callback: top.callback})

		if top.job.Kind == Daily {
			// Re-arm before the callback runs. If the next occurrence is
			// also in the past it is popped again on the next iteration.
			next := *top
			next.job.Due = nextOccurrence(top.job.At, top.job.Location, top.job.Due)
			next.seq = s.seq.Next()
			heap.Push(&s.queue, &next)
		}
	}
	// Force a fresh timer: the one that called us is spent, or was stale.
	s.armedFor = time.Time{}
	s.armLocked()
	s.observer.QueueDepth(s.queue.Len())
	s.inflight.Add(len(due))
	s.mu.Unlock()

	for _, f := range due {
		s.run(ctx, f)
	}
}

func (s *Scheduler) run(ctx context.Context, f firing) {
	defer s.inflight.Done()

	kind := f.job.Kind.String()
	outcome := OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomePanic
			s.logger.Error("job callback panicked",
				"job", f.job.ID,
				"kind", kind,
				"identity", f.job.Identity,
				"payload", f.job.Payload,
				"panic", r,
			)
		}
		s.observer.JobFired(kind, outcome)
	}()

	s.logger.Debug("job firing",
		"job", f.job.ID,
		"kind", kind,
		"identity", f.job.Identity,
		"payload", f.job.Payload,
		"due", f.job.Due,
	)
	if err := f.callback(ctx, f.job); err != nil {
		outcome = OutcomeError
		s.logger.Error("job callback failed",
			"job", f.job.ID,
			"kind", kind,
			"identity", f.job.Identity,
			"payload", f.job.Payload,
			"error", err,
		)
	}
}
