package engine

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the Runner pool size when none is configured.
const DefaultWorkers = 4

// Runner is the inbound event path: a fixed pool of workers, each draining
// its own FIFO queue through Engine.Handle.
//
// Events are routed by FNV-1a hash of the identity, so every event of one
// identity is handled by the same worker in arrival order, while other
// identities proceed on other workers.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): call once
type Runner struct {
	engine  *Engine
	queues  []*eventQueue
	logger  *slog.Logger
	handled atomic.Int64
}

// NewRunner creates a Runner with n workers; n < 1 means DefaultWorkers.
func NewRunner(e *Engine, n int) *Runner {
	if n < 1 {
		n = DefaultWorkers
	}
	queues := make([]*eventQueue, n)
	for i := range queues {
		queues[i] = newEventQueue()
	}
	return &Runner{engine: e, queues: queues, logger: e.logger}
}

// Workers returns the pool size.
func (r *Runner) Workers() int {
	return len(r.queues)
}

// Handled returns the number of events processed so far.
func (r *Runner) Handled() int64 {
	return r.handled.Load()
}

// Submit queues ev for its identity's worker. Returns false once the
// runner is stopped.
func (r *Runner) Submit(ev Event) bool {
	return r.queues[r.shard(string(ev.Identity))].Enqueue(ev)
}

// Pending returns the number of queued, unprocessed events.
func (r *Runner) Pending() int {
	n := 0
	for _, q := range r.queues {
		n += q.Len()
	}
	return n
}

func (r *Runner) shard(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(r.queues)))
}

// Run starts the workers and blocks until ctx is cancelled or Stop is
// called. After Stop, queued events are drained before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting", "workers", len(r.queues))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range r.queues {
		i, q := i, q
		g.Go(func() error {
			return r.work(gctx, i, q)
		})
	}
	err := g.Wait()
	r.logger.Info("runner stopped", "handled", r.handled.Load())
	return err
}

// Stop closes every queue.
func (r *Runner) Stop() {
	for _, q := range r.queues {
		q.Close()
	}
}

func (r *Runner) work(ctx context.Context, worker int, q *eventQueue) error {
	for {
		if ev, ok := q.TryDequeue(); ok {
			r.engine.Handle(ctx, ev)
			r.handled.Add(1)
			continue
		}

		select {
		case <-ctx.Done():
			q.Close()
			return ctx.Err()
		case <-q.Wait():
			// A signal may be stale (its event already dequeued); only a
			// closed, empty queue ends the worker.
			if q.Len() == 0 && q.Closed() {
				r.logger.Debug("worker stopping: queue closed", "worker", worker)
				return nil
			}
		}
	}
}
