package transport

import (
	"context"
	"sync"

	"github.com/roach88/studybot/internal/session"
)

// Delivery is one call recorded by a Recorder.
type Delivery struct {
	Identity session.Identity
	Edit     bool
	Message  Message
}

// Recorder is an in-memory Transport that keeps every delivery. Used by
// tests and by the scenario harness.
type Recorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send implements Transport.
func (r *Recorder) Send(_ context.Context, id session.Identity, msg Message) error {
	r.record(Delivery{Identity: id, Message: msg})
	return nil
}

// EditLast implements Transport.
func (r *Recorder) EditLast(_ context.Context, id session.Identity, msg Message) error {
	r.record(Delivery{Identity: id, Edit: true, Message: msg})
	return nil
}

func (r *Recorder) record(d Delivery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, d)
}

// Deliveries returns a copy of everything recorded so far.
func (r *Recorder) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// For returns the deliveries addressed to id.
func (r *Recorder) For(id session.Identity) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Delivery
	for _, d := range r.deliveries {
		if d.Identity == id {
			out = append(out, d)
		}
	}
	return out
}

// Last returns the latest delivery to id.
func (r *Recorder) Last(id session.Identity) (Delivery, bool) {
	all := r.For(id)
	if len(all) == 0 {
		return Delivery{}, false
	}
	return all[len(all)-1], true
}

// Drain returns and forgets everything recorded so far.
func (r *Recorder) Drain() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.deliveries
	r.deliveries = nil
	return out
}
