// Package progress records the progress stream of a single job and fans it
// out to any number of subscribers.
package progress

import (
	"context"
	"sync"
	"time"
)

// Event is one sequenced progress observation.
type Event struct {
	Seq     int64     `json:"seq"`
	JobID   string    `json:"jobId"`
	Percent float64   `json:"percent"`
	Phase   string    `json:"phase"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Tracker keeps the complete, ordered event history of one job.  Percent is
// clamped to [0,100] and never decreases.  After Close no further events are
// accepted and every subscription ends once it has drained the history.
type Tracker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobID   string
	events  []Event
	nextSeq int64
	last    float64
	closed  bool
}

// NewTracker creates an empty tracker for jobID.
func NewTracker(jobID string) *Tracker {
	t := &Tracker{jobID: jobID}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Publish appends one event and wakes subscribers.  It returns the stored
// event and false when the tracker is already closed.
func (t *Tracker) Publish(phase string, percent float64, message string) (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Event{}, false
	}
	switch {
	case percent > 100:
		percent = 100
	case percent < 0:
		percent = 0
	}
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	t.nextSeq++

	ev := Event{
		Seq:     t.nextSeq,
		JobID:   t.jobID,
		Percent: percent,
		Phase:   phase,
		Message: message,
		Time:    time.Now().UTC(),
	}
	t.events = append(t.events, ev)
	t.cond.Broadcast()
	return ev, true
}

// Close ends the stream.  It is idempotent.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.cond.Broadcast()
	t.mu.Unlock()
}

// Closed reports whether the stream has ended.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Last returns the most recent event, if any.
func (t *Tracker) Last() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return Event{}, false
	}
	return t.events[len(t.events)-1], true
}

// Since returns events with sequence strictly greater than seq.
func (t *Tracker) Since(seq int64) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Event, 0, len(t.events))
	for _, ev := range t.events {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribe returns a channel that replays the history from the first event
// and then follows live events.  The channel is closed after the final event
// of a closed tracker has been delivered, or when ctx is done.  Every call
// yields an independent stream.
func (t *Tracker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})

	go func() {
		defer close(ch)
		defer stop()

		next := 0
		for {
			t.mu.Lock()
			for next >= len(t.events) && !t.closed && ctx.Err() == nil {
				t.cond.Wait()
			}
			if next >= len(t.events) {
				t.mu.Unlock()
				return
			}
			batch := append([]Event(nil), t.events[next:]...)
			next = len(t.events)
			t.mu.Unlock()

			for _, ev := range batch {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
