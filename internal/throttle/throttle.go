// Package throttle bounds concurrent execution with a semaphore plus a
// bounded admission queue, rejecting fast once both are exhausted.
package throttle

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Execute when both the semaphore and the queue
// are exhausted.
var ErrQueueFull = errors.New("queue full")

// Throttle implements spec §4.3: a buffered-channel semaphore of
// max_concurrent permits, backed by a buffered-channel queue of queue_size
// placeholder slots.
type Throttle struct {
	sem   chan struct{}
	queue chan struct{}

	mu         sync.Mutex
	active     int
	queued     int
	peakActive int
	peakQueued int
}

// New creates a Throttle allowing maxConcurrent simultaneous operations and
// queueSize additional callers waiting for a permit.
func New(maxConcurrent, queueSize int) *Throttle {
	return &Throttle{
		sem:   make(chan struct{}, maxConcurrent),
		queue: make(chan struct{}, queueSize),
	}
}

// Stats is a snapshot of the throttle's load.
type Stats struct {
	Active     int
	Queued     int
	PeakActive int
	PeakQueued int
}

func (t *Throttle) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{Active: t.active, Queued: t.queued, PeakActive: t.peakActive, PeakQueued: t.peakQueued}
}

// Execute runs op once a permit is available, enqueuing the caller if the
// semaphore is fully held. If the queue itself is full, it returns
// ErrQueueFull immediately without running op.
func (t *Throttle) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	select {
	case t.sem <- struct{}{}:
		// permit acquired immediately
	default:
		select {
		case t.queue <- struct{}{}:
			t.mu.Lock()
			t.queued++
			if t.queued > t.peakQueued {
				t.peakQueued = t.queued
			}
			t.mu.Unlock()

			defer func() {
				t.mu.Lock()
				t.queued--
				t.mu.Unlock()
				<-t.queue
			}()

			select {
			case t.sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return ErrQueueFull
		}
	}

	t.mu.Lock()
	t.active++
	if t.active > t.peakActive {
		t.peakActive = t.active
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.active--
		t.mu.Unlock()
		<-t.sem
		// wake one queued waiter, if any, by leaving the semaphore slot free;
		// the waiter blocked on t.sem above will pick it up.
	}()

	return op(ctx)
}

// ActiveCount reports the current number of running operations, for
// tests/metrics that don't need the full Stats snapshot.
func (t *Throttle) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
