// internal/loop/loop.go
package loop

import (
	"context"
	"sync"
	"time"
)

// Loop is a single-threaded cooperative event loop.
// Every callback runs on the goroutine that drives the loop (Run or Iterate).
// Other goroutines hand work over with Post; nothing else touches loop-owned state.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wakeup chan struct{}
}

// Source is a pending idle or timeout callback. Remove cancels it.
// Remove must be called from the loop goroutine.
type Source struct {
	removed bool
	timer   *time.Timer
}

// Remove cancels the callback if it has not run yet.
func (s *Source) Remove() {
	if s == nil || s.removed {
		return
	}
	s.removed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Pending reports whether the callback is still scheduled.
func (s *Source) Pending() bool { return s != nil && !s.removed }

// New creates an empty loop.
func New() *Loop {
	return &Loop{wakeup: make(chan struct{}, 1)}
}

// Post queues fn for the next loop turn. Safe from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Idle schedules a one-shot callback on the next loop turn.
func (l *Loop) Idle(fn func()) *Source {
	s := &Source{}
	l.Post(func() {
		if s.removed {
			return
		}
		s.removed = true
		fn()
	})
	return s
}

// Timeout schedules a one-shot callback after d.
func (l *Loop) Timeout(d time.Duration, fn func()) *Source {
	s := &Source{}
	s.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if s.removed {
				return
			}
			s.removed = true
			fn()
		})
	})
	return s
}

// Iterate runs queued callbacks until the queue is empty.
// Callbacks queued while draining run in the same call.
// Returns the number of callbacks run.
func (l *Loop) Iterate() int {
	n := 0
	for {
		batch := l.take()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.Iterate()
		select {
		case <-ctx.Done():
			return
		case <-l.wakeup:
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}
