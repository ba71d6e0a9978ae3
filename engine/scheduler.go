package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler defers engine re-apply passes. Bursts of requests are coalesced
// into a single pending run.
type Scheduler interface {
	// ScheduleCoalesced arranges fn to run no sooner than minInterval from
	// now. When a run is already pending it is replaced by fn keeping its
	// original deadline.
	ScheduleCoalesced(fn func(), minInterval time.Duration)
	// RunImmediately runs pending work now, if any.
	RunImmediately()
	// Cancel drops pending work.
	Cancel()
}

// Loop is a Scheduler driven by the host: due work runs only from RunDue,
// RunImmediately or Wait, on the calling goroutine.
type Loop struct {
	mu       sync.Mutex
	now      func() time.Time
	fn       func()
	deadline time.Time
	wake     chan struct{}
}

// LoopOption configures Loop.
type LoopOption func(*Loop)

// WithClock replaces time source, used for testing.
func WithClock(now func() time.Time) LoopOption {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{now: time.Now, wake: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) ScheduleCoalesced(fn func(), minInterval time.Duration) {
	l.mu.Lock()
	if l.fn == nil {
		l.deadline = l.now().Add(minInterval)
	}
	l.fn = fn
	l.mu.Unlock()
	l.signal()
}

// Pending reports whether there is work waiting and its deadline.
func (l *Loop) Pending() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deadline, l.fn != nil
}

// RunDue runs pending work if its deadline has passed. Returns true when
// something was run.
func (l *Loop) RunDue() bool {
	l.mu.Lock()
	if l.fn == nil || l.now().Before(l.deadline) {
		l.mu.Unlock()
		return false
	}
	fn := l.take()
	l.mu.Unlock()

	fn()
	return true
}

func (l *Loop) RunImmediately() {
	l.mu.Lock()
	fn := l.take()
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (l *Loop) Cancel() {
	l.mu.Lock()
	l.take()
	l.mu.Unlock()
	l.signal()
}

// Wait runs scheduled work as it becomes due until nothing is pending or ctx
// is done. Work scheduled by the work itself is waited for as well.
func (l *Loop) Wait(ctx context.Context) error {
	for {
		deadline, ok := l.Pending()
		if !ok {
			return nil
		}
		if l.RunDue() {
			continue
		}

		timer := time.NewTimer(deadline.Sub(l.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-l.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// take must be called with mutex held.
func (l *Loop) take() func() {
	fn := l.fn
	l.fn = nil
	l.deadline = time.Time{}
	return fn
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
