package core

import (
	"context"
	"sync"
	"time"
)

// Condition is a condition variable bound to a sync.Locker.
//
// Unlike sync.Cond it supports timed and context-bounded waits. Every wait
// must be called with L held; L is released while parked and re-acquired
// before the wait returns. Wakeups may be spurious, so callers loop on their
// predicate.
type Condition struct {
	L sync.Locker

	mu      sync.Mutex
	waiters []chan struct{}
}

// NewCondition returns a Condition bound to l.
func NewCondition(l sync.Locker) *Condition {
	return &Condition{L: l}
}

func (c *Condition) enqueue() chan struct{} {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()
	return ch
}

// dequeue removes ch from the waiter list. It reports false when a notifier
// already removed (and closed) it.
func (c *Condition) dequeue(ch chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return true
		}
	}
	return false
}

// Wait parks until notified.
func (c *Condition) Wait() {
	ch := c.enqueue()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitTimeout parks until notified or until d elapses. It returns false on timeout.
func (c *Condition) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	ch := c.enqueue()
	c.L.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	signaled := true
	select {
	case <-ch:
	case <-timer.C:
		// A notifier may have raced the timer; if it already took us off the
		// list the wakeup counts.
		signaled = !c.dequeue(ch)
	}
	c.L.Lock()
	return signaled
}

// WaitContext parks until notified or until ctx is done.
func (c *Condition) WaitContext(ctx context.Context) error {
	ch := c.enqueue()
	c.L.Unlock()

	var err error
	select {
	case <-ch:
	case <-ctx.Done():
		if c.dequeue(ch) {
			err = ctx.Err()
		}
	}
	c.L.Lock()
	return err
}

// NotifyOne wakes the longest-parked waiter, if any.
func (c *Condition) NotifyOne() {
	c.mu.Lock()
	if len(c.waiters) > 0 {
		close(c.waiters[0])
		c.waiters[0] = nil
		c.waiters = c.waiters[1:]
	}
	c.mu.Unlock()
}

// NotifyAll wakes every parked waiter.
func (c *Condition) NotifyAll() {
	c.mu.Lock()
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
	c.mu.Unlock()
}
