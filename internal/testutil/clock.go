package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a new Clock.
var Epoch = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)

// Clock is a deterministic wall clock for stamping created_at/updated_at.
//
// Each call to Now returns the previous instant plus Step, so rows written
// by one test get distinct, predictable timestamps.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	next time.Time
	Step time.Duration
}

// NewClock creates a clock starting at Epoch that advances one second per call.
func NewClock() *Clock {
	return &Clock{next: Epoch, Step: time.Second}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.Step)
	return now
}

// Peek returns the instant the next Now call will return.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock to Epoch.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
