package calendar

import (
	"context"
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now(ctx context.Context) time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now(context.Context) time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant until moved with Set or Advance.
type FixedClock struct {
	mu sync.Mutex
	at time.Time
}

func NewFixedClock(at time.Time) *FixedClock {
	return &FixedClock{at: at.UTC()}
}

func (c *FixedClock) Now(context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *FixedClock) Set(at time.Time) {
	c.mu.Lock()
	c.at = at.UTC()
	c.mu.Unlock()
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.at = c.at.Add(d)
	c.mu.Unlock()
}
