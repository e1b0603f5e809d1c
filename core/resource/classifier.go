package resource

import (
	"sync"
	"sync/atomic"
	"time"
)

// useWindow is the number of recent use timestamps a classifier keeps.
const useWindow = 5

// classifier tracks when a resource was recently used and derives its
// generation from that. It has its own lock: the worker reads it while any
// client goroutine may be calling Use.
type classifier struct {
	mu         sync.Mutex
	uses       [useWindow]time.Time
	n          int
	next       int
	registered time.Time

	generation atomic.Int32
}

func newClassifier(now time.Time) *classifier {
	return &classifier{registered: now}
}

// use records a touch. The generation snaps back to 0 immediately; the
// generation table moves the resource between buckets on its next pass.
func (c *classifier) use(now time.Time) {
	c.mu.Lock()
	c.uses[c.next] = now
	c.next = (c.next + 1) % useWindow
	if c.n < useWindow {
		c.n++
	}
	c.generation.Store(0)
	c.mu.Unlock()
}

func (c *classifier) lastUseLocked() time.Time {
	if c.n == 0 {
		return c.registered
	}
	return c.uses[(c.next-1+useWindow)%useWindow]
}

func (c *classifier) lastUse() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUseLocked()
}

// recentUses returns how many timestamps are in the window.
func (c *classifier) recentUses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// reclassify recomputes the generation: the number of lifetimes the time since
// the most recent use has exceeded.
func (c *classifier) reclassify(now time.Time, lifetimes []time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	age := now.Sub(c.lastUseLocked())
	g := 0
	for _, l := range lifetimes {
		if age <= l {
			break
		}
		g++
	}
	c.generation.Store(int32(g))
	return g
}

func (c *classifier) current() int {
	return int(c.generation.Load())
}
