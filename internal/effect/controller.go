package effect

import (
	"math/rand"
	"sync"

	"github.com/tbourn/go-wishwall-backend/internal/clock"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock swaps the timer source.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithSeed makes particle generation deterministic.
func WithSeed(seed int64) Option {
	return func(ctl *Controller) { ctl.rng = rand.New(rand.NewSource(seed)) }
}

// Controller plays at most one batch at a time. Starting a new batch replaces
// the running one; only the latest batch can complete.
type Controller struct {
	clock clock.Clock

	mu     sync.Mutex
	rng    *rand.Rand
	gen    uint64
	timer  clock.Timer
	active *Batch
}

// NewController returns an idle controller on the real clock.
func NewController(opts ...Option) *Controller {
	c := &Controller{clock: clock.Real()}
	for _, o := range opts {
		o(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(c.clock.Now().UnixNano()))
	}
	return c
}

// Play starts a new batch and schedules onFinished for when it clears. A
// running batch is cancelled first and its callback never fires.
func (c *Controller) Play(onFinished func()) Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	b := NewBatch(c.rng, c.clock.Now())
	c.active = &b
	gen := c.gen
	c.timer = c.clock.AfterFunc(b.Lifetime, func() { c.finish(gen, onFinished) })
	return b
}

// Stop cancels the running batch without firing its callback. Safe to call
// when idle and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.cancelLocked()
	c.mu.Unlock()
}

// Running reports whether a batch is on screen.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Active returns a copy of the running batch's particles, or nil.
func (c *Controller) Active() []Particle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return append([]Particle(nil), c.active.Particles...)
}

func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.active = nil
	c.gen++
}

// finish runs on the timer. A stale generation means the batch was replaced
// or stopped after the timer had already fired.
func (c *Controller) finish(gen uint64, onFinished func()) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.active = nil
	c.gen++
	c.mu.Unlock()

	if onFinished != nil {
		onFinished()
	}
}
