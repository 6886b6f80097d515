// Package effect drives the celebratory falling-hearts burst shown after a
// successful submission. The server decides the batch and its lifetime so
// every view of the same form replays the same animation and clears it at the
// same instant.
package effect

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

const (
	// Count is the number of particles in one batch.
	Count = 30
	// MaxDelay bounds a particle's start delay to [0, MaxDelay).
	MaxDelay = 1500 * time.Millisecond
	// MinDuration and DurationSpread bound a particle's fall time to
	// [MinDuration, MinDuration+DurationSpread).
	MinDuration    = 3 * time.Second
	DurationSpread = 3 * time.Second
	// Buffer is added after the last particle lands before completion fires.
	Buffer = 500 * time.Millisecond
)

// Particle is one falling heart.
type Particle struct {
	ID string
	// X is the horizontal start position in percent of the viewport width.
	X          float64
	Delay      time.Duration
	Duration   time.Duration
	// Rotation in degrees: a slight tilt at the top, a gentle sway while falling.
	RotateFrom float64
	RotateTo   float64
}

// End is the instant, relative to batch start, at which the particle lands.
func (p Particle) End() time.Duration { return p.Delay + p.Duration }

type particleJSON struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Delay      float64 `json:"delay"`
	Duration   float64 `json:"duration"`
	RotateFrom float64 `json:"rotate_from"`
	RotateTo   float64 `json:"rotate_to"`
}

// MarshalJSON emits delay and duration in seconds.
func (p Particle) MarshalJSON() ([]byte, error) {
	return json.Marshal(particleJSON{
		ID:         p.ID,
		X:          p.X,
		Delay:      p.Delay.Seconds(),
		Duration:   p.Duration.Seconds(),
		RotateFrom: p.RotateFrom,
		RotateTo:   p.RotateTo,
	})
}

// Batch is one generated burst.
type Batch struct {
	Particles []Particle `json:"particles"`
	// Lifetime is max(delay+duration) plus Buffer: when the burst clears.
	Lifetime time.Duration `json:"-"`
}

// MarshalJSON adds lifetime_ms so clients can clear locally when they do not
// listen for completion.
func (b Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Particles  []Particle `json:"particles"`
		LifetimeMS int64      `json:"lifetime_ms"`
	}{b.Particles, b.Lifetime.Milliseconds()})
}

// NewBatch draws Count particles from rng. IDs are unique per start instant.
func NewBatch(rng *rand.Rand, start time.Time) Batch {
	ps := make([]Particle, Count)
	var last time.Duration
	for i := range ps {
		p := Particle{
			ID:         fmt.Sprintf("heart-%d-%d", i, start.UnixMilli()),
			X:          rng.Float64() * 100,
			Delay:      time.Duration(rng.Int63n(int64(MaxDelay))),
			Duration:   MinDuration + time.Duration(rng.Int63n(int64(DurationSpread))),
			RotateFrom: rng.Float64()*60 - 30,
			RotateTo:   rng.Float64()*90 - 45,
		}
		if p.End() > last {
			last = p.End()
		}
		ps[i] = p
	}
	return Batch{Particles: ps, Lifetime: last + Buffer}
}
