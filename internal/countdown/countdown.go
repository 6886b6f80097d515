// Package countdown computes the time left until the event.
package countdown

import (
	"fmt"
	"time"

	"github.com/tbourn/go-wishwall-backend/internal/clock"
)

// Showtime is the label once the event has started.
const Showtime = "It's showtime 💍"

// Status is one reading of the countdown.
type Status struct {
	Target      time.Time `json:"target"`
	RemainingMS int64     `json:"remaining_ms"`
	Days        int       `json:"days"`
	Hours       int       `json:"hours"`
	Minutes     int       `json:"minutes"`
	Seconds     int       `json:"seconds"`
	Label       string    `json:"label"`
	Started     bool      `json:"started"`
}

// Countdown reads a clock against a fixed target.
type Countdown struct {
	Target time.Time
	Clock  clock.Clock
}

// New returns a countdown to target on the real clock.
func New(target time.Time) *Countdown {
	return &Countdown{Target: target, Clock: clock.Real()}
}

// Now reads the countdown at the current clock time.
func (c *Countdown) Now() Status {
	return At(c.Target, c.Clock.Now())
}

// At computes the status at now. Remaining time is truncated to whole
// seconds and never negative.
func At(target, now time.Time) Status {
	st := Status{Target: target}
	left := target.Sub(now)
	if left <= 0 {
		st.Started = true
		st.Label = Showtime
		return st
	}
	st.RemainingMS = left.Milliseconds()

	secs := int64(left / time.Second)
	st.Days = int(secs / 86400)
	st.Hours = int(secs % 86400 / 3600)
	st.Minutes = int(secs % 3600 / 60)
	st.Seconds = int(secs % 60)
	st.Label = fmt.Sprintf("%dd %dh %dm %ds", st.Days, st.Hours, st.Minutes, st.Seconds)
	return st
}
