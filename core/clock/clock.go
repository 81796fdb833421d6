// Package clock provides the time source used by all scheduling and billing
// logic. The station never reads the system clock directly: piles and the
// scheduler go through a Clock so simulated and accelerated time behave
// consistently station-wide.
package clock

import (
	"sync"
	"time"

	"github.com/kilianp07/evstation/core/errs"
)

// Clock yields the current station time. Implementations must be cheap and
// non-blocking; Now is called once per pile per scheduler tick.
type Clock interface {
	Now() time.Time
}

// Real reads the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Virtual is a controllable clock with two modes. In real mode it follows the
// wall clock. In simulated mode it anchors a (real, virtual) timestamp pair
// and a strictly positive speed multiplier:
//
//	now = anchorVirtual + (wall - anchorReal) * speed
//
// Switching speed or setting an absolute instant re-anchors both timestamps.
type Virtual struct {
	mu            sync.RWMutex
	simulated     bool
	speed         float64
	anchorReal    time.Time
	anchorVirtual time.Time
}

// NewVirtual returns a clock in real mode at speed 1.
func NewVirtual() *Virtual {
	return &Virtual{speed: 1}
}

// Now returns the current virtual time.
func (c *Virtual) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nowLocked()
}

func (c *Virtual) nowLocked() time.Time {
	if !c.simulated {
		return time.Now()
	}
	elapsed := time.Since(c.anchorReal)
	return c.anchorVirtual.Add(time.Duration(float64(elapsed) * c.speed))
}

// SetSpeed switches to simulated mode running at the given multiplier.
// The current virtual instant is preserved across the switch.
func (c *Virtual) SetSpeed(mult float64) error {
	if mult <= 0 {
		return errs.Validationf("time speed multiplier must be positive, got %v", mult)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorVirtual = c.nowLocked()
	c.anchorReal = time.Now()
	c.speed = mult
	c.simulated = true
	return nil
}

// SetTime jumps the virtual clock to an absolute instant, keeping the current
// speed. The clock enters simulated mode if it was not already.
func (c *Virtual) SetTime(ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorVirtual = ts
	c.anchorReal = time.Now()
	c.simulated = true
}

// Reset returns the clock to real mode at speed 1.
func (c *Virtual) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simulated = false
	c.speed = 1
}

// Simulated reports whether the clock is in simulated mode.
func (c *Virtual) Simulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.simulated
}

// Speed returns the current multiplier.
func (c *Virtual) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}
