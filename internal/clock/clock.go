package clock

import (
	"sync"
	"time"
)

// A Provider hands out the current time. All scheduling decisions in the
// bot go through a Provider so that tests and operators can substitute an
// accelerated or frozen clock without touching business logic
type Provider interface {
	// Current instant, always UTC
	Now() time.Time
	// Real time to wait until the given instant is reached.
	// Zero if the instant has already passed
	Until(t time.Time) time.Duration
}

// System is the trivial provider backed by the wall clock
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

func (System) Until(t time.Time) time.Duration {
	d := time.Until(t)
	if d < 0 {
		return 0
	}
	return d
}

// Accelerated maps real elapsed time to a scaled simulated clock.
// With factor 720, two real minutes simulate one day.
// While disabled it behaves exactly like System
type Accelerated struct {
	mu             sync.Mutex
	enabled        bool
	factor         float64
	startReal      time.Time
	startSimulated time.Time
}

func NewAccelerated() *Accelerated {
	return &Accelerated{factor: 1}
}

// Enable starts acceleration with the given factor,
// anchored at the current real time
func (a *Accelerated) Enable(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	a.factor = factor
	a.startReal = time.Now()
	a.startSimulated = time.Now().UTC()
}

func (a *Accelerated) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.factor = 1
	a.startReal = time.Time{}
	a.startSimulated = time.Time{}
}

func (a *Accelerated) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *Accelerated) Factor() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.factor
}

func (a *Accelerated) Now() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return time.Now().UTC()
	}
	elapsedReal := time.Since(a.startReal)
	elapsedSimulated := time.Duration(float64(elapsedReal) * a.factor)
	return a.startSimulated.Add(elapsedSimulated)
}

// Until compresses the simulated distance back into real waiting time,
// so armed timers fire when the simulated clock reaches the instant
func (a *Accelerated) Until(t time.Time) time.Duration {
	a.mu.Lock()
	enabled, factor := a.enabled, a.factor
	a.mu.Unlock()

	d := t.Sub(a.Now())
	if d < 0 {
		return 0
	}
	if !enabled || factor <= 0 {
		return d
	}
	return time.Duration(float64(d) / factor)
}

// SimulateDays jumps the simulated clock forward by the given number of
// days. Returns false if acceleration is not enabled
func (a *Accelerated) SimulateDays(days float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.enabled {
		return false
	}
	a.startSimulated = a.startSimulated.Add(time.Duration(days * 24 * float64(time.Hour)))
	return true
}
