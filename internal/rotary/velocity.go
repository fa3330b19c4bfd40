package rotary

import "time"

// Velocity tracks recent detents of one encoder so fast spinning can scale
// the step size. It is owned by the daemon loop and takes no locks.
type Velocity struct {
	window time.Duration
	recent []spinStep
}

type spinStep struct {
	at        time.Time
	direction int // +1 clockwise, -1 counter-clockwise
}

// NewVelocity creates a tracker that remembers detents for window.
func NewVelocity(window time.Duration) *Velocity {
	return &Velocity{
		window: window,
		recent: make([]spinStep, 0, 16),
	}
}

// AddStep records a detent at now and returns how many detents in the same
// direction fall inside the window, this one included.
func (v *Velocity) AddStep(now time.Time, direction int) int {
	cutoff := now.Add(-v.window)

	kept := v.recent[:0]
	for _, s := range v.recent {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	kept = append(kept, spinStep{at: now, direction: direction})
	v.recent = kept

	same := 0
	for _, s := range kept {
		if s.direction == direction {
			same++
		}
	}
	return same
}

// Spin thresholds: a detent count inside the window at or above each
// threshold multiplies the step by the matching factor.
var (
	SpinThresholds = []int{4, 8}
	SpinFactors    = []int{4, 10}
)

// SpinFactor returns the step multiplier for a same-direction count.
func SpinFactor(count int) int {
	factor := 1
	for i, t := range SpinThresholds {
		if count >= t {
			factor = SpinFactors[i]
		}
	}
	return factor
}
