package hold

import "time"

// Thresholds is the elapsed-time ladder used by transport scrub holds.
// Stage i is reached once the button has been held for Thresholds[i].
var Thresholds = []time.Duration{
	500 * time.Millisecond,
	1000 * time.Millisecond,
	2000 * time.Millisecond,
	3000 * time.Millisecond,
	4000 * time.Millisecond,
}

// Speed ramps (in beats per step) for fast-forward / rewind holds.
// FFwdSpeedsShift is used while shift is held.
var (
	FFwdSpeeds      = []float64{0.0625, 0.25, 1.0, 4.0}
	FFwdSpeedsShift = []float64{0.25, 1.0, 4.0, 16.0}
)

// Speed returns table[stage], pinning stage to the last entry.
func Speed(table []float64, stage int) float64 {
	if len(table) == 0 {
		return 0
	}
	if stage < 0 {
		stage = 0
	}
	if stage >= len(table) {
		stage = len(table) - 1
	}
	return table[stage]
}

// StepFunc receives the current stage of a hold gesture.
type StepFunc func(stage int)

// Repeater turns a press-and-hold into a sequence of accelerating stage
// callbacks. It never blocks: progress happens only in Tick, which the
// daemon loop calls on its fixed cadence.
//
// Single-owner; not safe for concurrent use.
type Repeater struct {
	now func() time.Time

	running    bool
	startedAt  time.Time
	stage      int
	step       StepFunc
	thresholds []time.Duration
}

// NewRepeater creates an idle repeater. If now is nil, time.Now is used.
func NewRepeater(now func() time.Time) *Repeater {
	if now == nil {
		now = time.Now
	}
	return &Repeater{now: now}
}

// Start begins a gesture and calls step(0) immediately so the first repeat
// is felt at press time. Any gesture in progress is replaced.
func (r *Repeater) Start(step StepFunc, thresholds []time.Duration) {
	r.running = true
	r.startedAt = r.now()
	r.stage = 0
	r.step = step
	r.thresholds = thresholds
	if step != nil {
		step(0)
	}
}

// Stop halts the gesture without a final callback.
func (r *Repeater) Stop() {
	r.running = false
	r.stage = 0
	r.step = nil
	r.thresholds = nil
}

// Tick advances the stage from elapsed time. The callback fires only when
// the stage increased since the previous tick.
func (r *Repeater) Tick(now time.Time) {
	if !r.running || len(r.thresholds) == 0 {
		return
	}
	elapsed := now.Sub(r.startedAt)

	stage := r.stage
	for i, th := range r.thresholds {
		if elapsed >= th && i > stage {
			stage = i
		}
	}
	if stage > len(r.thresholds)-1 {
		stage = len(r.thresholds) - 1
	}
	if stage <= r.stage {
		return
	}
	r.stage = stage
	if r.step != nil {
		r.step(stage)
	}
}

// Running reports whether a gesture is in progress.
func (r *Repeater) Running() bool { return r.running }

// Stage returns the current stage (0 when idle).
func (r *Repeater) Stage() int { return r.stage }
