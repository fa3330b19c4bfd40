package hold

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRepeater() (*Repeater, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewRepeater(clk.Now), clk
}

func TestRepeater_StartFiresStageZeroImmediately(t *testing.T) {
	r, _ := newTestRepeater()
	var stages []int
	r.Start(func(stage int) { stages = append(stages, stage) }, Thresholds)

	assert.Equal(t, []int{0}, stages)
	assert.True(t, r.Running())
	assert.Equal(t, 0, r.Stage())
}

func TestRepeater_StagesFollowThresholds(t *testing.T) {
	r, clk := newTestRepeater()
	var stages []int
	r.Start(func(stage int) { stages = append(stages, stage) }, Thresholds)

	// Only increases are reported.
	for i := 0; i < 50; i++ {
		clk.Advance(100 * time.Millisecond)
		r.Tick(clk.Now())
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, stages)
	assert.Equal(t, len(Thresholds)-1, r.Stage())
}

func TestRepeater_StopHasNoFinalCallback(t *testing.T) {
	r, clk := newTestRepeater()
	calls := 0
	r.Start(func(int) { calls++ }, Thresholds)
	r.Stop()

	clk.Advance(5 * time.Second)
	r.Tick(clk.Now())

	assert.Equal(t, 1, calls)
	assert.False(t, r.Running())
	assert.Equal(t, 0, r.Stage())
}

func TestRepeater_ShortThresholdsPinAtLastStage(t *testing.T) {
	r, clk := newTestRepeater()
	var stages []int
	r.Start(func(stage int) { stages = append(stages, stage) }, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond})

	clk.Advance(10 * time.Second)
	r.Tick(clk.Now())
	clk.Advance(10 * time.Second)
	r.Tick(clk.Now())

	assert.Equal(t, []int{0, 1}, stages)
}

func TestRepeater_RestartResetsStage(t *testing.T) {
	r, clk := newTestRepeater()
	var stages []int
	step := func(stage int) { stages = append(stages, stage) }

	r.Start(step, Thresholds)
	clk.Advance(1500 * time.Millisecond)
	r.Tick(clk.Now())
	r.Stop()

	r.Start(step, Thresholds)
	assert.Equal(t, []int{0, 1, 0}, stages)
}

// Property: for arbitrary increasing tick timestamps, reported stages are
// non-decreasing and bounded by len(thresholds)-1.
func TestRepeater_MonotonicAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		r, clk := newTestRepeater()
		var stages []int
		r.Start(func(stage int) { stages = append(stages, stage) }, Thresholds)

		for i := 0; i < 40; i++ {
			clk.Advance(time.Duration(rng.Intn(700)) * time.Millisecond)
			r.Tick(clk.Now())
		}

		require.NotEmpty(t, stages)
		assert.Equal(t, 0, stages[0])
		for i := 1; i < len(stages); i++ {
			assert.Greater(t, stages[i], stages[i-1])
		}
		assert.LessOrEqual(t, stages[len(stages)-1], len(Thresholds)-1)
	}
}

// Holding fast-forward for 2200 ms of 100 ms ticks ends at stage 2, the
// last threshold not exceeding the elapsed time.
func TestRepeater_FastForwardHold2200ms(t *testing.T) {
	r, clk := newTestRepeater()
	var speeds []float64
	r.Start(func(stage int) { speeds = append(speeds, Speed(FFwdSpeeds, stage)) }, Thresholds)

	for elapsed := 100; elapsed <= 2200; elapsed += 100 {
		clk.Advance(100 * time.Millisecond)
		r.Tick(clk.Now())
	}

	assert.Equal(t, 2, r.Stage())
	assert.Equal(t, []float64{0.0625, 0.25, 1.0}, speeds)
	assert.Equal(t, 1.0, Speed(FFwdSpeeds, r.Stage()))
}

func TestSpeed_Clamps(t *testing.T) {
	assert.Equal(t, 0.0625, Speed(FFwdSpeeds, -1))
	assert.Equal(t, 4.0, Speed(FFwdSpeeds, 3))
	assert.Equal(t, 4.0, Speed(FFwdSpeeds, 4))
	assert.Equal(t, 16.0, Speed(FFwdSpeedsShift, 99))
	assert.Equal(t, 0.0, Speed(nil, 1))
}
