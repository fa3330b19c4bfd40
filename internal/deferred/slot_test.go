package deferred

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSlot() (*Slot, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(clk.Now), clk
}

func TestSlot_FireIfMatching_Identity(t *testing.T) {
	s, _ := newTestSlot()
	runs := 0
	s.Schedule("A", time.Second, func() { runs++ })

	assert.False(t, s.FireIfMatching("B"))
	assert.Zero(t, runs)
	id, ok := s.Pending()
	assert.True(t, ok, "non-matching fire must not clear the slot")
	assert.Equal(t, "A", id)

	assert.True(t, s.FireIfMatching("A"))
	assert.Equal(t, 1, runs)
	_, ok = s.Pending()
	assert.False(t, ok)

	assert.False(t, s.FireIfMatching("A"), "slot is empty after firing")
	assert.Equal(t, 1, runs)
}

func TestSlot_CancelIfMatching(t *testing.T) {
	s, clk := newTestSlot()
	runs := 0
	s.Schedule("A", 300*time.Millisecond, func() { runs++ })

	assert.False(t, s.CancelIfMatching("B"))
	assert.True(t, s.CancelIfMatching("A"))

	clk.Advance(time.Second)
	assert.False(t, s.Tick(clk.Now()))
	assert.Zero(t, runs)
}

func TestSlot_TickFiresOnlyWhenDue(t *testing.T) {
	s, clk := newTestSlot()
	runs := 0
	s.Schedule("marker-hold", 300*time.Millisecond, func() { runs++ })

	for i := 0; i < 2; i++ {
		clk.Advance(100 * time.Millisecond)
		assert.False(t, s.Tick(clk.Now()))
	}
	clk.Advance(100 * time.Millisecond)
	assert.True(t, s.Tick(clk.Now()))
	assert.Equal(t, 1, runs)

	clk.Advance(100 * time.Millisecond)
	assert.False(t, s.Tick(clk.Now()))
	assert.Equal(t, 1, runs)
}

func TestSlot_ScheduleReplacesPending(t *testing.T) {
	s, clk := newTestSlot()
	var fired []string
	s.Schedule("first", 100*time.Millisecond, func() { fired = append(fired, "first") })
	s.Schedule("second", 100*time.Millisecond, func() { fired = append(fired, "second") })

	assert.False(t, s.FireIfMatching("first"))
	clk.Advance(200 * time.Millisecond)
	s.Tick(clk.Now())

	assert.Equal(t, []string{"second"}, fired)
}

func TestSlot_ReleaseTriggeredFireBypassesTimer(t *testing.T) {
	s, clk := newTestSlot()
	runs := 0
	s.Schedule("marker-hold", 300*time.Millisecond, func() { runs++ })

	clk.Advance(100 * time.Millisecond)
	assert.False(t, s.Tick(clk.Now()))

	assert.True(t, s.FireIfMatching("marker-hold"))
	assert.Equal(t, 1, runs)
}

func TestSlot_ActionMayReschedule(t *testing.T) {
	s, clk := newTestSlot()
	runs := 0
	var again func()
	again = func() {
		runs++
		if runs < 3 {
			s.Schedule("loop", 100*time.Millisecond, again)
		}
	}
	s.Schedule("loop", 100*time.Millisecond, again)

	for i := 0; i < 5; i++ {
		clk.Advance(100 * time.Millisecond)
		s.Tick(clk.Now())
	}
	assert.Equal(t, 3, runs)
}
