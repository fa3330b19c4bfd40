// Package deferred holds at most one pending timed action.
//
// It backs "tap vs. hold" gestures: a press schedules an action, the release
// either cancels it, fires it early, or lets the periodic tick fire it once
// the delay has passed. There is exactly one slot because only one hold
// gesture is physically possible at a time; a new Schedule silently replaces
// an unfired previous one.
//
// Not safe for concurrent use; all calls come from the daemon loop.
package deferred

import "time"

// Slot is the single-entry deferred action holder.
type Slot struct {
	now func() time.Time

	pending bool
	id      string
	readyAt time.Time
	run     func()
}

// New returns an empty slot. If now is nil, time.Now is used.
func New(now func() time.Time) *Slot {
	if now == nil {
		now = time.Now
	}
	return &Slot{now: now}
}

// Schedule replaces any pending action with run, due after d.
func (s *Slot) Schedule(id string, d time.Duration, run func()) {
	s.pending = true
	s.id = id
	s.readyAt = s.now().Add(d)
	s.run = run
}

// FireIfMatching runs and clears the pending action if its id equals id,
// regardless of whether it is due yet. It reports whether anything ran.
func (s *Slot) FireIfMatching(id string) bool {
	if !s.pending || s.id != id {
		return false
	}
	run := s.run
	s.clear()
	if run != nil {
		run()
	}
	return true
}

// CancelIfMatching clears the pending action without running it if its id
// equals id. It reports whether anything was cancelled.
func (s *Slot) CancelIfMatching(id string) bool {
	if !s.pending || s.id != id {
		return false
	}
	s.clear()
	return true
}

// Tick fires the pending action if it is due at now.
func (s *Slot) Tick(now time.Time) bool {
	if !s.pending || now.Before(s.readyAt) {
		return false
	}
	run := s.run
	s.clear()
	if run != nil {
		run()
	}
	return true
}

// Pending returns the id of the pending action, if any.
func (s *Slot) Pending() (string, bool) {
	return s.id, s.pending
}

// clear empties the slot before the action runs so the action itself may
// schedule a follow-up.
func (s *Slot) clear() {
	s.pending = false
	s.id = ""
	s.readyAt = time.Time{}
	s.run = nil
}
