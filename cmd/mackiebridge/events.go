package main

import (
	"context"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"mackiebridge/internal/host"
	"mackiebridge/internal/surface"
)

// ============================================================================
// Daemon Events
// ============================================================================
// Events are produced by the MIDI driver callbacks, the host link and the
// status server. Only the daemon loop consumes them, so the surface is only
// ever touched from one goroutine.
// ============================================================================

// Event is a marker interface for everything the daemon loop consumes.
type Event interface {
	eventMarker()
}

// MidiInput is one message received from a surface section.
type MidiInput struct {
	Section int
	Msg     midi.Message
}

func (MidiInput) eventMarker() {}

// HostObserved is one observation received from the host bridge.
type HostObserved struct {
	Obs host.Observation
}

func (HostObserved) eventMarker() {}

// HostConnected reports a host link state change.
type HostConnected struct {
	Up bool
}

func (HostConnected) eventMarker() {}

// RequestStateSnapshot asks the loop for the controller state. Reply must be
// buffered; the loop never blocks on it.
type RequestStateSnapshot struct {
	Reply chan surface.Snapshot
}

func (RequestStateSnapshot) eventMarker() {}

// Tick is emitted by the loop itself at surface.TickInterval.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// postEvent delivers ev unless ctx ends first.
func postEvent(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- ev:
		return true
	}
}
