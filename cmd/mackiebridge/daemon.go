package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"mackiebridge/internal/host"
	"mackiebridge/internal/surface"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The loop is the only goroutine that touches the surface controller:
//   - MIDI input, host observations and snapshot requests arrive as Events
//   - A ticker drives hold repeats, the deferred slot and blinking
//   - Events are queued and flushed in arrival order (no re-entrant handling)
//
// ============================================================================

// controller is the part of *surface.Surface the loop drives.
type controller interface {
	Handle(section int, msg midi.Message)
	Tick(now time.Time)
	ApplyObservation(o host.Observation)
	Snapshot() surface.Snapshot
}

// runDaemon runs until ctx is canceled or events is closed.
//
// Shutdown of the surface itself (reset writes + grace wait) is left to the
// caller once this returns, so it never races with in-flight events.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	ctrl controller,
	tickInterval time.Duration,
	logger *slog.Logger,
) {
	if ctrl == nil {
		logger.Error("daemon controller is nil")
		return
	}
	if tickInterval <= 0 {
		tickInterval = surface.TickInterval
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var eventQueue []Event

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]
			handleEvent(ctrl, ev, logger)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(ev)
			flushEvents()

		case now := <-ticker.C:
			enqueueEvent(Tick{Now: now})
			flushEvents()
		}
	}
}

func handleEvent(ctrl controller, ev Event, logger *slog.Logger) {
	switch e := ev.(type) {
	case MidiInput:
		ctrl.Handle(e.Section, e.Msg)

	case HostObserved:
		ctrl.ApplyObservation(e.Obs)

	case HostConnected:
		if e.Up {
			logger.Info("host link up")
		} else {
			logger.Warn("host link down")
		}

	case RequestStateSnapshot:
		if e.Reply == nil {
			return
		}
		select {
		case e.Reply <- ctrl.Snapshot():
		default:
			logger.Warn("snapshot reply dropped (unbuffered or full)")
		}

	case Tick:
		ctrl.Tick(e.Now)

	default:
		logger.Debug("ignoring unknown event", "type", fmt.Sprintf("%T", ev))
	}
}
