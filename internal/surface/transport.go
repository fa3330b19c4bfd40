package surface

import (
	"math"

	"mackiebridge/internal/hold"
	"mackiebridge/internal/layer"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/modifier"
)

// Jog resolutions in beats per detent.
const (
	jogResolution      = 0.25
	jogResolutionAlt   = 4.0
	jogResolutionShift = 1.0
	jogResolutionScrub = 0.0625
)

// toggles are buttons that flip a host boolean and light while it is set.
var toggles = []struct {
	note mcu.Note
	path string
}{
	{mcu.Cycle, "transport.loop"},
	{mcu.Click, "transport.metronome"},
	{mcu.Drop, "transport.punch_in"},
	{mcu.Replace, "transport.punch_out"},
	{mcu.AutoReadOff, "transport.automation_write"},
	{mcu.SoloKey, "cursor.solo"},
	{mcu.GlobalView, "mixer.global_view"},
	{mcu.Group, "mixer.group_view"},
}

// bindTransport binds transport, jog, modifier, automation and undo controls
// of the main unit into the global and shift layers.
func (s *Surface) bindTransport() {
	main := s.sections[0]
	g := s.bind(s.global)
	sh := s.bind(s.shift)
	model := s.model

	g.button(main, mcu.Play, func(Ctx) {
		s.logErr(model.Trigger("transport.play"), "play failed")
	}, nil)
	g.light(main, mcu.Play, func(Ctx) bool { return model.Bool("transport.playing") })

	g.button(main, mcu.Stop, func(Ctx) {
		s.logErr(model.Trigger("transport.stop"), "stop failed")
	}, nil)
	g.light(main, mcu.Stop, func(Ctx) bool { return !model.Bool("transport.playing") })

	g.button(main, mcu.Record, func(Ctx) {
		s.logErr(model.Toggle("transport.record"), "record failed")
	}, nil)
	g.light(main, mcu.Record, func(c Ctx) bool {
		if !model.Bool("transport.record") {
			return false
		}
		// Armed while stopped blinks.
		return model.Bool("transport.playing") || c.Blink
	})

	for _, t := range toggles {
		path := t.path
		g.button(main, t.note, func(Ctx) {
			s.logErr(model.Toggle(path), "toggle failed", "path", path)
		}, nil)
		g.light(main, t.note, func(Ctx) bool { return model.Bool(path) })
	}

	for _, d := range []struct {
		note mcu.Note
		dir  int
	}{{mcu.FFwd, 1}, {mcu.Rewind, -1}} {
		note, dir := d.note, d.dir
		g.button(main, note, func(Ctx) {
			s.held[note] = true
			s.startScrub(dir)
		}, func(Ctx) {
			s.held[note] = false
			s.hold.Stop()
		})
		g.light(main, note, func(Ctx) bool { return s.held[note] })
	}

	g.input(main.control(layer.Jog, 0), func(c Ctx, in layer.Input) {
		if in.Kind == layer.Turn && in.Delta != 0 {
			s.jog(c, in.Delta)
		}
	})

	for _, m := range []struct {
		note mcu.Note
		key  modifier.Key
	}{
		{mcu.ShiftKey, modifier.Shift},
		{mcu.AltKey, modifier.Alt},
		{mcu.OptionKey, modifier.Option},
		{mcu.ControlKey, modifier.Control},
	} {
		note, key := m.note, m.key
		g.button(main, note, func(Ctx) {
			s.held[note] = true
			s.mods.Set(key, true)
		}, func(Ctx) {
			s.held[note] = false
			s.mods.Set(key, false)
		})
		g.light(main, note, func(Ctx) bool { return s.held[note] })
	}

	for _, a := range []struct {
		note mcu.Note
		mode string
	}{{mcu.AutoTouch, "touch"}, {mcu.AutoLatch, "latch"}, {mcu.AutoWrite, "write"}} {
		note, mode := a.note, a.mode
		g.button(main, note, func(Ctx) {
			s.logErr(model.Set("transport.automation_mode", mode), "automation mode failed")
		}, nil)
		g.light(main, note, func(Ctx) bool { return s.autoMode == mode })
	}

	g.button(main, mcu.Undo, func(Ctx) {
		s.logErr(model.Trigger("application.undo"), "undo failed")
	}, nil)
	sh.button(main, mcu.Undo, func(Ctx) {
		s.logErr(model.Trigger("application.redo"), "redo failed")
	}, nil)
	g.button(main, mcu.Save, func(Ctx) {
		s.logErr(model.Trigger("application.save"), "save failed")
	}, nil)
	g.button(main, mcu.Enter, func(Ctx) {
		s.logErr(model.Trigger("application.enter"), "enter failed")
	}, nil)
	g.button(main, mcu.Cancel, func(Ctx) {
		s.logErr(model.Trigger("application.escape"), "cancel failed")
	}, nil)

	sh.button(main, mcu.DisplayName, func(Ctx) { s.cycleVUMode() }, nil)

	g.button(main, mcu.DisplaySMPTE, func(Ctx) {
		if s.timecode == TimecodeBeats {
			s.timecode = TimecodeSMPTE
		} else {
			s.timecode = TimecodeBeats
		}
		s.renderTimecode()
	}, nil)
	g.light(main, mcu.SMPTELed, func(Ctx) bool { return s.timecode == TimecodeSMPTE })
	g.light(main, mcu.BeatsLed, func(Ctx) bool { return s.timecode == TimecodeBeats })
}

// startScrub begins a fast forward (dir 1) or rewind (dir -1) hold. The
// speed table is chosen at every step from the live shift state.
func (s *Surface) startScrub(dir int) {
	s.hold.Start(func(stage int) {
		table := hold.FFwdSpeeds
		if s.mods.IsShiftSet() {
			table = hold.FFwdSpeedsShift
		}
		speed := hold.Speed(table, stage)
		if s.onScrub != nil {
			s.onScrub(speed)
		}
		s.changePlayPosition(dir, speed, true, true)
	}, hold.Thresholds)
}

// jog moves the play start position. A pending marker hold is committed
// instead and the turn is consumed.
func (s *Surface) jog(c Ctx, delta int) {
	if s.slot.FireIfMatching(markerHoldID) {
		return
	}
	res := jogResolution
	switch {
	case s.scrub:
		res = jogResolutionScrub
	case c.Mods.Alt:
		res = jogResolutionAlt
	case c.Mods.Shift:
		res = jogResolutionShift
	}
	s.changePlayPosition(delta, res, !c.Mods.Option, !c.Mods.Control)
}

// changePlayPosition moves the play start by inc*resolution beats,
// optionally clamped at zero and snapped to the resolution grid. While
// playing the playhead jumps there.
func (s *Surface) changePlayPosition(inc int, resolution float64, restrictToStart, quantize bool) {
	const path = "transport.play_start"
	pos := s.model.Float(path)
	next := pos + resolution*float64(inc)
	if restrictToStart && next < 0 {
		next = 0
	}
	if next == pos {
		return
	}
	if quantize {
		next = math.Floor(next/resolution) * resolution
	}
	s.logErr(s.model.Set(path, next), "set play position failed")
	if s.model.Bool("transport.playing") {
		s.logErr(s.model.Trigger("transport.jump_to_play_start"), "jump failed")
	}
}

// renderTimecode writes the timecode display of the main unit.
func (s *Surface) renderTimecode() {
	var tc Timecode
	if s.timecode == TimecodeSMPTE {
		tc = FormatSMPTE(s.model.Float("transport.seconds"))
	} else {
		num, den := parseTimeSignature(s.model.String("transport.time_signature"))
		tc = FormatBeats(s.model.Float("transport.position"), num, den)
	}
	s.sections[0].setDigits(tc)
}
