package surface

import (
	"fmt"

	"mackiebridge/internal/layer"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/rotary"
)

// VUMode is how the channel meters are shown.
type VUMode int

const (
	VULED VUMode = iota
	VULCDVertical
	VULCDHorizontal
)

func (v VUMode) String() string {
	switch v {
	case VULCDVertical:
		return "lcd_vertical"
	case VULCDHorizontal:
		return "lcd_horizontal"
	default:
		return "led"
	}
}

func (v VUMode) next() VUMode {
	switch v {
	case VULED:
		return VULCDVertical
	case VULCDVertical:
		return VULCDHorizontal
	default:
		return VULED
	}
}

var modeButtons = map[rotary.Mode]mcu.Note{
	rotary.Send:       mcu.VSend,
	rotary.Pan:        mcu.VPan,
	rotary.Plugin:     mcu.VPlugin,
	rotary.EQ:         mcu.VEQ,
	rotary.Instrument: mcu.VInstrument,
	rotary.Track:      mcu.VTrack,
}

// bindNavigation binds mode buttons, bank and cursor navigation and the
// view toggles.
func (s *Surface) bindNavigation() {
	main := s.sections[0]
	g := s.bind(s.global)
	z := s.bind(s.zoomNav)
	model := s.model

	for m, note := range modeButtons {
		g.button(main, note, func(Ctx) { s.rotary.Select(m, true) }, func(Ctx) { s.rotary.Select(m, false) })
		g.light(main, note, func(c Ctx) bool { return c.Rotary != nil && c.Rotary.Mode() == m })
	}
	g.output(main.control(layer.Assignment, 0), func(c Ctx) {
		code := "--"
		if c.Rotary != nil {
			code = c.Rotary.Mode().Code()
		}
		main.setAssignment(code)
	})

	bank := model.Bank(mixerBank)
	scroll := func(n func() int) func(Ctx) {
		return func(Ctx) {
			s.logErr(bank.ScrollBy(n()), "bank scroll failed", "bank", mixerBank)
		}
	}
	g.button(main, mcu.TrackLeft, scroll(func() int { return -1 }), nil)
	g.button(main, mcu.TrackRight, scroll(func() int { return 1 }), nil)
	g.button(main, mcu.BankLeft, scroll(func() int { return -mcu.StripCount * len(s.sections) }), nil)
	g.button(main, mcu.BankRight, scroll(func() int { return mcu.StripCount * len(s.sections) }), nil)
	g.light(main, mcu.TrackLeft, func(Ctx) bool { return bank.CanScrollBackward() })
	g.light(main, mcu.BankLeft, func(Ctx) bool { return bank.CanScrollBackward() })
	g.light(main, mcu.TrackRight, func(Ctx) bool { return bank.CanScrollForward() })
	g.light(main, mcu.BankRight, func(Ctx) bool { return bank.CanScrollForward() })

	// Cursor keys: left/right page the encoders, up/down move the device
	// cursor. With ZOOM on they drive the host's panels instead.
	g.button(main, mcu.Left, func(Ctx) { s.rotary.Step(-1) }, nil)
	g.button(main, mcu.Right, func(Ctx) { s.rotary.Step(1) }, nil)
	g.button(main, mcu.Up, func(Ctx) {
		s.logErr(model.Trigger("device.previous"), "device navigation failed")
	}, nil)
	g.button(main, mcu.Down, func(Ctx) {
		s.logErr(model.Trigger("device.next"), "device navigation failed")
	}, nil)

	trigger := func(action string) func(Ctx) {
		return func(Ctx) { s.logErr(model.Trigger(action), "action failed", "action", action) }
	}
	z.button(main, mcu.Up, trigger("application.focus_panel_above"), nil)
	z.button(main, mcu.Down, trigger("application.focus_panel_below"), nil)
	z.button(main, mcu.Left, func(c Ctx) {
		if c.Mods.Shift {
			trigger("application.zoom_out")(c)
			return
		}
		trigger("application.focus_panel_left")(c)
	}, nil)
	z.button(main, mcu.Right, func(c Ctx) {
		if c.Mods.Shift {
			trigger("application.zoom_in")(c)
			return
		}
		trigger("application.focus_panel_right")(c)
	}, nil)

	g.button(main, mcu.Flip, func(Ctx) { s.setFlip(!s.flip) }, nil)
	g.light(main, mcu.Flip, func(Ctx) bool { return s.flip })

	g.button(main, mcu.Zoom, func(Ctx) {
		s.zoom = !s.zoom
		s.zoomNav.SetActive(s.zoom)
	}, nil)
	g.light(main, mcu.Zoom, func(Ctx) bool { return s.zoom })

	g.button(main, mcu.Scrub, func(Ctx) { s.scrub = !s.scrub }, nil)
	g.light(main, mcu.Scrub, func(Ctx) bool { return s.scrub })
}

// setFlip swaps faders and encoders on every section.
func (s *Surface) setFlip(on bool) {
	s.flip = on
	for _, sec := range s.sections {
		sec.flip.SetActive(on)
	}
	if s.markerMenu.IsActive() {
		s.markerMenu.Activate()
	}
}

// cycleVUMode steps LED -> LCD vertical -> LCD horizontal -> LED.
func (s *Surface) cycleVUMode() {
	s.vu = s.vu.next()
	s.applyVUMode()
	s.notify.Notify(NotifyVUModeChanged, s.vu.String())
}

// applyVUMode sends the meter configuration to every section.
func (s *Surface) applyVUMode() {
	mode := mcu.MeterSignalLED | mcu.MeterPeakHold
	if s.vu != VULED {
		mode |= mcu.MeterLCD
	}
	for _, sec := range s.sections {
		for k := 0; k < mcu.StripCount; k++ {
			s.logErr(sec.send(mcu.ChannelMeterMode(sec.device, k, mode)), "meter mode failed", "section", sec.name)
		}
		s.logErr(sec.send(mcu.GlobalLCDMeterMode(sec.device, s.vu == VULCDVertical)), "meter mode failed", "section", sec.name)
	}
}

// bindMarkers binds MARKER, F1-F8 and the marker menu.
//
// MARKER tapped toggles marker mode. Held for MarkerHoldDelay it opens the
// marker menu until released; turning the jog while the hold is pending
// opens the menu at once.
func (s *Surface) bindMarkers() {
	main := s.sections[0]
	g := s.bind(s.global)
	mm := s.bind(s.markerMenu)
	model := s.model

	g.button(main, mcu.Marker, func(Ctx) {
		s.slot.Schedule(markerHoldID, MarkerHoldDelay, s.openMarkerMenu)
	}, func(Ctx) {
		if s.slot.CancelIfMatching(markerHoldID) {
			s.markerMode = !s.markerMode
			return
		}
		s.closeMarkerMenu()
	})
	g.light(main, mcu.Marker, func(Ctx) bool { return s.markerMode || s.markerMenu.IsActive() })

	for i := 0; i < 8; i++ {
		note := mcu.F1 + mcu.Note(i)
		fallback := s.fKeyAction(i)
		g.button(main, note, func(c Ctx) {
			if s.markerMode {
				path := fmt.Sprintf("marker.%d", i)
				s.logErr(model.Launch(path, c.Mods.Shift), "marker launch failed", "marker", i)
				return
			}
			if fallback != "" {
				s.logErr(model.Trigger(fallback), "action failed", "action", fallback)
			}
		}, nil)
	}

	for k := 0; k < mcu.StripCount; k++ {
		marker := fmt.Sprintf("marker.%d", k)
		position := marker + ".position"

		mm.input(main.control(layer.Encoder, k), func(_ Ctx, in layer.Input) {
			if !model.Exists(marker) {
				return
			}
			v := model.Float(position) + float64(in.Delta)
			if v < 0 {
				v = 0
			}
			s.logErr(model.Set(position, v), "marker move failed", "marker", k)
		})
		mm.button(main, mcu.VPotPress.Strip(k), func(Ctx) {
			if model.Exists(marker) {
				s.logErr(model.Set(position, model.Float("transport.position")), "marker set failed", "marker", k)
			}
		}, nil)
		mm.output(main.control(layer.Ring, k), func(Ctx) {
			main.setRing(k, mcu.RingValue(mcu.RingDot, 0.5, !model.Exists(marker), false))
		})
		mm.output(main.displayCell(0, k), func(Ctx) {
			name := ASCIILabel(model.String(marker+".name"), mcu.LCDCellLen)
			if name == "" || !model.Exists(marker) {
				name = fmt.Sprintf("<Cue%d>", k+1)
			}
			main.setCell(0, k, name)
		})
		mm.output(main.displayCell(1, k), func(Ctx) {
			if !model.Exists(marker) {
				main.setCell(1, k, "---")
				return
			}
			main.setCell(1, k, s.barBeat(model.Float(position)))
		})
	}
}

// fKeyAction is the host action of F-key i outside marker mode.
func (s *Surface) fKeyAction(i int) string {
	if a, ok := s.actions[mcu.F1+mcu.Note(i)]; ok {
		return a
	}
	switch i {
	case 0:
		return "transport.return_to_arrangement"
	case 1:
		return "application.toggle_panel_layout"
	default:
		return ""
	}
}

// barBeat formats a position as "bar:beat" using the current signature.
func (s *Surface) barBeat(quarters float64) string {
	num, den := parseTimeSignature(s.model.String("transport.time_signature"))
	if quarters < 0 {
		quarters = 0
	}
	beats := int(quarters * float64(den) / 4)
	return fmt.Sprintf("%d:%d", beats/num+1, beats%num+1)
}

func (s *Surface) openMarkerMenu() {
	s.logger.Debug("marker menu opened")
	s.markerMenu.Activate()
}

func (s *Surface) closeMarkerMenu() {
	if s.markerMenu.IsActive() {
		s.logger.Debug("marker menu closed")
		s.markerMenu.Deactivate()
	}
}

// bindUserActions binds configured host actions to main unit buttons other
// than F1-F8.
func (s *Surface) bindUserActions() {
	main := s.sections[0]
	g := s.bind(s.global)
	for note, action := range s.actions {
		if note >= mcu.F1 && note <= mcu.F8 {
			continue
		}
		g.button(main, note, func(Ctx) {
			s.logErr(s.model.Trigger(action), "action failed", "action", action)
		}, nil)
	}
}
