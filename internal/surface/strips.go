package surface

import (
	"fmt"
	"time"

	"mackiebridge/internal/layer"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/rotary"
)

// Encoder step sizes for normalized parameters.
const (
	encoderStep     = 1.0 / 100
	encoderFineStep = 1.0 / 1000
)

// spinWindow is how far back encoder detents count toward fast spinning.
const spinWindow = 200 * time.Millisecond

// param describes what an encoder of a section controls in one mode.
type param struct {
	path   string
	ring   mcu.RingMode
	pan    bool
	exists bool
	label  string
}

func (sec *Section) param(m rotary.Mode, st rotary.State, k int) param {
	page := 0
	if st != nil && st.Mode() == m {
		page = st.Page()
	}
	model := sec.s.model
	track := sec.trackPath(k)
	trackName := DisplayName(model.String(track + ".name"))

	switch m {
	case rotary.Pan:
		return param{
			path:   track + ".pan",
			ring:   mcu.RingDot,
			pan:    true,
			exists: model.Exists(track),
			label:  trackName,
		}
	case rotary.Send:
		p := fmt.Sprintf("%s.send.%d", track, page)
		return param{
			path:   p,
			ring:   mcu.RingWrap,
			exists: model.Exists(track) && model.Exists(p),
			label:  trackName,
		}
	}

	var p string
	ring := mcu.RingWrap
	idx := page*mcu.StripCount + k
	switch m {
	case rotary.Plugin:
		p = fmt.Sprintf("device.plugin.param.%d", idx)
	case rotary.EQ:
		p = fmt.Sprintf("device.eq.param.%d", idx)
		ring = mcu.RingBoost
	case rotary.Instrument:
		p = fmt.Sprintf("device.instrument.param.%d", idx)
	case rotary.Track:
		p = fmt.Sprintf("cursor.param.%d", idx)
	}
	return param{
		path:   p,
		ring:   ring,
		exists: model.Exists(p),
		label:  ASCIILabel(model.String(p+".name"), mcu.LCDCellLen),
	}
}

// valueText renders the current value of p for the second LCD row.
func (sec *Section) valueText(p param) string {
	if !p.exists {
		return ""
	}
	model := sec.s.model
	if p.pan {
		return PanString(model.Float(p.path))
	}
	if txt := model.String(p.path + ".display"); txt != "" {
		return CondenseValue(txt, mcu.LCDCellLen)
	}
	return PercentString(model.Float(p.path))
}

func (sec *Section) ringValue(p param) uint8 {
	v := sec.s.model.Float(p.path)
	return mcu.RingValue(p.ring, v, !p.exists, p.pan && v == 0.5)
}

// spinDelta scales an encoder delta of strip k by how fast it is turning.
// Fine adjustment is never accelerated.
func (sec *Section) spinDelta(k, delta int, fine bool) int {
	if delta == 0 {
		return 0
	}
	dir := 1
	if delta < 0 {
		dir = -1
	}
	count := sec.spin[k].AddStep(sec.s.now(), dir)
	if fine {
		return delta
	}
	return delta * rotary.SpinFactor(count)
}

// adjust moves a normalized host value by delta encoder steps.
func (s *Surface) adjust(path string, delta int, fine bool) {
	step := encoderStep
	if fine {
		step = encoderFineStep
	}
	v := s.model.Float(path) + float64(delta)*step
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.logErr(s.model.Set(path, v), "set failed", "path", path)
}

// bindStrips binds faders, touch sensors and strip buttons into the base
// layer, plus the master fader on the main unit.
func (sec *Section) bindStrips() {
	b := sec.s.bind(sec.base)
	model := sec.s.model

	for k := 0; k < mcu.StripCount; k++ {
		track := sec.trackPath(k)
		volume := track + ".volume"
		ch := uint8(k)

		b.input(sec.control(layer.Fader, k), func(_ Ctx, in layer.Input) {
			if in.Kind == layer.Move && model.Exists(track) {
				sec.s.logErr(model.Set(volume, faderToNorm(in.Value)), "set failed", "path", volume)
			}
		})
		b.input(sec.control(layer.Touch, k), func(c Ctx, in layer.Input) {
			sec.touch(ch, in.Pressed())
			if in.Pressed() && c.Mods.Shift {
				sec.s.logErr(model.Reset(volume), "reset failed", "path", volume)
			}
		})
		b.output(sec.control(layer.Motor, k), func(Ctx) {
			if !model.Exists(track) {
				sec.setFader(ch, 0)
				return
			}
			sec.setFader(ch, model.Float(volume))
		})

		b.button(sec, mcu.Select.Strip(k), func(Ctx) {
			sec.s.logErr(model.Trigger(track+".select"), "select failed", "track", track)
		}, nil)
		b.light(sec, mcu.Select.Strip(k), func(Ctx) bool {
			return model.Exists(track) && model.Bool(track+".selected")
		})

		for _, t := range []struct {
			note mcu.Note
			path string
		}{
			{mcu.Mute.Strip(k), track + ".mute"},
			{mcu.Solo.Strip(k), track + ".solo"},
			{mcu.RecArm.Strip(k), track + ".arm"},
		} {
			path := t.path
			b.button(sec, t.note, func(Ctx) {
				if model.Exists(track) {
					sec.s.logErr(model.Toggle(path), "toggle failed", "path", path)
				}
			}, nil)
			b.light(sec, t.note, func(Ctx) bool {
				return model.Exists(track) && model.Bool(path)
			})
		}
	}

	if !sec.main {
		return
	}
	const master = "master.volume"
	b.input(sec.control(layer.Fader, masterChannel), func(_ Ctx, in layer.Input) {
		if in.Kind == layer.Move {
			sec.s.logErr(model.Set(master, faderToNorm(in.Value)), "set failed", "path", master)
		}
	})
	b.input(sec.control(layer.Touch, masterChannel), func(c Ctx, in layer.Input) {
		sec.touch(masterChannel, in.Pressed())
		if in.Pressed() && c.Mods.Shift {
			sec.s.logErr(model.Reset(master), "reset failed", "path", master)
		}
	})
	b.output(sec.control(layer.Motor, masterChannel), func(Ctx) {
		sec.setFader(masterChannel, model.Float(master))
	})
}

// bindMode binds encoders, encoder presses, rings and both LCD rows for one
// rotary mode.
func (sec *Section) bindMode(m rotary.Mode) {
	b := sec.s.bind(sec.modes[m])
	model := sec.s.model

	for k := 0; k < mcu.StripCount; k++ {
		b.input(sec.control(layer.Encoder, k), func(c Ctx, in layer.Input) {
			if p := sec.param(m, c.Rotary, k); p.exists {
				sec.s.adjust(p.path, sec.spinDelta(k, in.Delta, c.Mods.Shift), c.Mods.Shift)
			}
		})
		b.button(sec, mcu.VPotPress.Strip(k), func(c Ctx) {
			if p := sec.param(m, c.Rotary, k); p.exists {
				sec.s.logErr(model.Reset(p.path), "reset failed", "path", p.path)
			}
		}, nil)
		b.output(sec.control(layer.Ring, k), func(c Ctx) {
			sec.setRing(k, sec.ringValue(sec.param(m, c.Rotary, k)))
		})
		b.output(sec.displayCell(0, k), func(c Ctx) {
			p := sec.param(m, c.Rotary, k)
			if !p.exists {
				sec.setCell(0, k, "")
				return
			}
			sec.setCell(0, k, p.label)
		})
		b.output(sec.displayCell(1, k), func(c Ctx) {
			sec.setCell(1, k, sec.valueText(sec.param(m, c.Rotary, k)))
		})
	}
}

// bindFlip binds the flip layer: faders drive the encoder parameter of the
// current mode and encoders drive volume.
func (sec *Section) bindFlip() {
	b := sec.s.bind(sec.flip)
	model := sec.s.model

	for k := 0; k < mcu.StripCount; k++ {
		track := sec.trackPath(k)
		volume := track + ".volume"
		ch := uint8(k)
		current := func(c Ctx) param {
			m := rotary.Pan
			if c.Rotary != nil {
				m = sec.sectionMode(c.Rotary.Mode())
			}
			return sec.param(m, c.Rotary, k)
		}

		b.input(sec.control(layer.Fader, k), func(c Ctx, in layer.Input) {
			if p := current(c); in.Kind == layer.Move && p.exists {
				sec.s.logErr(model.Set(p.path, faderToNorm(in.Value)), "set failed", "path", p.path)
			}
		})
		b.input(sec.control(layer.Touch, k), func(c Ctx, in layer.Input) {
			sec.touch(ch, in.Pressed())
			if p := current(c); in.Pressed() && c.Mods.Shift && p.exists {
				sec.s.logErr(model.Reset(p.path), "reset failed", "path", p.path)
			}
		})
		b.output(sec.control(layer.Motor, k), func(c Ctx) {
			p := current(c)
			if !p.exists {
				sec.setFader(ch, 0)
				return
			}
			sec.setFader(ch, model.Float(p.path))
		})
		b.input(sec.control(layer.Encoder, k), func(c Ctx, in layer.Input) {
			if model.Exists(track) {
				sec.s.adjust(volume, sec.spinDelta(k, in.Delta, c.Mods.Shift), c.Mods.Shift)
			}
		})
		b.button(sec, mcu.VPotPress.Strip(k), func(Ctx) {
			if model.Exists(track) {
				sec.s.logErr(model.Reset(volume), "reset failed", "path", volume)
			}
		}, nil)
		b.output(sec.control(layer.Ring, k), func(Ctx) {
			sec.setRing(k, mcu.RingValue(mcu.RingWrap, model.Float(volume), !model.Exists(track), false))
		})
	}
}
