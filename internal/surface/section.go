package surface

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"mackiebridge/internal/layer"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/mirror"
	"mackiebridge/internal/rotary"
)

// masterChannel is the pitch bend channel of the master fader.
const masterChannel = 8

// assignKeyBase offsets assignment digits in the digit cache; keys below it
// are timecode digits.
const assignKeyBase = 100

// Section is one physical unit: the main unit or an extender. It owns the
// mirror caches for its outputs and the layers for its channel strips.
type Section struct {
	s      *Surface
	index  int
	name   string
	device byte
	out    Output
	main   bool

	leds   *mirror.Cache[mcu.Note, uint8]
	rings  *mirror.Cache[int, uint8]
	faders *mirror.Cache[uint8, uint16]
	lcd    *mirror.Cache[int, string]
	digits *mirror.Cache[int, uint8]

	base    *layer.Layer[Ctx]
	flip    *layer.Layer[Ctx]
	modes   map[rotary.Mode]*layer.Layer[Ctx]
	current *layer.Layer[Ctx]

	// touched is indexed by strip, masterChannel for the master fader.
	touched [mcu.StripCount + 1]bool

	spin [mcu.StripCount]*rotary.Velocity
}

func newSection(s *Surface, idx int, p SectionPort) (*Section, error) {
	sec := &Section{
		s:      s,
		index:  idx,
		name:   p.Name,
		device: mcu.DeviceExtender,
		out:    p.Out,
		main:   idx == 0,
		modes:  make(map[rotary.Mode]*layer.Layer[Ctx]),
	}
	if sec.main {
		sec.device = mcu.DeviceMain
	}
	for k := range sec.spin {
		sec.spin[k] = rotary.NewVelocity(spinWindow)
	}
	if sec.name == "" {
		sec.name = fmt.Sprintf("section-%d", idx)
	}

	sec.leds = mirror.New(func(n mcu.Note, v uint8) error { return sec.send(mcu.LED(n, v)) })
	sec.rings = mirror.New(func(k int, v uint8) error { return sec.send(mcu.Ring(k, v)) })
	sec.faders = mirror.New(func(ch uint8, pos uint16) error { return sec.send(mcu.Fader(ch, pos)) })
	sec.lcd = mirror.New(func(k int, text string) error {
		return sec.send(mcu.LCDCell(sec.device, k/mcu.StripCount, k%mcu.StripCount, text))
	})
	sec.digits = mirror.New(func(k int, code uint8) error {
		if k >= assignKeyBase {
			return sec.send(mcu.AssignmentDigit(k-assignKeyBase, code))
		}
		return sec.send(mcu.TimecodeDigit(k, code))
	})

	var err error
	if sec.base, err = s.reg.NewLayer(sec.layerName("base")); err != nil {
		return nil, err
	}
	if sec.flip, err = s.reg.NewLayer(sec.layerName("flip")); err != nil {
		return nil, err
	}
	for _, m := range rotary.Modes {
		l, err := s.reg.NewLayer(sec.layerName("mode." + m.String()))
		if err != nil {
			return nil, err
		}
		sec.modes[m] = l
	}

	sec.bindStrips()
	for _, m := range rotary.Modes {
		sec.bindMode(m)
	}
	sec.bindFlip()
	return sec, nil
}

func (sec *Section) layerName(suffix string) string {
	return fmt.Sprintf("s%d.%s", sec.index, suffix)
}

func (sec *Section) send(msg midi.Message) error {
	if sec.out == nil {
		return nil
	}
	return sec.out.Send(msg)
}

// Control constructors for this section.

func (sec *Section) button(n mcu.Note) layer.Control {
	return layer.Control{Section: sec.index, Kind: layer.Button, Index: int(n)}
}

func (sec *Section) light(n mcu.Note) layer.Control {
	return layer.Control{Section: sec.index, Kind: layer.Light, Index: int(n)}
}

func (sec *Section) control(k layer.Kind, i int) layer.Control {
	return layer.Control{Section: sec.index, Kind: k, Index: i}
}

func (sec *Section) displayCell(row, strip int) layer.Control {
	return sec.control(layer.Display, row*mcu.StripCount+strip)
}

// Cached writes. Failures are logged; the cache keeps the old value so the
// next refresh retries.

func (sec *Section) setLED(n mcu.Note, on bool) {
	v := mcu.LEDOff
	if on {
		v = mcu.LEDOn
	}
	_, err := sec.leds.Write(n, v)
	sec.s.logErr(err, "led write failed", "section", sec.name, "note", n.String())
}

func (sec *Section) setRing(strip int, v uint8) {
	_, err := sec.rings.Write(strip, v)
	sec.s.logErr(err, "ring write failed", "section", sec.name, "strip", strip)
}

func (sec *Section) setFader(ch uint8, v float64) {
	if int(ch) < len(sec.touched) && sec.touched[ch] {
		return
	}
	_, err := sec.faders.Write(ch, normToFader(v))
	sec.s.logErr(err, "fader write failed", "section", sec.name, "channel", ch)
}

func (sec *Section) setCell(row, strip int, text string) {
	_, err := sec.lcd.Write(row*mcu.StripCount+strip, mcu.PadCell(text))
	sec.s.logErr(err, "lcd write failed", "section", sec.name, "row", row, "strip", strip)
}

func (sec *Section) setDigits(tc Timecode) {
	for i := 0; i < timecodeDigits && i < len(tc.Text); i++ {
		code := mcu.SegmentCode(tc.Text[i], tc.Dots[i])
		_, err := sec.digits.Write(timecodeDigits-1-i, code)
		sec.s.logErr(err, "timecode write failed", "section", sec.name)
	}
}

func (sec *Section) setAssignment(code string) {
	for len(code) < 2 {
		code = " " + code
	}
	// Digit 0 is the right character.
	for i := 0; i < 2; i++ {
		c := mcu.SegmentCode(code[1-i], false)
		_, err := sec.digits.Write(assignKeyBase+i, c)
		sec.s.logErr(err, "assignment write failed", "section", sec.name)
	}
}

// touch records a fader touch edge. A released fader is forgotten by the
// cache so its physical position is overwritten on the next refresh.
func (sec *Section) touch(ch uint8, down bool) {
	if int(ch) >= len(sec.touched) {
		return
	}
	sec.touched[ch] = down
	if !down {
		sec.faders.Forget(ch)
	}
}

func normToFader(v float64) uint16 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint16(v*16383 + 0.5)
}

func faderToNorm(pos int) float64 {
	return float64(pos) / 16383
}

// trackPath is the host path prefix for strip k of this section.
func (sec *Section) trackPath(k int) string {
	return fmt.Sprintf("mixer.%d", sec.index*mcu.StripCount+k)
}

// sectionMode maps the global rotary mode to the one this section shows.
// Device modes only exist on the main unit; extenders stay on pan.
func (sec *Section) sectionMode(m rotary.Mode) rotary.Mode {
	if sec.main {
		return m
	}
	switch m {
	case rotary.Send, rotary.Pan:
		return m
	default:
		return rotary.Pan
	}
}

// setModeLayer swaps the active encoder layer and puts overriding layers
// back on top.
func (sec *Section) setModeLayer(m rotary.Mode) {
	next := sec.modes[sec.sectionMode(m)]
	if next == sec.current {
		return
	}
	if sec.current != nil {
		sec.current.Deactivate()
	}
	next.Activate()
	sec.current = next

	if sec.flip.IsActive() {
		sec.flip.Activate()
	}
	if sec.main && sec.s.markerMenu.IsActive() {
		sec.s.markerMenu.Activate()
	}
}

// ModeChanged implements rotary.Listener.
func (sec *Section) ModeChanged(st rotary.State) {
	sec.setModeLayer(st.Mode())
}

// ModeAdvanced implements rotary.Listener. Page dependent outputs read the
// page from Ctx, so the refresh after the event is enough.
func (sec *Section) ModeAdvanced(rotary.State, bool) {}

func (sec *Section) resync() (int, error) {
	var total int
	var errs []error
	for _, f := range []func() (int, error){
		sec.leds.ForceResync,
		sec.rings.ForceResync,
		sec.faders.ForceResync,
		sec.lcd.ForceResync,
		sec.digits.ForceResync,
	} {
		n, err := f()
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// clearAll resets every output of the section and writes msg centered on
// the top row of its display.
func (sec *Section) clearAll(msg string) error {
	var errs []error

	notes := make([]mcu.Note, 0, mcu.NumNotes)
	for n := 0; n < mcu.NumNotes; n++ {
		notes = append(notes, mcu.Note(n))
	}
	errs = append(errs, sec.leds.Clear(mcu.LEDOff, notes...))

	strips := make([]int, mcu.StripCount)
	for i := range strips {
		strips[i] = i
	}
	errs = append(errs, sec.rings.Clear(0, strips...))

	channels := []uint8{0, 1, 2, 3, 4, 5, 6, 7}
	if sec.main {
		channels = append(channels, masterChannel)
	}
	errs = append(errs, sec.faders.Clear(0, channels...))

	cells := make([]int, 2*mcu.StripCount)
	for i := range cells {
		cells[i] = i
	}
	errs = append(errs, sec.lcd.Clear(mcu.PadCell(""), cells...))

	if sec.main {
		digits := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, assignKeyBase, assignKeyBase + 1}
		errs = append(errs, sec.digits.Clear(mcu.SegmentCode(' ', false), digits...))
	}

	text := msg
	if len(text) > mcu.LCDRowLen {
		text = text[:mcu.LCDRowLen]
	}
	pad := (mcu.LCDRowLen - len(text)) / 2
	line := strings.Repeat(" ", pad) + text
	errs = append(errs, sec.send(mcu.LCDText(sec.device, 0, ASCIILabel(line, mcu.LCDRowLen))))
	return errors.Join(errs...)
}
