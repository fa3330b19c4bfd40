// Package surface is the control surface controller. It owns the layer
// registry, modifier state, hold repeater, deferred slot, rotary-mode
// controller and one Section per connected unit, and turns decoded MIDI input
// into host commands and host state into LED, ring, fader, display and
// timecode writes.
//
// Everything here runs on the daemon loop goroutine: Handle, Tick,
// ApplyObservation, Resync and Shutdown must not be called concurrently.
package surface

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"

	"mackiebridge/internal/deferred"
	"mackiebridge/internal/hold"
	"mackiebridge/internal/host"
	"mackiebridge/internal/layer"
	"mackiebridge/internal/mcu"
	"mackiebridge/internal/modifier"
	"mackiebridge/internal/rotary"
)

const (
	// TickInterval is the cadence Tick expects to be called at.
	TickInterval = 100 * time.Millisecond

	// DefaultShutdownGrace is how long Shutdown waits after the reset writes
	// so the driver can flush them.
	DefaultShutdownGrace = 300 * time.Millisecond

	// MarkerHoldDelay is how long MARKER must be held to open the marker menu.
	MarkerHoldDelay = 300 * time.Millisecond

	markerHoldID = "marker-hold"

	// blinkTicks is the blink half period in ticks (500 ms).
	blinkTicks = 5

	// mixerBank is the host bank the channel strips follow.
	mixerBank = "mixer"
)

// Notification kinds passed to Notifier.
const (
	NotifyModeChanged      = "mode_changed"
	NotifyModifiersChanged = "modifiers_changed"
	NotifyLayersChanged    = "layers_changed"
	NotifyVUModeChanged    = "vu_mode_changed"
	NotifyPositionChanged  = "position_changed"
	NotifyResync           = "resync"
)

// Output is where a section's MIDI goes. *mcu.Port implements it.
type Output interface {
	Send(msg midi.Message) error
}

// SectionPort names the output for one section. The first entry passed to
// New is the main unit, the rest are extenders.
type SectionPort struct {
	Name string
	Out  Output
}

// Notifier receives state changes for the status server.
type Notifier interface {
	Notify(kind string, data any)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(kind string, data any)

func (f NotifierFunc) Notify(kind string, data any) { f(kind, data) }

// Ctx is handed to every binding at dispatch time.
type Ctx struct {
	Mods   modifier.Snapshot
	Rotary rotary.State
	Blink  bool
}

// Config holds construction options. Zero values get defaults.
type Config struct {
	Logger   *slog.Logger
	Notifier Notifier

	// Now and Sleep default to time.Now and time.Sleep.
	Now   func() time.Time
	Sleep func(time.Duration)

	InitialMode   rotary.Mode
	ShutdownGrace time.Duration
	ExitMessage   string

	// Actions maps extra buttons of the main unit to host actions. F1-F8
	// entries replace the default function outside marker mode; any other
	// button must not already be bound.
	Actions map[mcu.Note]string
}

// Surface is the top-level controller.
type Surface struct {
	logger  *slog.Logger
	notify  Notifier
	now     func() time.Time
	sleep   func(time.Duration)
	grace   time.Duration
	exitMsg string
	actions map[mcu.Note]string

	model    *host.Model
	reg      *layer.Registry[Ctx]
	mods     *modifier.State
	hold     *hold.Repeater
	slot     *deferred.Slot
	rotary   *rotary.Controller
	sections []*Section

	global     *layer.Layer[Ctx]
	shift      *layer.Layer[Ctx]
	zoomNav    *layer.Layer[Ctx]
	markerMenu *layer.Layer[Ctx]

	bindErrs []error

	ticks      int
	blink      bool
	flip       bool
	zoom       bool
	scrub      bool
	markerMode bool
	vu         VUMode
	timecode   TimecodeMode
	autoMode   string
	held       map[mcu.Note]bool

	// onScrub observes the speed of every hold scrub step.
	onScrub func(speed float64)
}

// New builds the controller with one section per port. A binding conflict
// (the same control bound twice in one layer) is returned as an error
// wrapping layer.ErrDuplicateBinding.
func New(cfg Config, model *host.Model, ports []SectionPort) (*Surface, error) {
	if len(ports) == 0 {
		return nil, errors.New("surface: no main section port")
	}
	if model == nil {
		return nil, errors.New("surface: nil host model")
	}

	s := &Surface{
		logger:  cfg.Logger,
		notify:  cfg.Notifier,
		now:     cfg.Now,
		sleep:   cfg.Sleep,
		grace:   cfg.ShutdownGrace,
		exitMsg: cfg.ExitMessage,
		actions: cfg.Actions,
		model:   model,
		mods:    modifier.New(),
		held:    make(map[mcu.Note]bool),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.notify == nil {
		s.notify = NotifierFunc(func(string, any) {})
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.grace <= 0 {
		s.grace = DefaultShutdownGrace
	}
	if s.exitMsg == "" {
		s.exitMsg = "mackiebridge stopped"
	}

	s.reg = layer.NewRegistry(s.context)
	s.hold = hold.NewRepeater(s.now)
	s.slot = deferred.New(s.now)
	s.rotary = rotary.NewController(cfg.InitialMode, s.pageCount)

	var err error
	if s.global, err = s.reg.NewLayer("global"); err != nil {
		return nil, err
	}
	if s.shift, err = s.reg.NewLayer("shift"); err != nil {
		return nil, err
	}
	if s.zoomNav, err = s.reg.NewLayer("zoom"); err != nil {
		return nil, err
	}
	if s.markerMenu, err = s.reg.NewLayer("marker-menu"); err != nil {
		return nil, err
	}

	for i, p := range ports {
		sec, err := newSection(s, i, p)
		if err != nil {
			return nil, err
		}
		s.sections = append(s.sections, sec)
		s.rotary.AddListener(sec)
	}
	s.rotary.AddListener(modeEvents{s})

	s.bindTransport()
	s.bindNavigation()
	s.bindMarkers()
	s.bindUserActions()
	if err := errors.Join(s.bindErrs...); err != nil {
		return nil, fmt.Errorf("surface bindings: %w", err)
	}

	s.mods.Observe(func(k modifier.Key, held bool) {
		if k == modifier.Shift {
			s.shift.SetActive(held)
		}
		s.notify.Notify(NotifyModifiersChanged, s.mods.Snapshot())
	})
	s.reg.Observe(func(active []string) {
		s.notify.Notify(NotifyLayersChanged, active)
	})
	s.observeHost()

	return s, nil
}

// context builds the Ctx for a dispatch or refresh.
func (s *Surface) context() Ctx {
	c := Ctx{Mods: s.mods.Snapshot(), Blink: s.blink}
	if s.rotary != nil {
		c.Rotary = s.rotary.Current()
	}
	return c
}

func (s *Surface) observeHost() {
	s.model.Observe("transport.automation_mode", func(_ string, v any) {
		mode, _ := v.(string)
		switch mode {
		case "touch", "latch", "write":
			s.autoMode = mode
		default:
			s.logger.Debug("ignoring unknown automation mode", "mode", mode)
		}
	})
	s.model.Observe("transport.position", func(_ string, v any) {
		s.notify.Notify(NotifyPositionChanged, v)
	})
	for _, p := range pageCountPaths {
		s.model.Observe(p, func(string, any) { s.rotary.Clamp() })
	}
}

// Start activates the base layers and pushes the initial state.
func (s *Surface) Start() {
	for _, sec := range s.sections {
		sec.base.Activate()
		sec.setModeLayer(s.rotary.Mode())
	}
	s.global.Activate()
	s.applyVUMode()
	s.renderTimecode()
	s.reg.Refresh()
	s.logger.Info("surface started",
		"sections", len(s.sections), "mode", s.rotary.Mode().String())
}

// Handle processes one inbound message from section idx.
func (s *Surface) Handle(idx int, msg midi.Message) {
	if idx < 0 || idx >= len(s.sections) {
		return
	}
	ev, ok := mcu.Decode(msg)
	if !ok {
		s.logger.Debug("ignoring midi message", "section", idx, "msg", msg.String())
		return
	}

	var c layer.Control
	var in layer.Input
	switch ev.Kind {
	case mcu.EventNote:
		c, in = noteControl(idx, mcu.Note(ev.Number), ev.Value > 0)
	case mcu.EventCC:
		switch {
		case ev.Number >= mcu.CCVPotBase && ev.Number < mcu.CCVPotBase+mcu.StripCount:
			c = layer.Control{Section: idx, Kind: layer.Encoder, Index: int(ev.Number) - mcu.CCVPotBase}
		case ev.Number == mcu.CCJog:
			c = layer.Control{Section: idx, Kind: layer.Jog}
		default:
			s.logger.Debug("ignoring control change", "section", idx, "cc", ev.Number)
			return
		}
		in = layer.Input{Kind: layer.Turn, Delta: mcu.RelativeSignedBit(ev.Value)}
	case mcu.EventPitchBend:
		c = layer.Control{Section: idx, Kind: layer.Fader, Index: int(ev.Channel)}
		in = layer.Input{Kind: layer.Move, Value: ev.Value}
	case mcu.EventSysEx:
		if mcu.IsDeviceReload(ev.Data) {
			s.logger.Info("surface reported reload; resyncing", "section", idx)
			s.Resync()
			return
		}
		s.logger.Debug("ignoring sysex", "section", idx, "len", len(ev.Data))
		return
	}

	if !s.reg.Dispatch(c, in) {
		s.logger.Debug("unbound control", "control", c.String())
		return
	}
	s.reg.Refresh()
}

func noteControl(idx int, n mcu.Note, pressed bool) (layer.Control, layer.Input) {
	in := layer.Input{Kind: layer.Release}
	if pressed {
		in.Kind = layer.Press
	}
	if n >= mcu.FaderTouch0 && n <= mcu.MasterTouch {
		return layer.Control{Section: idx, Kind: layer.Touch, Index: int(n - mcu.FaderTouch0)}, in
	}
	return layer.Control{Section: idx, Kind: layer.Button, Index: int(n)}, in
}

// Tick advances time based behavior: hold scrub, the deferred slot, blink
// and the timecode display.
func (s *Surface) Tick(now time.Time) {
	s.hold.Tick(now)
	s.slot.Tick(now)

	s.ticks++
	if s.ticks%blinkTicks == 0 {
		s.blink = !s.blink
	}
	s.renderTimecode()
	s.reg.Refresh()
}

// ApplyObservation applies a host update and refreshes outputs if anything
// changed.
func (s *Surface) ApplyObservation(o host.Observation) {
	if s.model.Apply(o) {
		s.reg.Refresh()
	}
}

// Resync retransmits everything the mirror caches hold, then the meter
// modes, which are not cached.
func (s *Surface) Resync() {
	total := 0
	for _, sec := range s.sections {
		n, err := sec.resync()
		total += n
		if err != nil {
			s.logger.Warn("resync write failed", "section", sec.name, "error", err)
		}
	}
	s.applyVUMode()
	s.notify.Notify(NotifyResync, map[string]int{"writes": total})
}

// Shutdown stops gestures, resets every LED, ring, fader and display, writes
// the exit message and then blocks for the grace period.
func (s *Surface) Shutdown() error {
	s.hold.Stop()
	s.slot.CancelIfMatching(markerHoldID)

	var errs []error
	for _, sec := range s.sections {
		if err := sec.clearAll(s.exitMsg); err != nil {
			errs = append(errs, fmt.Errorf("section %s: %w", sec.name, err))
		}
	}
	s.sleep(s.grace)
	return errors.Join(errs...)
}

// Sections returns the section names in order.
func (s *Surface) Sections() []string {
	out := make([]string, len(s.sections))
	for i, sec := range s.sections {
		out[i] = sec.name
	}
	return out
}

// Snapshot is the controller state reported to status clients.
type Snapshot struct {
	Mode       string            `json:"mode"`
	Page       int               `json:"page"`
	Modifiers  modifier.Snapshot `json:"modifiers"`
	Layers     []string          `json:"layers"`
	VUMode     string            `json:"vu_mode"`
	Timecode   string            `json:"timecode_mode"`
	Flip       bool              `json:"flip"`
	Zoom       bool              `json:"zoom"`
	Scrub      bool              `json:"scrub"`
	MarkerMode bool              `json:"marker_mode"`
	Sections   []string          `json:"sections"`
	Position   float64           `json:"position"`
	Pending    string            `json:"pending_action,omitempty"`
}

// Snapshot returns the current controller state.
func (s *Surface) Snapshot() Snapshot {
	st := s.rotary.Current()
	pending, _ := s.slot.Pending()
	return Snapshot{
		Mode:       st.Mode().String(),
		Page:       st.Page(),
		Modifiers:  s.mods.Snapshot(),
		Layers:     s.reg.Active(),
		VUMode:     s.vu.String(),
		Timecode:   s.timecode.String(),
		Flip:       s.flip,
		Zoom:       s.zoom,
		Scrub:      s.scrub,
		MarkerMode: s.markerMode,
		Sections:   s.Sections(),
		Position:   s.model.Float("transport.position"),
		Pending:    pending,
	}
}

// modeEvents reports rotary changes to the notifier.
type modeEvents struct{ s *Surface }

func (m modeEvents) ModeChanged(st rotary.State) {
	m.s.logger.Debug("rotary mode changed", "mode", st.Mode().String())
	m.s.notify.Notify(NotifyModeChanged, map[string]any{"mode": st.Mode().String(), "page": st.Page()})
}

func (m modeEvents) ModeAdvanced(st rotary.State, pressed bool) {
	if pressed {
		m.s.notify.Notify(NotifyModeChanged, map[string]any{"mode": st.Mode().String(), "page": st.Page()})
	}
}

// pageCountPaths are the host values that bound rotary sub-pages.
var pageCountPaths = map[rotary.Mode]string{
	rotary.Send:       "mixer.send_count",
	rotary.Plugin:     "device.plugin.page_count",
	rotary.EQ:         "device.eq.page_count",
	rotary.Instrument: "device.instrument.page_count",
	rotary.Track:      "cursor.param.page_count",
}

func (s *Surface) pageCount(m rotary.Mode) int {
	p, ok := pageCountPaths[m]
	if !ok {
		return 1
	}
	n := int(s.model.Float(p))
	if n < 1 {
		return 1
	}
	return n
}

// binder collects binding errors so New can report them all at once.
type binder struct {
	s *Surface
	l *layer.Layer[Ctx]
}

func (s *Surface) bind(l *layer.Layer[Ctx]) binder { return binder{s: s, l: l} }

func (b binder) input(c layer.Control, h layer.InputHandler[Ctx]) {
	if err := b.l.BindInput(c, h); err != nil {
		b.s.bindErrs = append(b.s.bindErrs, err)
	}
}

func (b binder) output(c layer.Control, f layer.OutputFunc[Ctx]) {
	if err := b.l.BindOutput(c, f); err != nil {
		b.s.bindErrs = append(b.s.bindErrs, err)
	}
}

// button binds a main unit button; either callback may be nil.
func (b binder) button(sec *Section, n mcu.Note, press, release func(Ctx)) {
	b.input(sec.button(n), func(c Ctx, in layer.Input) {
		switch {
		case in.Kind == layer.Press && press != nil:
			press(c)
		case in.Kind == layer.Release && release != nil:
			release(c)
		}
	})
}

// light binds an LED to a predicate.
func (b binder) light(sec *Section, n mcu.Note, on func(Ctx) bool) {
	b.output(sec.light(n), func(c Ctx) {
		sec.setLED(n, on(c))
	})
}

// logErr logs a failed host command or wire write.
func (s *Surface) logErr(err error, msg string, args ...any) {
	if err == nil {
		return
	}
	s.logger.Warn(msg, append(args, "error", err)...)
}
