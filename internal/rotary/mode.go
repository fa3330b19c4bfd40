package rotary

import "fmt"

// Mode is the parameter domain the encoders currently control.
type Mode int

const (
	Send Mode = iota
	Pan
	Plugin
	EQ
	Instrument
	Track
)

// Modes lists every mode in button order.
var Modes = []Mode{Send, Pan, Plugin, EQ, Instrument, Track}

func (m Mode) String() string {
	switch m {
	case Send:
		return "send"
	case Pan:
		return "pan"
	case Plugin:
		return "plugin"
	case EQ:
		return "eq"
	case Instrument:
		return "instrument"
	case Track:
		return "track"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Code is the two character label shown on the assignment display.
func (m Mode) Code() string {
	switch m {
	case Send:
		return "SE"
	case Pan:
		return "PN"
	case Plugin:
		return "PL"
	case EQ:
		return "EQ"
	case Instrument:
		return "IN"
	case Track:
		return "TR"
	default:
		return "--"
	}
}

// ParseMode converts a mode name (as used in config) to a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown rotary mode %q", s)
}

// State is the current mode together with the data only that mode needs.
// The concrete types below are the only implementations.
type State interface {
	Mode() Mode
	// Page is the sub-page cursor, 0 based.
	Page() int
	isState()
}

// SendState selects which send slot the encoders edit.
type SendState struct{ Slot int }

// PanState has no sub-pages.
type PanState struct{}

// PluginState tracks the remote-control page of the audio effect device.
type PluginState struct{ RemotePage int }

// EQState tracks which band group (four bands per page) is shown.
type EQState struct{ BandPage int }

// InstrumentState tracks the remote-control page of the instrument device.
type InstrumentState struct{ RemotePage int }

// TrackState tracks the cursor-track parameter page.
type TrackState struct{ ParamPage int }

func (SendState) Mode() Mode       { return Send }
func (PanState) Mode() Mode        { return Pan }
func (PluginState) Mode() Mode     { return Plugin }
func (EQState) Mode() Mode         { return EQ }
func (InstrumentState) Mode() Mode { return Instrument }
func (TrackState) Mode() Mode      { return Track }

func (s SendState) Page() int       { return s.Slot }
func (PanState) Page() int          { return 0 }
func (s PluginState) Page() int     { return s.RemotePage }
func (s EQState) Page() int         { return s.BandPage }
func (s InstrumentState) Page() int { return s.RemotePage }
func (s TrackState) Page() int      { return s.ParamPage }

func (SendState) isState()       {}
func (PanState) isState()        {}
func (PluginState) isState()     {}
func (EQState) isState()         {}
func (InstrumentState) isState() {}
func (TrackState) isState()      {}

// Initial returns the first-page state for m.
func Initial(m Mode) State {
	switch m {
	case Send:
		return SendState{}
	case Plugin:
		return PluginState{}
	case EQ:
		return EQState{}
	case Instrument:
		return InstrumentState{}
	case Track:
		return TrackState{}
	default:
		return PanState{}
	}
}

// withPage moves s to page p, wrapping within pages. This is the single
// place where per-mode behavior diverges.
func withPage(s State, p, pages int) State {
	if pages <= 0 {
		pages = 1
	}
	p %= pages
	if p < 0 {
		p += pages
	}
	switch st := s.(type) {
	case SendState:
		st.Slot = p
		return st
	case PanState:
		return st
	case PluginState:
		st.RemotePage = p
		return st
	case EQState:
		st.BandPage = p
		return st
	case InstrumentState:
		st.RemotePage = p
		return st
	case TrackState:
		st.ParamPage = p
		return st
	default:
		panic(fmt.Sprintf("rotary: unhandled state %T", s))
	}
}
