package modifier

// ============================================================================
// Modifier (chord) state
// ============================================================================
//
// Tracks which chord keys are physically held. Setters are edge triggered and
// notify observers synchronously on the caller's goroutine (the daemon loop),
// so an observer always sees the state produced by the edge that woke it.
//
// Not safe for concurrent use; owned by the surface controller.
// ============================================================================

// Key identifies one of the four chord keys.
type Key int

const (
	Shift Key = iota
	Alt
	Option
	Control
)

func (k Key) String() string {
	switch k {
	case Shift:
		return "shift"
	case Alt:
		return "alt"
	case Option:
		return "option"
	case Control:
		return "control"
	default:
		return "unknown"
	}
}

// Observer is notified after a flag changed.
type Observer func(k Key, held bool)

// State holds the four modifier flags.
type State struct {
	held      [4]bool
	observers []Observer
}

// New returns a State with no keys held.
func New() *State {
	return &State{}
}

// Observe registers fn to be called on every flag change.
func (s *State) Observe(fn Observer) {
	if fn == nil {
		return
	}
	s.observers = append(s.observers, fn)
}

func (s *State) SetShift(v bool)   { s.set(Shift, v) }
func (s *State) SetAlt(v bool)     { s.set(Alt, v) }
func (s *State) SetOption(v bool)  { s.set(Option, v) }
func (s *State) SetControl(v bool) { s.set(Control, v) }

// Set updates a single flag. Observers run only when the value actually
// changed; a repeated press edge (e.g. after a device reload) is swallowed.
func (s *State) Set(k Key, v bool) { s.set(k, v) }

func (s *State) set(k Key, v bool) {
	if k < Shift || k > Control {
		return
	}
	if s.held[k] == v {
		return
	}
	s.held[k] = v
	for _, fn := range s.observers {
		fn(k, v)
	}
}

func (s *State) IsShiftSet() bool   { return s.held[Shift] }
func (s *State) IsAltSet() bool     { return s.held[Alt] }
func (s *State) IsOptionSet() bool  { return s.held[Option] }
func (s *State) IsControlSet() bool { return s.held[Control] }

// Snapshot returns a copy of the current flags.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Shift:   s.held[Shift],
		Alt:     s.held[Alt],
		Option:  s.held[Option],
		Control: s.held[Control],
	}
}

// Snapshot is an immutable copy of the modifier flags, handed to binding
// handlers at dispatch time and to status observers.
type Snapshot struct {
	Shift   bool `json:"shift"`
	Alt     bool `json:"alt"`
	Option  bool `json:"option"`
	Control bool `json:"control"`
}

// None reports whether no modifier is held.
func (s Snapshot) None() bool {
	return !s.Shift && !s.Alt && !s.Option && !s.Control
}
