package host

import "fmt"

// Op is a command verb sent to the host.
type Op string

const (
	OpSet     Op = "set"
	OpToggle  Op = "toggle"
	OpTrigger Op = "trigger"
	OpLaunch  Op = "launch"
	OpScroll  Op = "scroll"
	OpReset   Op = "reset"
)

// Command is one request to the host application.
type Command struct {
	Op    Op     `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	Delta int    `json:"delta,omitempty"`
}

func (c Command) String() string {
	switch c.Op {
	case OpSet:
		return fmt.Sprintf("set(%s=%v)", c.Path, c.Value)
	case OpScroll:
		return fmt.Sprintf("scroll(%s%+d)", c.Path, c.Delta)
	default:
		return fmt.Sprintf("%s(%s)", c.Op, c.Path)
	}
}

// Commander delivers commands to the host.
type Commander interface {
	Send(cmd Command) error
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(Command) error

func (f CommanderFunc) Send(cmd Command) error { return f(cmd) }

// ObservationKind distinguishes value updates from bank updates.
type ObservationKind string

const (
	ObserveValue ObservationKind = "value"
	ObserveBank  ObservationKind = "bank"
)

// Observation is a state update pushed by the host.
type Observation struct {
	Type     ObservationKind `json:"type"`
	Path     string          `json:"path,omitempty"`
	Value    any             `json:"value,omitempty"`
	Bank     string          `json:"bank,omitempty"`
	Position int             `json:"position,omitempty"`
	Size     int             `json:"size,omitempty"`
	Total    int             `json:"total,omitempty"`
}
