package layer

import "fmt"

// Kind is the type of a physical control.
type Kind int

const (
	Button Kind = iota
	Encoder
	Fader
	Touch
	Jog
	Light
	Ring
	Motor
	Display
	Assignment
)

var kindNames = [...]string{
	Button:     "button",
	Encoder:    "encoder",
	Fader:      "fader",
	Touch:      "touch",
	Jog:        "jog",
	Light:      "light",
	Ring:       "ring",
	Motor:      "motor",
	Display:    "display",
	Assignment: "assignment",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Control identifies one physical element of the surface. Section 0 is the
// main unit; extenders are numbered from 1.
type Control struct {
	Section int
	Kind    Kind
	Index   int
}

func (c Control) String() string {
	return fmt.Sprintf("%d/%s/%d", c.Section, c.Kind, c.Index)
}

// InputKind describes what happened on an input control.
type InputKind int

const (
	Press InputKind = iota
	Release
	Turn
	Move
)

// Input is a decoded hardware event delivered to an input binding.
//
//   - Press/Release: button and touch edges
//   - Turn: relative encoder or jog movement, Delta is signed steps
//   - Move: absolute fader position, Value is 0..16383
type Input struct {
	Kind  InputKind
	Delta int
	Value int
}

// Pressed reports whether the input is a press edge.
func (in Input) Pressed() bool { return in.Kind == Press }
