// Package layer implements the binding stack that maps physical controls to
// behavior.
//
// A Layer is a named set of bindings. Any number of layers may be active at
// once; when several active layers bind the same control, the one activated
// most recently wins. Transient layers (shift, menu holds, flip) therefore
// override the persistent base layer without touching it, and deactivating
// them restores the previous resolution without re-registration.
//
// Bindings come in two flavors:
//   - input bindings receive decoded hardware events
//   - output bindings push model state to a light, ring, fader or display
//
// Handlers receive a context value of type C produced by the registry's
// context function at dispatch time (current modifiers, rotary mode, blink
// phase, ...), so they do not need to capture mutable state.
//
// The registry is owned by the surface controller and used only from the
// daemon loop goroutine.
package layer

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateBinding is returned when a control is bound twice in one layer.
	ErrDuplicateBinding = errors.New("control already bound in layer")

	// ErrDuplicateLayer is returned when a layer name is registered twice.
	ErrDuplicateLayer = errors.New("layer already exists")

	// ErrUnknownLayer is returned by name lookups for unregistered layers.
	ErrUnknownLayer = errors.New("unknown layer")
)

// InputHandler reacts to a hardware event.
type InputHandler[C any] func(ctx C, in Input)

// OutputFunc pushes current model state for one output control. It is
// expected to write through a mirror cache, so calling it repeatedly with
// unchanged state costs nothing on the wire.
type OutputFunc[C any] func(ctx C)

// Binding pairs a control with either an input handler or an output func.
type Binding[C any] struct {
	Control Control

	layer  *Layer[C]
	input  InputHandler[C]
	output OutputFunc[C]
}

// Layer returns the name of the owning layer.
func (b *Binding[C]) Layer() string { return b.layer.name }

// IsOutput reports whether this is an output binding.
func (b *Binding[C]) IsOutput() bool { return b.output != nil }

// Layer is a named, independently activatable set of bindings.
type Layer[C any] struct {
	name     string
	reg      *Registry[C]
	bindings map[Control]*Binding[C]
	order    []Control
	active   bool
}

func (l *Layer[C]) Name() string { return l.name }

// IsActive reports whether the layer currently takes part in resolution.
func (l *Layer[C]) IsActive() bool { return l.active }

// Activate is shorthand for Registry.Activate.
func (l *Layer[C]) Activate() { l.reg.Activate(l) }

// Deactivate is shorthand for Registry.Deactivate.
func (l *Layer[C]) Deactivate() { l.reg.Deactivate(l) }

// SetActive activates or deactivates the layer.
func (l *Layer[C]) SetActive(on bool) {
	if on {
		l.reg.Activate(l)
	} else {
		l.reg.Deactivate(l)
	}
}

// BindInput binds an input handler to c.
func (l *Layer[C]) BindInput(c Control, h InputHandler[C]) error {
	if h == nil {
		return fmt.Errorf("bind %s in layer %q: nil handler", c, l.name)
	}
	return l.add(&Binding[C]{Control: c, layer: l, input: h})
}

// BindOutput binds an output func to c.
func (l *Layer[C]) BindOutput(c Control, f OutputFunc[C]) error {
	if f == nil {
		return fmt.Errorf("bind %s in layer %q: nil output", c, l.name)
	}
	return l.add(&Binding[C]{Control: c, layer: l, output: f})
}

func (l *Layer[C]) add(b *Binding[C]) error {
	if _, exists := l.bindings[b.Control]; exists {
		return fmt.Errorf("%w: %s in layer %q", ErrDuplicateBinding, b.Control, l.name)
	}
	l.bindings[b.Control] = b
	l.order = append(l.order, b.Control)

	// Late binding on an active layer goes live right away.
	if l.active && b.output != nil && l.reg.winner(b.Control) == b {
		b.output(l.reg.context())
	}
	return nil
}

// Len returns the number of bindings in the layer.
func (l *Layer[C]) Len() int { return len(l.bindings) }
