package layer

import "fmt"

// Registry owns every layer and the activation order used for resolution.
type Registry[C any] struct {
	context func() C

	layers  map[string]*Layer[C]
	created []*Layer[C]

	// active holds active layers in activation order; the last one wins.
	active []*Layer[C]

	observers []func(active []string)
}

// NewRegistry creates an empty registry. context is called once per
// dispatch or refresh to build the value handed to handlers.
func NewRegistry[C any](context func() C) *Registry[C] {
	if context == nil {
		context = func() C { var zero C; return zero }
	}
	return &Registry[C]{
		context: context,
		layers:  make(map[string]*Layer[C]),
	}
}

// NewLayer registers a new, inactive layer.
func (r *Registry[C]) NewLayer(name string) (*Layer[C], error) {
	if _, exists := r.layers[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLayer, name)
	}
	l := &Layer[C]{
		name:     name,
		reg:      r,
		bindings: make(map[Control]*Binding[C]),
	}
	r.layers[name] = l
	r.created = append(r.created, l)
	return l, nil
}

// Layer looks up a layer by name.
func (r *Registry[C]) Layer(name string) (*Layer[C], error) {
	l, ok := r.layers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	return l, nil
}

// Observe registers fn to be called with the active layer names (bottom to
// top) whenever the active set changes.
func (r *Registry[C]) Observe(fn func(active []string)) {
	if fn != nil {
		r.observers = append(r.observers, fn)
	}
}

// Activate puts l on top of the stack (moving it there if already active)
// and pushes its output bindings.
func (r *Registry[C]) Activate(l *Layer[C]) {
	if l == nil || l.reg != r {
		return
	}
	if l.active && r.active[len(r.active)-1] == l {
		return
	}
	r.remove(l)
	l.active = true
	r.active = append(r.active, l)

	ctx := r.context()
	for _, c := range l.order {
		if b := l.bindings[c]; b.output != nil {
			b.output(ctx)
		}
	}
	r.notify()
}

// Deactivate removes l from resolution. Output controls it owned are pushed
// again from whichever layer resolves them now.
func (r *Registry[C]) Deactivate(l *Layer[C]) {
	if l == nil || l.reg != r || !l.active {
		return
	}
	r.remove(l)
	l.active = false

	ctx := r.context()
	for _, c := range l.order {
		if l.bindings[c].output == nil {
			continue
		}
		if b := r.winner(c); b != nil && b.output != nil {
			b.output(ctx)
		}
	}
	r.notify()
}

func (r *Registry[C]) remove(l *Layer[C]) {
	for i, a := range r.active {
		if a == l {
			r.active = append(r.active[:i], r.active[i+1:]...)
			return
		}
	}
}

// winner returns the live binding for c, or nil.
func (r *Registry[C]) winner(c Control) *Binding[C] {
	for i := len(r.active) - 1; i >= 0; i-- {
		if b, ok := r.active[i].bindings[c]; ok {
			return b
		}
	}
	return nil
}

// Resolve returns the live binding for c.
func (r *Registry[C]) Resolve(c Control) (*Binding[C], bool) {
	b := r.winner(c)
	return b, b != nil
}

// Dispatch routes in to the live input binding for c. It reports whether a
// handler ran.
func (r *Registry[C]) Dispatch(c Control, in Input) bool {
	b := r.winner(c)
	if b == nil || b.input == nil {
		return false
	}
	b.input(r.context(), in)
	return true
}

// Refresh re-evaluates every live output binding.
func (r *Registry[C]) Refresh() {
	if len(r.active) == 0 {
		return
	}
	ctx := r.context()
	seen := make(map[Control]struct{})
	for i := len(r.active) - 1; i >= 0; i-- {
		l := r.active[i]
		for _, c := range l.order {
			if _, done := seen[c]; done {
				continue
			}
			seen[c] = struct{}{}
			if b := l.bindings[c]; b.output != nil {
				b.output(ctx)
			}
		}
	}
}

// Active returns the names of active layers, bottom to top.
func (r *Registry[C]) Active() []string {
	names := make([]string, 0, len(r.active))
	for _, l := range r.active {
		names = append(names, l.name)
	}
	return names
}

// Layers returns every registered layer in creation order.
func (r *Registry[C]) Layers() []*Layer[C] {
	out := make([]*Layer[C], len(r.created))
	copy(out, r.created)
	return out
}

func (r *Registry[C]) notify() {
	if len(r.observers) == 0 {
		return
	}
	names := r.Active()
	for _, fn := range r.observers {
		fn(names)
	}
}
