// Package host is the bridge's view of the host application: a flat map of
// observed values keyed by path, the scrollable banks, and the commander used
// to send requests back.
//
// Paths are dotted names chosen by the host-side script, for example
// "transport.playing", "mixer.3.volume" or "device.plugin.param.5". Values
// are bools, normalized floats (0..1) or strings. Existence of an optional
// element is reported as a bool at "<path>.exists".
//
// A Model is owned by the daemon loop. Observations arrive as loop events and
// are applied with Apply; nothing here takes locks.
package host

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Observer is notified after a value at path changed.
type Observer func(path string, value any)

// Model holds host state.
type Model struct {
	logger *slog.Logger
	cmd    Commander

	values    map[string]any
	banks     map[string]*Bank
	observers []prefixObserver
}

type prefixObserver struct {
	prefix string
	fn     Observer
}

// NewModel creates an empty model sending commands through cmd. A nil cmd
// drops commands.
func NewModel(cmd Commander, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	if cmd == nil {
		cmd = CommanderFunc(func(Command) error { return nil })
	}
	return &Model{
		logger: logger,
		cmd:    cmd,
		values: make(map[string]any),
		banks:  make(map[string]*Bank),
	}
}

// Observe registers fn for every path starting with prefix. An empty prefix
// observes everything.
func (m *Model) Observe(prefix string, fn Observer) {
	if fn != nil {
		m.observers = append(m.observers, prefixObserver{prefix: prefix, fn: fn})
	}
}

// Apply applies one observation from the host. It reports whether the model
// changed.
func (m *Model) Apply(o Observation) bool {
	switch o.Type {
	case ObserveValue:
		if o.Path == "" {
			return false
		}
		return m.store(o.Path, normalize(o.Value))
	case ObserveBank:
		b := m.Bank(o.Bank)
		return b.update(o.Position, o.Size, o.Total)
	default:
		m.logger.Debug("ignoring unknown observation", "type", o.Type)
		return false
	}
}

// normalize maps numbers to float64. Anything that is not a bool, number or
// string is stored as its printed form so values stay comparable.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, bool, float64, string:
		return v
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return fmt.Sprint(v)
	}
}

func (m *Model) store(path string, v any) bool {
	if cur, ok := m.values[path]; ok && cur == v {
		return false
	}
	if v == nil {
		delete(m.values, path)
	} else {
		m.values[path] = v
	}
	for _, o := range m.observers {
		if strings.HasPrefix(path, o.prefix) {
			o.fn(path, v)
		}
	}
	return true
}

// Value returns the raw value at path.
func (m *Model) Value(path string) (any, bool) {
	v, ok := m.values[path]
	return v, ok
}

// Bool returns the value at path as a bool (false if unset or another type).
func (m *Model) Bool(path string) bool {
	b, _ := m.values[path].(bool)
	return b
}

// Float returns the value at path as a float64 (0 if unset or another type).
func (m *Model) Float(path string) float64 {
	f, _ := m.values[path].(float64)
	return f
}

// String returns the value at path as a string ("" if unset).
func (m *Model) String(path string) string {
	switch v := m.values[path].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Exists reports whether the host said the element at path exists.
func (m *Model) Exists(path string) bool {
	return m.Bool(path + ".exists")
}

// Paths returns every known path in sorted order.
func (m *Model) Paths() []string {
	out := make([]string, 0, len(m.values))
	for p := range m.values {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Set stores v locally and asks the host to set it.
func (m *Model) Set(path string, v any) error {
	v = normalize(v)
	m.store(path, v)
	return m.send(Command{Op: OpSet, Path: path, Value: v})
}

// Toggle flips a bool locally and asks the host to toggle it.
func (m *Model) Toggle(path string) error {
	m.store(path, !m.Bool(path))
	return m.send(Command{Op: OpToggle, Path: path})
}

// Reset asks the host to restore the default of a parameter.
func (m *Model) Reset(path string) error {
	return m.send(Command{Op: OpReset, Path: path})
}

// Trigger fires a host action.
func (m *Model) Trigger(action string) error {
	return m.send(Command{Op: OpTrigger, Path: action})
}

// Launch launches a host slot or marker, optionally quantized.
func (m *Model) Launch(path string, quantized bool) error {
	return m.send(Command{Op: OpLaunch, Path: path, Value: quantized})
}

func (m *Model) send(cmd Command) error {
	if err := m.cmd.Send(cmd); err != nil {
		return fmt.Errorf("host %s: %w", cmd, err)
	}
	return nil
}

// Bank returns the named bank, creating an empty one on first use.
func (m *Model) Bank(name string) *Bank {
	if b, ok := m.banks[name]; ok {
		return b
	}
	b := &Bank{name: name, model: m}
	m.banks[name] = b
	return b
}
