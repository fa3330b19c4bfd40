package host

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	cmds []Command
	err  error
}

func (r *recorder) Send(cmd Command) error {
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func TestModel_ApplyAndObserve(t *testing.T) {
	m := NewModel(nil, nil)

	var seen []string
	m.Observe("mixer.", func(path string, _ any) { seen = append(seen, path) })

	assert.True(t, m.Apply(Observation{Type: ObserveValue, Path: "mixer.0.volume", Value: 0.5}))
	assert.False(t, m.Apply(Observation{Type: ObserveValue, Path: "mixer.0.volume", Value: 0.5}))
	assert.True(t, m.Apply(Observation{Type: ObserveValue, Path: "transport.playing", Value: true}))

	assert.Equal(t, []string{"mixer.0.volume"}, seen)
	assert.InDelta(t, 0.5, m.Float("mixer.0.volume"), 1e-9)
	assert.True(t, m.Bool("transport.playing"))
}

func TestModel_IntValuesNormalizeToFloat(t *testing.T) {
	m := NewModel(nil, nil)
	m.Apply(Observation{Type: ObserveValue, Path: "mixer.0.pan", Value: 1})
	assert.InDelta(t, 1.0, m.Float("mixer.0.pan"), 1e-9)
}

func TestModel_Exists(t *testing.T) {
	m := NewModel(nil, nil)
	assert.False(t, m.Exists("mixer.3"))
	m.Apply(Observation{Type: ObserveValue, Path: "mixer.3.exists", Value: true})
	assert.True(t, m.Exists("mixer.3"))
}

func TestModel_UnknownObservationIgnored(t *testing.T) {
	m := NewModel(nil, nil)
	assert.False(t, m.Apply(Observation{Type: "bogus", Path: "x"}))
	assert.Empty(t, m.Paths())
}

func TestModel_SetAndToggleAreOptimistic(t *testing.T) {
	rec := &recorder{}
	m := NewModel(rec, nil)

	require.NoError(t, m.Set("mixer.1.volume", 0.25))
	assert.InDelta(t, 0.25, m.Float("mixer.1.volume"), 1e-9)

	require.NoError(t, m.Toggle("transport.metronome"))
	assert.True(t, m.Bool("transport.metronome"))

	require.Len(t, rec.cmds, 2)
	assert.Equal(t, Command{Op: OpSet, Path: "mixer.1.volume", Value: 0.25}, rec.cmds[0])
	assert.Equal(t, Command{Op: OpToggle, Path: "transport.metronome"}, rec.cmds[1])
}

func TestModel_SendErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	m := NewModel(&recorder{err: boom}, nil)
	err := m.Trigger("undo")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "trigger(undo)")
}

func TestBank_ScrollClamps(t *testing.T) {
	rec := &recorder{}
	m := NewModel(rec, nil)
	m.Apply(Observation{Type: ObserveBank, Bank: "mixer", Position: 0, Size: 8, Total: 20})

	b := m.Bank("mixer")
	assert.False(t, b.CanScrollBackward())
	assert.True(t, b.CanScrollForward())

	require.NoError(t, b.ScrollForward())
	assert.Equal(t, 8, b.Position())
	require.NoError(t, b.ScrollForward())
	assert.Equal(t, 12, b.Position(), "last full page")
	assert.False(t, b.CanScrollForward())

	require.NoError(t, b.ScrollForward())
	assert.Len(t, rec.cmds, 2, "clamped scroll sends nothing")

	require.NoError(t, b.ScrollBy(-100))
	assert.Equal(t, 0, b.Position())
	assert.Equal(t, Command{Op: OpScroll, Path: "mixer", Delta: -12}, rec.cmds[2])
}

func TestBank_ObserversSeeHostUpdates(t *testing.T) {
	m := NewModel(nil, nil)
	b := m.Bank("mixer")
	calls := 0
	b.Observe(func(*Bank) { calls++ })

	assert.True(t, m.Apply(Observation{Type: ObserveBank, Bank: "mixer", Position: 8, Size: 8, Total: 16}))
	assert.False(t, m.Apply(Observation{Type: ObserveBank, Bank: "mixer", Position: 8, Size: 8, Total: 16}))
	assert.Equal(t, 1, calls)
}
