package layer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCtx struct {
	shift bool
}

type harness struct {
	reg    *Registry[testCtx]
	ctx    testCtx
	pushed []string
}

func newHarness() *harness {
	h := &harness{}
	h.reg = NewRegistry(func() testCtx { return h.ctx })
	return h
}

func (h *harness) layer(t *testing.T, name string) *Layer[testCtx] {
	t.Helper()
	l, err := h.reg.NewLayer(name)
	require.NoError(t, err)
	return l
}

var (
	playButton = Control{Kind: Button, Index: 94}
	playLight  = Control{Kind: Light, Index: 94}
)

func TestRegistry_LastActivatedWins(t *testing.T) {
	h := newHarness()
	base := h.layer(t, "base")
	shift := h.layer(t, "shift")

	var hits []string
	require.NoError(t, base.BindInput(playButton, func(testCtx, Input) { hits = append(hits, "base") }))
	require.NoError(t, shift.BindInput(playButton, func(testCtx, Input) { hits = append(hits, "shift") }))

	base.Activate()
	shift.Activate()
	assert.True(t, h.reg.Dispatch(playButton, Input{Kind: Press}))

	shift.Deactivate()
	assert.True(t, h.reg.Dispatch(playButton, Input{Kind: Press}))

	assert.Equal(t, []string{"shift", "base"}, hits)

	b, ok := h.reg.Resolve(playButton)
	require.True(t, ok)
	assert.Equal(t, "base", b.Layer())
}

func TestRegistry_ReactivationMovesToTop(t *testing.T) {
	h := newHarness()
	a := h.layer(t, "a")
	b := h.layer(t, "b")

	var hits []string
	require.NoError(t, a.BindInput(playButton, func(testCtx, Input) { hits = append(hits, "a") }))
	require.NoError(t, b.BindInput(playButton, func(testCtx, Input) { hits = append(hits, "b") }))

	a.Activate()
	b.Activate()
	a.Activate()
	h.reg.Dispatch(playButton, Input{Kind: Press})

	assert.Equal(t, []string{"a"}, hits)
	assert.Equal(t, []string{"b", "a"}, h.reg.Active())
}

func TestRegistry_InactiveLayerDoesNotResolve(t *testing.T) {
	h := newHarness()
	l := h.layer(t, "menu")
	require.NoError(t, l.BindInput(playButton, func(testCtx, Input) { t.Fatal("inactive layer fired") }))

	assert.False(t, h.reg.Dispatch(playButton, Input{Kind: Press}))
	_, ok := h.reg.Resolve(playButton)
	assert.False(t, ok)
}

func TestLayer_DuplicateBindingIsError(t *testing.T) {
	h := newHarness()
	l := h.layer(t, "base")

	require.NoError(t, l.BindInput(playButton, func(testCtx, Input) {}))
	err := l.BindInput(playButton, func(testCtx, Input) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateBinding))

	// Same control in another layer is fine.
	other := h.layer(t, "other")
	assert.NoError(t, other.BindInput(playButton, func(testCtx, Input) {}))
}

func TestRegistry_DuplicateLayerName(t *testing.T) {
	h := newHarness()
	h.layer(t, "base")
	_, err := h.reg.NewLayer("base")
	assert.ErrorIs(t, err, ErrDuplicateLayer)

	_, err = h.reg.Layer("missing")
	assert.ErrorIs(t, err, ErrUnknownLayer)
}

func TestRegistry_ActivationPushesOutputs(t *testing.T) {
	h := newHarness()
	base := h.layer(t, "base")
	shift := h.layer(t, "shift")

	require.NoError(t, base.BindOutput(playLight, func(testCtx) { h.pushed = append(h.pushed, "base") }))
	require.NoError(t, shift.BindOutput(playLight, func(testCtx) { h.pushed = append(h.pushed, "shift") }))

	base.Activate()
	assert.Equal(t, []string{"base"}, h.pushed)

	shift.Activate()
	assert.Equal(t, []string{"base", "shift"}, h.pushed)

	// Deactivating the override re-pushes the base source.
	shift.Deactivate()
	assert.Equal(t, []string{"base", "shift", "base"}, h.pushed)
}

func TestRegistry_RefreshPushesOnlyWinners(t *testing.T) {
	h := newHarness()
	base := h.layer(t, "base")
	top := h.layer(t, "top")
	other := Control{Kind: Light, Index: 95}

	require.NoError(t, base.BindOutput(playLight, func(testCtx) { h.pushed = append(h.pushed, "base-play") }))
	require.NoError(t, base.BindOutput(other, func(testCtx) { h.pushed = append(h.pushed, "base-other") }))
	require.NoError(t, top.BindOutput(playLight, func(testCtx) { h.pushed = append(h.pushed, "top-play") }))
	base.Activate()
	top.Activate()
	h.pushed = nil

	h.reg.Refresh()
	assert.ElementsMatch(t, []string{"top-play", "base-other"}, h.pushed)
}

func TestRegistry_HandlersSeeDispatchTimeContext(t *testing.T) {
	h := newHarness()
	l := h.layer(t, "base")
	var seen []bool
	require.NoError(t, l.BindInput(playButton, func(ctx testCtx, _ Input) { seen = append(seen, ctx.shift) }))
	l.Activate()

	h.reg.Dispatch(playButton, Input{Kind: Press})
	h.ctx.shift = true
	h.reg.Dispatch(playButton, Input{Kind: Press})

	assert.Equal(t, []bool{false, true}, seen)
}

func TestRegistry_ObserversSeeActiveNames(t *testing.T) {
	h := newHarness()
	a := h.layer(t, "a")
	b := h.layer(t, "b")

	var got [][]string
	h.reg.Observe(func(active []string) { got = append(got, active) })

	a.Activate()
	b.SetActive(true)
	a.SetActive(false)

	assert.Equal(t, [][]string{{"a"}, {"a", "b"}, {"b"}}, got)
}

func TestLayer_LateOutputBindingOnActiveLayer(t *testing.T) {
	h := newHarness()
	l := h.layer(t, "base")
	l.Activate()

	require.NoError(t, l.BindOutput(playLight, func(testCtx) { h.pushed = append(h.pushed, "late") }))
	assert.Equal(t, []string{"late"}, h.pushed)
	assert.Equal(t, 1, l.Len())
}

func TestControl_String(t *testing.T) {
	assert.Equal(t, "1/encoder/3", Control{Section: 1, Kind: Encoder, Index: 3}.String())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
