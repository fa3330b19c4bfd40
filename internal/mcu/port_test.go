package mcu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// namedIn and namedOut only answer String; Find never opens ports.
type namedIn struct {
	drivers.In
	name string
}

func (p namedIn) String() string { return p.name }

type namedOut struct {
	drivers.Out
	name string
}

func (p namedOut) String() string { return p.name }

func testPortList() PortList {
	return PortList{
		Ins:  []drivers.In{namedIn{name: "Midi Through Port-0"}, namedIn{name: "X-Touch INT"}, namedIn{name: "X-Touch-Ext"}},
		Outs: []drivers.Out{namedOut{name: "Midi Through Port-0"}, namedOut{name: "X-Touch INT"}, namedOut{name: "X-Touch-Ext"}},
	}
}

func TestPortList_Find(t *testing.T) {
	pl := testPortList()

	in, out, err := pl.Find("x-touch int", "X-TOUCH INT")
	require.NoError(t, err)
	assert.Equal(t, "X-Touch INT", in.String())
	assert.Equal(t, "X-Touch INT", out.String())

	in, _, err = pl.Find("ext", "ext")
	require.NoError(t, err)
	assert.Equal(t, "X-Touch-Ext", in.String())
}

func TestPortList_FindMissing(t *testing.T) {
	pl := testPortList()

	tests := []struct {
		name    string
		in, out string
	}{
		{"no input", "MCU Pro", "X-Touch INT"},
		{"no output", "X-Touch INT", "MCU Pro"},
		{"empty pattern", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := pl.Find(tt.in, tt.out)
			assert.ErrorIs(t, err, ErrPortNotFound)
		})
	}

	_, _, err := PortList{}.Find("X-Touch", "X-Touch")
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestPortList_Names(t *testing.T) {
	ins, outs := testPortList().Names()
	assert.Equal(t, []string{"Midi Through Port-0", "X-Touch INT", "X-Touch-Ext"}, ins)
	assert.Len(t, outs, 3)
}
