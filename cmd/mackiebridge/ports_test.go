package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortMatches(t *testing.T) {
	patterns := []string{"x-touch", "", "MCU"}
	assert.True(t, portMatches("X-Touch 0", patterns))
	assert.True(t, portMatches("Mackie MCU Pro Port 1", patterns))
	assert.False(t, portMatches("IAC Driver Bus 1", patterns))
	assert.False(t, portMatches("anything", []string{""}))
}

func TestConfiguredPortNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Surface.Extenders = []PortConfig{{In: "XT in", Out: "XT out"}}
	assert.Equal(t, []string{"MCU", "MCU", "XT in", "XT out"}, configuredPortNames(cfg))
}

func TestRenderPorts(t *testing.T) {
	var buf bytes.Buffer
	renderPorts(&buf, []string{"MCU Pro In", "Keyboard"}, nil, []string{"MCU"})
	out := buf.String()

	assert.Contains(t, out, "MIDI ports")
	assert.Contains(t, out, "inputs")
	assert.Contains(t, out, "MCU Pro In *")
	assert.Contains(t, out, "Keyboard")
	assert.NotContains(t, out, "Keyboard *")

	outputs := out[strings.Index(out, "outputs"):]
	assert.Contains(t, outputs, "(none)")
}
