package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatStatusFrame(t *testing.T) {
	line := formatStatusFrame([]byte(`{"type":"mode_changed","ts":"2024-01-02T03:04:05Z","data":{ "mode": "eq", "page": 1 }}`))
	assert.Contains(t, line, "mode_changed")
	assert.Contains(t, line, `{"mode":"eq","page":1}`)

	line = formatStatusFrame([]byte(`{"type":"resync"}`))
	assert.Contains(t, line, "resync")

	assert.Equal(t, "not json", formatStatusFrame([]byte("not json")))
	assert.Equal(t, `{"x":1}`, formatStatusFrame([]byte(`{"x":1}`)))
}
