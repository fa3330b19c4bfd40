package surface

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TimecodeMode selects what the ten digit display shows.
type TimecodeMode int

const (
	TimecodeBeats TimecodeMode = iota
	TimecodeSMPTE
)

func (m TimecodeMode) String() string {
	if m == TimecodeSMPTE {
		return "smpte"
	}
	return "beats"
}

// timecodeDigits is the width of the timecode display.
const timecodeDigits = 10

// Timecode is the rendered display content, leftmost digit first.
type Timecode struct {
	Text string
	Dots [timecodeDigits]bool
}

// FormatBeats renders a position in quarter notes as bars, beats, sixteenths
// and ticks: "  1 1 1  0". num/den is the time signature.
func FormatBeats(quarters float64, num, den int) Timecode {
	if num <= 0 {
		num = 4
	}
	if den <= 0 {
		den = 4
	}
	if quarters < 0 || math.IsNaN(quarters) {
		quarters = 0
	}
	beats := quarters * float64(den) / 4
	whole := math.Floor(beats)
	frac := beats - whole

	bar := int(whole)/num + 1
	beat := int(whole)%num + 1
	sixteenths := frac * 4
	sub := int(math.Floor(sixteenths)) + 1
	ticks := int((sixteenths - math.Floor(sixteenths)) * 100)

	tc := Timecode{Text: fmt.Sprintf("%3d%2d%2d%3d", bar%1000, beat%100, sub, ticks)}
	tc.Dots[2], tc.Dots[4], tc.Dots[6] = true, true, true
	return tc
}

// FormatSMPTE renders seconds as hours, minutes, seconds and milliseconds.
func FormatSMPTE(seconds float64) Timecode {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(seconds*1000 + 0.5)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60

	tc := Timecode{Text: fmt.Sprintf("%3d%02d%02d%03d", h%1000, m, s, ms%1000)}
	tc.Dots[2], tc.Dots[4], tc.Dots[6] = true, true, true
	return tc
}

// parseTimeSignature reads "7/8" style signatures; anything else is 4/4.
func parseTimeSignature(s string) (int, int) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 4, 4
	}
	n, err1 := strconv.Atoi(num)
	d, err2 := strconv.Atoi(den)
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return 4, 4
	}
	return n, d
}
