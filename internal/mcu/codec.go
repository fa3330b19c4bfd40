package mcu

import (
	"bytes"
	"strings"

	"gitlab.com/gomidi/midi/v2"
)

// ============================================================================
// Wire codec
// ============================================================================
// Encoders for everything the bridge writes to a surface, and a decoder that
// turns raw gomidi messages into small typed events. Sysex payloads are
// handled without the F0/F7 framing, matching gomidi's SysEx helpers.
// ============================================================================

// LED values.
const (
	LEDOff   uint8 = 0
	LEDBlink uint8 = 1
	LEDOn    uint8 = 127
)

// reloadPrefix is sent by the surface after a firmware reset:
// f0 00 00 66 14 01 58 59 5a.
var reloadPrefix = []byte{0x00, 0x00, 0x66, 0x14, 0x01, 0x58, 0x59, 0x5a}

// IsDeviceReload reports whether a sysex payload (without F0) is the
// surface's reset notification.
func IsDeviceReload(data []byte) bool {
	return bytes.HasPrefix(data, reloadPrefix)
}

// LED sets a button LED.
func LED(n Note, value uint8) midi.Message {
	return midi.NoteOn(0, uint8(n), value)
}

// Fader positions a motor fader. pos is 0..16383; channel 8 is master.
func Fader(channel uint8, pos uint16) midi.Message {
	if pos > 16383 {
		pos = 16383
	}
	return midi.Pitchbend(channel, int16(int(pos)-8192))
}

// RingMode selects how a V-pot ring renders a value.
type RingMode uint8

const (
	RingDot    RingMode = 0
	RingBoost  RingMode = 1 // boost/cut, filled from center
	RingWrap   RingMode = 2 // filled from the left
	RingSpread RingMode = 3 // width around center
)

// RingValue builds the CC value for a ring: 11 LED positions plus the
// center LED. v is normalized 0..1; off turns all position LEDs dark.
func RingValue(mode RingMode, v float64, off, center bool) uint8 {
	var pos uint8
	if !off {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		pos = uint8(v*10+0.5) + 1
		if mode == RingSpread {
			pos = uint8(v*5+0.5) + 1
		}
	}
	out := uint8(mode)<<4 | pos
	if center {
		out |= 0x40
	}
	return out
}

// Ring sets the V-pot ring of strip i.
func Ring(strip int, value uint8) midi.Message {
	return midi.ControlChange(0, uint8(CCRingBase+strip), value&0x7f)
}

// SegmentCode converts a character to the seven-segment code used by the
// timecode and assignment displays.
func SegmentCode(c byte, dot bool) uint8 {
	var code uint8
	switch {
	case c >= 'a' && c <= 'z':
		code = c - 'a' + 1
	case c >= 'A' && c <= 'Z':
		code = c - 'A' + 1
	case c >= 0x20 && c < 0x40:
		code = c
	default:
		code = ' '
	}
	if dot {
		code |= 0x40
	}
	return code
}

// TimecodeDigit writes digit pos (0 is the rightmost) of the timecode display.
func TimecodeDigit(pos int, code uint8) midi.Message {
	return midi.ControlChange(0, uint8(CCTimecodeBase+pos), code)
}

// AssignmentDigit writes one of the two assignment characters (0 is right).
func AssignmentDigit(pos int, code uint8) midi.Message {
	return midi.ControlChange(0, uint8(CCAssignBase+pos), code)
}

// LCD dimensions.
const (
	LCDRowLen  = 56
	LCDCellLen = 7
)

// LCDText writes text at offset (0..111, second row starts at 56).
// Non-ASCII bytes are replaced by spaces.
func LCDText(device byte, offset int, text string) midi.Message {
	data := make([]byte, 0, 6+len(text))
	data = append(data, 0x00, 0x00, 0x66, device, 0x12, byte(offset&0x7f))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= 0x80 {
			c = ' '
		}
		data = append(data, c)
	}
	return midi.SysEx(data)
}

// LCDCell renders one 7 character strip cell, padded or truncated.
func LCDCell(device byte, row, strip int, text string) midi.Message {
	return LCDText(device, row*LCDRowLen+strip*LCDCellLen, PadCell(text))
}

// PadCell fits text into exactly one LCD cell.
func PadCell(text string) string {
	if len(text) > LCDCellLen {
		return text[:LCDCellLen]
	}
	return text + strings.Repeat(" ", LCDCellLen-len(text))
}

// Meter mode bits for ChannelMeterMode.
const (
	MeterSignalLED uint8 = 1 << 0
	MeterPeakHold  uint8 = 1 << 1
	MeterLCD       uint8 = 1 << 2
)

// ChannelMeterMode configures the meter of one strip.
func ChannelMeterMode(device byte, strip int, mode uint8) midi.Message {
	return midi.SysEx([]byte{0x00, 0x00, 0x66, device, 0x20, byte(strip), mode})
}

// GlobalLCDMeterMode switches LCD meters between horizontal and vertical.
func GlobalLCDMeterMode(device byte, vertical bool) midi.Message {
	var v byte
	if vertical {
		v = 1
	}
	return midi.SysEx([]byte{0x00, 0x00, 0x66, device, 0x21, v})
}

// EventKind classifies a decoded inbound message.
type EventKind int

const (
	EventNote EventKind = iota
	EventCC
	EventPitchBend
	EventSysEx
)

// Event is a decoded inbound message.
type Event struct {
	Kind    EventKind
	Channel uint8
	// Number is the note or controller number.
	Number uint8
	// Value is the velocity (0 for note off), CC value or 14 bit pitch bend.
	Value int
	// Data is the sysex payload without framing.
	Data []byte
}

// Decode converts a gomidi message to an Event. Unsupported messages
// return false.
func Decode(msg midi.Message) (Event, bool) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return Event{Kind: EventNote, Channel: ch, Number: key, Value: int(vel)}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return Event{Kind: EventNote, Channel: ch, Number: key, Value: 0}, true
	}

	var cc, val uint8
	if msg.GetControlChange(&ch, &cc, &val) {
		return Event{Kind: EventCC, Channel: ch, Number: cc, Value: int(val)}, true
	}

	var rel int16
	var abs uint16
	if msg.GetPitchBend(&ch, &rel, &abs) {
		return Event{Kind: EventPitchBend, Channel: ch, Value: int(abs)}, true
	}

	var data []byte
	if msg.GetSysEx(&data) {
		return Event{Kind: EventSysEx, Data: data}, true
	}
	return Event{}, false
}

// RelativeSignedBit decodes an encoder/jog CC value: bit 6 is the sign,
// bits 0-5 the magnitude.
func RelativeSignedBit(v int) int {
	mag := v & 0x3f
	if v&0x40 != 0 {
		return -mag
	}
	return mag
}
