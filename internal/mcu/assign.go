package mcu

import (
	"fmt"
	"strings"
)

// Note is a note number used by the surface for a button and its LED.
type Note uint8

// Channel strip buttons; add the strip index (0-7).
const (
	RecArm      Note = 0
	Solo        Note = 8
	Mute        Note = 16
	Select      Note = 24
	VPotPress   Note = 32
	FaderTouch0 Note = 104
	MasterTouch Note = 112
)

// Global buttons of the main section.
const (
	VTrack      Note = 40
	VSend       Note = 41
	VPan        Note = 42
	VPlugin     Note = 43
	VEQ         Note = 44
	VInstrument Note = 45

	BankLeft   Note = 46
	BankRight  Note = 47
	TrackLeft  Note = 48
	TrackRight Note = 49

	Flip         Note = 50
	GlobalView   Note = 51
	DisplayName  Note = 52
	DisplaySMPTE Note = 53

	F1 Note = 54
	F2 Note = 55
	F3 Note = 56
	F4 Note = 57
	F5 Note = 58
	F6 Note = 59
	F7 Note = 60
	F8 Note = 61

	ShiftKey   Note = 70
	OptionKey  Note = 71
	ControlKey Note = 72
	AltKey     Note = 73

	AutoReadOff Note = 74
	AutoWrite   Note = 75
	AutoTrim    Note = 76
	AutoTouch   Note = 77
	AutoLatch   Note = 78
	Group       Note = 79

	Save   Note = 80
	Undo   Note = 81
	Cancel Note = 82
	Enter  Note = 83

	Marker  Note = 84
	Nudge   Note = 85
	Cycle   Note = 86
	Drop    Note = 87
	Replace Note = 88
	Click   Note = 89
	SoloKey Note = 90

	Rewind  Note = 91
	FFwd    Note = 92
	Stop    Note = 93
	Play    Note = 94
	Record  Note = 95
	Up      Note = 96
	Down    Note = 97
	Left    Note = 98
	Right   Note = 99
	Zoom    Note = 100
	Scrub   Note = 101
	UserA   Note = 102
	UserB   Note = 103

	SMPTELed Note = 113
	BeatsLed Note = 114
	RudeSolo Note = 115
)

// NumNotes is the size of the LED note space.
const NumNotes = 128

// StripCount is the number of channel strips per section.
const StripCount = 8

// Controller numbers.
const (
	CCVPotBase     = 0x10 // 16-23, relative
	CCRingBase     = 0x30 // 48-55, ring LEDs
	CCJog          = 0x3C // 60, relative
	CCTimecodeBase = 0x40 // 64-73, rightmost digit first
	CCAssignBase   = 0x4A // 74-75, right digit first
)

// Sysex device ids.
const (
	DeviceMain     byte = 0x14
	DeviceExtender byte = 0x15
)

var noteNames = map[Note]string{
	VTrack: "V_TRACK", VSend: "V_SEND", VPan: "V_PAN", VPlugin: "V_PLUGIN", VEQ: "V_EQ", VInstrument: "V_INSTRUMENT",
	BankLeft: "BANK_LEFT", BankRight: "BANK_RIGHT", TrackLeft: "TRACK_LEFT", TrackRight: "TRACK_RIGHT",
	Flip: "FLIP", GlobalView: "GLOBAL_VIEW", DisplayName: "DISPLAY_NAME", DisplaySMPTE: "DISPLAY_SMPTE",
	ShiftKey: "SHIFT", OptionKey: "OPTION", ControlKey: "CONTROL", AltKey: "ALT",
	AutoReadOff: "READ_OFF", AutoWrite: "WRITE", AutoTrim: "TRIM", AutoTouch: "TOUCH", AutoLatch: "LATCH", Group: "GROUP",
	Save: "SAVE", Undo: "UNDO", Cancel: "CANCEL", Enter: "ENTER",
	Marker: "MARKER", Nudge: "NUDGE", Cycle: "CYCLE", Drop: "DROP", Replace: "REPLACE", Click: "CLICK", SoloKey: "SOLO",
	Rewind: "REWIND", FFwd: "FFWD", Stop: "STOP", Play: "PLAY", Record: "RECORD",
	Up: "UP", Down: "DOWN", Left: "LEFT", Right: "RIGHT", Zoom: "ZOOM", Scrub: "SCRUB",
	UserA: "USER_A", UserB: "USER_B", MasterTouch: "MASTER_TOUCH",
	SMPTELed: "SMPTE", BeatsLed: "BEATS", RudeSolo: "RUDE_SOLO",
}

func (n Note) String() string {
	if name, ok := noteNames[n]; ok {
		return name
	}
	switch {
	case n < Solo:
		return fmt.Sprintf("REC_%d", n-RecArm+1)
	case n < Mute:
		return fmt.Sprintf("SOLO_%d", n-Solo+1)
	case n < Select:
		return fmt.Sprintf("MUTE_%d", n-Mute+1)
	case n < VPotPress:
		return fmt.Sprintf("SELECT_%d", n-Select+1)
	case n < VTrack:
		return fmt.Sprintf("VPOT_%d", n-VPotPress+1)
	case n >= F1 && n <= F8:
		return fmt.Sprintf("F%d", n-F1+1)
	case n >= FaderTouch0 && n < MasterTouch:
		return fmt.Sprintf("TOUCH_%d", n-FaderTouch0+1)
	default:
		return fmt.Sprintf("NOTE_%d", uint8(n))
	}
}

// Strip returns the note for strip i of a per-strip button row.
func (n Note) Strip(i int) Note { return n + Note(i) }

// ParseNote resolves a button name as printed by Note.String, e.g. "USER_A"
// or "F3". Names are case-insensitive.
func ParseNote(name string) (Note, error) {
	want := strings.ToUpper(strings.TrimSpace(name))
	for n, s := range noteNames {
		if s == want {
			return n, nil
		}
	}
	var i int
	if _, err := fmt.Sscanf(want, "F%d", &i); err == nil && i >= 1 && i <= 8 && want == fmt.Sprintf("F%d", i) {
		return F1 + Note(i-1), nil
	}
	return 0, fmt.Errorf("unknown button %q", name)
}
