package packet

import "fmt"

// CIN is the Code Index Number held in the low nibble of a packet's first byte.
type CIN uint8

// Code Index Numbers (USB Device Class Definition for MIDI Devices 1.0, table 4-1).
const (
	CINMisc            CIN = 0x0 // Reserved for future extension.
	CINCableEvent      CIN = 0x1 // Reserved for future expansion.
	CINSysCommon2      CIN = 0x2 // Two-byte system common message.
	CINSysCommon3      CIN = 0x3 // Three-byte system common message.
	CINSysexStart      CIN = 0x4 // Sysex starts or continues.
	CINSysexEnd1       CIN = 0x5 // Single-byte system common, or sysex ends with one byte.
	CINSysexEnd2       CIN = 0x6 // Sysex ends with two bytes.
	CINSysexEnd3       CIN = 0x7 // Sysex ends with three bytes.
	CINNoteOff         CIN = 0x8
	CINNoteOn          CIN = 0x9
	CINPolyPressure    CIN = 0xA
	CINControlChange   CIN = 0xB
	CINProgramChange   CIN = 0xC
	CINChannelPressure CIN = 0xD
	CINPitchBend       CIN = 0xE
	CINSingleByte      CIN = 0xF
)

// cinLength maps every CIN to the number of meaningful MIDI bytes it carries.
var cinLength = [16]int{
	CINMisc:            0,
	CINCableEvent:      0,
	CINSysCommon2:      2,
	CINSysCommon3:      3,
	CINSysexStart:      3,
	CINSysexEnd1:       1,
	CINSysexEnd2:       2,
	CINSysexEnd3:       3,
	CINNoteOff:         3,
	CINNoteOn:          3,
	CINPolyPressure:    3,
	CINControlChange:   3,
	CINProgramChange:   2,
	CINChannelPressure: 2,
	CINPitchBend:       3,
	CINSingleByte:      1,
}

// Len returns the number of meaningful MIDI bytes for the CIN.
func (c CIN) Len() int {
	return cinLength[c&0x0F]
}

// Reserved reports whether packets with this CIN must be discarded.
func (c CIN) Reserved() bool {
	return c.Len() == 0
}

// IsSysex reports whether the CIN belongs to a sysex stream.
func (c CIN) IsSysex() bool {
	return c == CINSysexStart || c.IsSysexEnd()
}

// IsSysexEnd reports whether the CIN can terminate a sysex stream.
// CINSysexEnd1 is shared with single-byte system common messages, so the
// caller must still check for the 0xF7 marker.
func (c CIN) IsSysexEnd() bool {
	return c == CINSysexEnd1 || c == CINSysexEnd2 || c == CINSysexEnd3
}

// String returns a short name for logging.
func (c CIN) String() string {
	switch c {
	case CINMisc:
		return "misc"
	case CINCableEvent:
		return "cable-event"
	case CINSysCommon2:
		return "syscom-2"
	case CINSysCommon3:
		return "syscom-3"
	case CINSysexStart:
		return "sysex-start"
	case CINSysexEnd1:
		return "sysex-end-1"
	case CINSysexEnd2:
		return "sysex-end-2"
	case CINSysexEnd3:
		return "sysex-end-3"
	case CINNoteOff:
		return "note-off"
	case CINNoteOn:
		return "note-on"
	case CINPolyPressure:
		return "poly-pressure"
	case CINControlChange:
		return "control-change"
	case CINProgramChange:
		return "program-change"
	case CINChannelPressure:
		return "channel-pressure"
	case CINPitchBend:
		return "pitch-bend"
	case CINSingleByte:
		return "single-byte"
	default:
		return fmt.Sprintf("cin(%#x)", uint8(c))
	}
}
