// Package packet packs and unpacks 4-byte USB-MIDI event packets.
//
// Byte 0 of a packet carries the cable number in its high nibble and the
// Code Index Number in its low nibble. Bytes 1-3 carry up to three MIDI
// bytes, zero padded. The number of meaningful bytes is a function of the
// CIN only; payload content is never inspected to find it.
package packet

import (
	"fmt"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// Size is the length of a USB-MIDI event packet.
const Size = 4

// MIDI status bytes the codec needs to recognize.
const (
	SysexStart    byte = 0xF0
	SysexEnd      byte = 0xF7
	TimeCode      byte = 0xF1
	SongPosition  byte = 0xF2
	SongSelect    byte = 0xF3
	TuneRequest   byte = 0xF6
	statusBit     byte = 0x80
	realtimeFirst byte = 0xF8
)

// Packet is one USB-MIDI event packet as it appears on the wire.
type Packet [Size]byte

// Cable returns the virtual cable number.
func (p Packet) Cable() uint8 {
	return p[0] >> 4
}

// CIN returns the Code Index Number.
func (p Packet) CIN() CIN {
	return CIN(p[0] & 0x0F)
}

// Len returns the number of meaningful MIDI bytes.
func (p Packet) Len() int {
	return p.CIN().Len()
}

// Bytes returns the meaningful MIDI bytes. The slice aliases p.
func (p *Packet) Bytes() []byte {
	return p[1 : 1+p.Len()]
}

// IsSysex reports whether the packet belongs to a sysex stream. It separates
// sysex-end packets from the single-byte system common messages that share
// CIN 0x5.
func (p Packet) IsSysex() bool {
	switch p.CIN() {
	case CINSysexStart, CINSysexEnd2, CINSysexEnd3:
		return true
	case CINSysexEnd1:
		return p[1] == SysexEnd
	default:
		return false
	}
}

// String formats the packet the way it is traced in logs.
func (p Packet) String() string {
	return fmt.Sprintf("%02x %02x %02x %02x | cable %x | CIN %x | %d MIDI bytes",
		p[0], p[1], p[2], p[3], p.Cable(), uint8(p.CIN()), p.Len())
}

// Decode reads a packet from the first Size bytes of frame.
// A reserved CIN is not an error; the returned packet has Len() == 0.
func Decode(frame []byte) (Packet, error) {
	var p Packet
	if len(frame) < Size {
		return p, fmt.Errorf("%w: got %d bytes", contracts.ErrShortFrame, len(frame))
	}
	copy(p[:], frame[:Size])
	return p, nil
}

// ForEach decodes every whole packet in a bulk buffer. A trailing partial
// packet is reported as ErrShortFrame after the whole packets were visited.
func ForEach(buf []byte, fn func(Packet)) error {
	n := len(buf) / Size * Size
	for i := 0; i < n; i += Size {
		var p Packet
		copy(p[:], buf[i:i+Size])
		fn(p)
	}
	if rem := len(buf) - n; rem != 0 {
		return fmt.Errorf("%w: %d trailing bytes", contracts.ErrShortFrame, rem)
	}
	return nil
}

// Encode packs up to three MIDI bytes on the given cable.
//
// The CIN is chosen from the class of the first byte and the message length:
// a group ending in 0xF7 is a sysex end (CIN 0x5-0x7 by length), a 3-byte group
// starting with 0xF0 or a data byte is a sysex start or continuation, and
// status bytes select their fixed-length channel or system class.
func Encode(cable uint8, msg []byte) (Packet, error) {
	var p Packet
	if cable >= contracts.NumCables {
		return p, fmt.Errorf("%w: %d", contracts.ErrInvalidCable, cable)
	}
	cin, err := Classify(msg)
	if err != nil {
		return p, err
	}
	p[0] = cable<<4 | byte(cin)
	copy(p[1:], msg)
	return p, nil
}

// Classify returns the CIN for a 1-3 byte MIDI message.
func Classify(msg []byte) (CIN, error) {
	n := len(msg)
	if n == 0 || n > 3 {
		return 0, fmt.Errorf("%w: length %d", contracts.ErrInvalidMessage, n)
	}

	first, last := msg[0], msg[n-1]
	if last == SysexEnd && (n > 1 || first == SysexEnd) {
		if n > 1 && !sysexBody(msg[:n-1]) {
			return 0, fmt.Errorf("%w: % x", contracts.ErrInvalidMessage, msg)
		}
		return CINSysexEnd1 + CIN(n-1), nil
	}

	var (
		cin  CIN
		want int
	)
	switch {
	case first < statusBit || first == SysexStart:
		if !sysexBody(msg) {
			return 0, fmt.Errorf("%w: % x", contracts.ErrInvalidMessage, msg)
		}
		cin, want = CINSysexStart, 3
	case first < SysexStart:
		cin = CIN(first >> 4)
		want = cin.Len()
	case first == TimeCode || first == SongSelect:
		cin, want = CINSysCommon2, 2
	case first == SongPosition:
		cin, want = CINSysCommon3, 3
	case first == TuneRequest:
		cin, want = CINSysexEnd1, 1
	case first >= realtimeFirst:
		cin, want = CINSingleByte, 1
	default:
		return 0, fmt.Errorf("%w: undefined status %#02x", contracts.ErrInvalidMessage, first)
	}

	if n != want {
		return 0, fmt.Errorf("%w: %s needs %d bytes, got %d", contracts.ErrInvalidMessage, cin, want, n)
	}
	for _, b := range msg[1:] {
		if b >= statusBit {
			return 0, fmt.Errorf("%w: status byte %#02x in data", contracts.ErrInvalidMessage, b)
		}
	}
	return cin, nil
}

// sysexBody reports whether b can appear inside a sysex stream: data bytes,
// with 0xF0 allowed only in the first position.
func sysexBody(b []byte) bool {
	for i, c := range b {
		if c >= statusBit && !(i == 0 && c == SysexStart) {
			return false
		}
	}
	return true
}
