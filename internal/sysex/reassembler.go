// Package sysex fragments outgoing System Exclusive streams into USB-MIDI
// packets and reassembles incoming ones.
package sysex

import (
	"time"

	"github.com/leandrodaf/usbmidi/internal/packet"
)

// Events receives reassembler output. contracts.Listener satisfies it.
type Events interface {
	OnSysexStart(cable uint8)
	OnSysexData(cable uint8, data []byte)
	OnSysexEnd(cable uint8, total int, elapsed time.Duration)
}

// Outcome reports what a packet did to a receive stream.
type Outcome uint8

const (
	// Orphan means the packet continued or ended a stream that was never started.
	Orphan Outcome = 1 << iota
	// Restarted means a start marker abandoned an unterminated stream.
	Restarted
	// Completed means the packet carried the end marker.
	Completed
	// Malformed means an end packet lacked its 0xF7 marker. The packet is
	// dropped and any open stream abandoned.
	Malformed
)

// Has reports whether o includes flag.
func (o Outcome) Has(flag Outcome) bool {
	return o&flag != 0
}

// Reassembler tracks one receive stream. The zero value is idle and ready.
type Reassembler struct {
	open  bool
	count int // Bytes seen so far, 0xF0 included.
	start time.Time
}

// Receiving reports whether a stream is open.
func (r *Reassembler) Receiving() bool {
	return r.open
}

// Count returns the bytes counted on the open stream, the start marker included.
func (r *Reassembler) Count() int {
	return r.count
}

// Reset abandons any open stream without emitting events.
func (r *Reassembler) Reset() {
	*r = Reassembler{}
}

// Feed consumes one sysex packet (p.IsSysex() must hold) received at now.
//
// A packet whose first byte is 0xF0 opens a stream, abandoning any open one
// without an end event. Payload bytes are emitted through OnSysexData with
// both markers stripped. The total reported to OnSysexEnd counts both markers.
func (r *Reassembler) Feed(p packet.Packet, now time.Time, ev Events) Outcome {
	var out Outcome
	cable := p.Cable()
	data := p.Bytes()
	if len(data) == 0 {
		return out
	}
	if p.CIN().IsSysexEnd() && data[len(data)-1] != packet.SysexEnd {
		r.Reset()
		return Malformed
	}

	if data[0] == packet.SysexStart {
		if r.open {
			out |= Restarted
		}
		r.open = true
		r.count = 1
		r.start = now
		ev.OnSysexStart(cable)
		data = data[1:]
	} else if !r.open {
		return Orphan
	}

	if !p.CIN().IsSysexEnd() {
		r.emit(cable, data, ev)
		return out
	}

	// End packets carry 0xF7 as their last meaningful byte.
	r.emit(cable, data[:len(data)-1], ev)
	r.count++
	total, elapsed := r.count, now.Sub(r.start)
	r.Reset()
	ev.OnSysexEnd(cable, total, elapsed)
	return out | Completed
}

func (r *Reassembler) emit(cable uint8, data []byte, ev Events) {
	if len(data) == 0 {
		return
	}
	r.count += len(data)
	ev.OnSysexData(cable, data)
}
