package contracts

import (
	"io"
	"time"
)

// NumCables is the number of virtual cables a USB-MIDI endpoint can multiplex.
const NumCables = 16

// Listener receives logical MIDI traffic decoded from the transport.
//
// Byte slices passed to the callbacks are only valid for the duration of the
// call. Callbacks run in the transport's receive or completion context and
// must not block.
type Listener interface {
	// A complete non-sysex message.
	OnMessage(cable uint8, msg []byte)
	// A sysex stream began (0xF0 seen).
	OnSysexStart(cable uint8)
	// Sysex payload bytes, markers excluded.
	OnSysexData(cable uint8, data []byte)
	// Stream ended; total includes both markers.
	OnSysexEnd(cable uint8, total int, elapsed time.Duration)
	// A transmit session finished or failed.
	OnSysexSent(report SysexReport)
	// The transport became (un)available.
	OnAvailabilityChange(available bool)
}

// SysexReport summarizes a finished transmit session.
type SysexReport struct {
	SessionID string        // Unique id assigned when the session began.
	Cable     uint8         // Cable the stream was sent on.
	Bytes     int           // Bytes packed, markers included.
	Elapsed   time.Duration // Time from begin to the final flush.
	Err       error         // Non-nil when the session was abandoned.
}

// BytesPerSecond returns the transmit throughput of the session.
func (r SysexReport) BytesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / r.Elapsed.Seconds()
}

// Stats holds counters kept by a USB-MIDI device.
type Stats struct {
	PacketsReceived  uint64 // Packets decoded from the transport.
	PacketsSent      uint64 // Packets handed to the transport.
	ReservedDropped  uint64 // Packets dropped for a reserved CIN.
	OrphanDropped    uint64 // Sysex continue/end packets seen with no open stream.
	MalformedDropped uint64 // Sysex end packets missing their 0xF7 marker.
	DecodeErrors     uint64 // Frames that could not be decoded.
	SysexReceived    uint64 // Sysex streams completed on receive.
	SysexRestarted   uint64 // Receive streams abandoned by a new start.
	SysexSent        uint64 // Transmit sessions completed.
	SysexAbandoned   uint64 // Transmit sessions abandoned.
	TransportFailure uint64 // Send calls that failed.
}

// USBMIDI is the logical MIDI surface of a USB-MIDI interface.
type USBMIDI interface {
	TransmitFixed(cable uint8, msg []byte) error                // Sends one message of up to 3 bytes.
	TransmitSysex(cable uint8, src io.Reader, length int) error // Starts sending length payload bytes wrapped in F0/F7.
	TransmitSysexBytes(cable uint8, payload []byte) error       // TransmitSysex over a byte slice.
	AbortSysex() bool                                           // Abandons the active transmit session, if any.
	SysexBusy() bool                                            // Reports whether a transmit session is active.
	Available() bool                                            // Reports the last availability signal.
	Stats() Stats                                               // Returns a snapshot of the counters.
	Close() error                                               // Detaches from the transport and releases it.
}
