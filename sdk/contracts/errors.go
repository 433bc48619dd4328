package contracts

import "errors"

// Framing errors.
var (
	// ErrInvalidMessage is returned when a message cannot be packed: zero or
	// excessive length, an unrecognized status byte, or a length that does not
	// match the status class.
	ErrInvalidMessage = errors.New("invalid MIDI message")

	// ErrReservedPacket marks a packet whose CIN is reserved for future use.
	// Such packets are dropped and counted, never returned to a caller.
	ErrReservedPacket = errors.New("reserved USB-MIDI packet")

	// ErrShortFrame is returned when a received frame is shorter than one packet.
	ErrShortFrame = errors.New("frame shorter than a USB-MIDI packet")

	// ErrInvalidCable is returned for a cable number outside the configured range.
	ErrInvalidCable = errors.New("invalid cable number")
)

// Session and transport errors.
var (
	// ErrSessionBusy is returned when a transmit is requested while a sysex
	// session is still in progress.
	ErrSessionBusy = errors.New("sysex session busy")

	// ErrShortSource is returned when a sysex source ends before its declared length.
	ErrShortSource = errors.New("sysex source shorter than declared length")

	// ErrTransportFailure wraps an error reported by the transport primitives.
	ErrTransportFailure = errors.New("transport failure")

	// ErrNotAvailable is returned while the transport is not available.
	ErrNotAvailable = errors.New("USB-MIDI interface not available")

	// ErrSessionAborted is reported when an active sysex session is abandoned on request.
	ErrSessionAborted = errors.New("sysex session aborted")
)

// ErrInvalidOption is returned when client options or configuration are out of range.
var ErrInvalidOption = errors.New("invalid option")

// OS bridge errors.
var (
	// ErrUnsupportedOS is returned when no OS MIDI bridge exists for the running platform.
	ErrUnsupportedOS = errors.New("unsupported operating system")

	// ErrNoMIDIPorts is returned when the OS reports no MIDI ports.
	ErrNoMIDIPorts = errors.New("no MIDI ports found")

	// ErrInvalidMIDIPort is returned for a port index the OS does not know.
	ErrInvalidMIDIPort = errors.New("invalid MIDI port")
)
