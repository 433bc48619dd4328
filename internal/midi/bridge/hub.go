// Package bridge holds the platform-independent half of the OS MIDI bridge
// transports: handler bookkeeping and conversion between USB-MIDI frames and
// the raw byte streams OS MIDI services exchange.
package bridge

import (
	"sync"

	"github.com/leandrodaf/usbmidi/internal/packet"
	"go.uber.org/multierr"
)

// Hub implements the handler side of contracts.Transport for a bridge.
// Bridges embed it and supply Send, port selection and Close.
type Hub struct {
	mu        sync.RWMutex
	complete  func()
	receive   func(frame []byte)
	avail     func(available bool)
	available bool

	inMu   sync.Mutex
	parser *packet.StreamParser
	frame  []byte
}

// NewHub creates a hub that tags received messages with cable.
func NewHub(cable uint8) *Hub {
	return &Hub{parser: packet.NewStreamParser(cable)}
}

// OnSendComplete registers the completion handler.
func (h *Hub) OnSendComplete(handler func()) {
	h.mu.Lock()
	h.complete = handler
	h.mu.Unlock()
}

// OnReceive registers the receive handler.
func (h *Hub) OnReceive(handler func(frame []byte)) {
	h.mu.Lock()
	h.receive = handler
	h.mu.Unlock()
}

// OnAvailabilityChange registers the availability handler and invokes it
// once when the bridge is already available.
func (h *Hub) OnAvailabilityChange(handler func(available bool)) {
	h.mu.Lock()
	h.avail = handler
	available := h.available
	h.mu.Unlock()
	if handler != nil && available {
		handler(true)
	}
}

// Available reports the current availability.
func (h *Hub) Available() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.available
}

// SetAvailable records a port state change and notifies the handler.
// Becoming unavailable drops any partial input message.
func (h *Hub) SetAvailable(available bool) {
	h.mu.Lock()
	if h.available == available {
		h.mu.Unlock()
		return
	}
	h.available = available
	handler := h.avail
	h.mu.Unlock()

	if !available {
		h.inMu.Lock()
		h.parser.Reset()
		h.inMu.Unlock()
	}
	if handler != nil {
		handler(available)
	}
}

// Input converts raw bytes read from an OS port into one USB-MIDI frame and
// delivers it. Bytes that do not yet complete a packet are kept for the next
// call.
func (h *Hub) Input(data []byte) {
	h.inMu.Lock()
	h.frame = h.frame[:0]
	h.parser.Feed(data, func(p packet.Packet) {
		h.frame = append(h.frame, p[:]...)
	})
	frame := append([]byte(nil), h.frame...)
	h.inMu.Unlock()

	if len(frame) == 0 {
		return
	}
	h.mu.RLock()
	handler := h.receive
	h.mu.RUnlock()
	if handler != nil {
		handler(frame)
	}
}

// Output flattens a USB-MIDI buffer into raw runs and writes each through
// write. Completion is signalled once every run was written; on error the
// errors of all runs are returned and no completion is signalled.
func (h *Hub) Output(buf []byte, write func(cable uint8, raw []byte) error) error {
	var err error
	if ferr := packet.Flatten(buf, func(cable uint8, raw []byte) {
		err = multierr.Append(err, write(cable, raw))
	}); ferr != nil {
		err = multierr.Append(err, ferr)
	}
	if err != nil {
		return err
	}

	h.mu.RLock()
	handler := h.complete
	h.mu.RUnlock()
	if handler != nil {
		handler()
	}
	return nil
}

// IsSysexChunk reports whether a run produced by Output belongs to a sysex
// stream rather than being a complete short message.
func IsSysexChunk(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	return raw[0] == packet.SysexStart || raw[0] < 0x80 || raw[len(raw)-1] == packet.SysexEnd
}

// ShortMessage packs a short message into the little-endian word used by
// OS short-message APIs.
func ShortMessage(raw []byte) uint32 {
	var msg uint32
	for i := 0; i < len(raw) && i < 3; i++ {
		msg |= uint32(raw[i]) << (8 * i)
	}
	return msg
}

// UnpackShortMessage is the inverse of ShortMessage. The length is derived
// from the status byte.
func UnpackShortMessage(msg uint32) []byte {
	status := byte(msg)
	n := packet.MessageLength(status)
	if n == 0 {
		n = 1
	}
	raw := make([]byte, n)
	for i := range raw {
		raw[i] = byte(msg >> (8 * i))
	}
	return raw
}
