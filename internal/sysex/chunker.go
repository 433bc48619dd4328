package sysex

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/leandrodaf/usbmidi/internal/packet"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// readAhead bounds how many payload bytes are pulled from the source at once.
const readAhead = 512

var (
	// errNoSession is returned by Fill when no session was begun.
	errNoSession = errors.New("no sysex session in progress")
	// errPacked is returned by Fill once the terminal packet was packed.
	errPacked = errors.New("sysex session already packed")
)

// Chunker packs one outgoing sysex stream into bulk transfer buffers.
//
// The logical stream is 0xF0, the payload, then 0xF7. It is cut into 3-byte
// groups, each encoded as one packet; packets accumulate until the buffer
// holds maxPacket bytes or the terminal group was packed. The caller flushes
// each buffer and calls Fill again once the transport reports the previous
// transfer complete. After flushing the terminal buffer the caller ends the
// session with Finish; until then Begin keeps failing with ErrSessionBusy.
//
// Only Busy is safe for concurrent use; everything else must be serialized
// by the caller.
type Chunker struct {
	maxPacket int
	bufs      [2][]byte // Alternated so a buffer in flight is never rewritten.
	flip      int
	busy      atomic.Bool

	cable   uint8
	src     io.Reader
	total   int // Payload length, markers excluded.
	pos     int // Next position in the logical stream.
	fetched int // Payload bytes pulled from src.
	ahead   [readAhead]byte
	head    int
	tail    int
}

// NewChunker creates a chunker for an endpoint of maxPacket bytes.
// The size is rounded down to whole packets, with a minimum of one.
func NewChunker(maxPacket int) *Chunker {
	maxPacket = maxPacket / packet.Size * packet.Size
	if maxPacket < packet.Size {
		maxPacket = packet.Size
	}
	return &Chunker{
		maxPacket: maxPacket,
		bufs:      [2][]byte{make([]byte, 0, maxPacket), make([]byte, 0, maxPacket)},
	}
}

// MaxPacket returns the transfer buffer capacity in bytes.
func (c *Chunker) MaxPacket() int {
	return c.maxPacket
}

// Busy reports whether a session is active.
func (c *Chunker) Busy() bool {
	return c.busy.Load()
}

// Cursor returns how many bytes of the logical stream have been packed.
func (c *Chunker) Cursor() int {
	return c.pos
}

// Length returns the logical stream length, markers included.
func (c *Chunker) Length() int {
	return c.total + 2
}

// Cable returns the cable of the current or last session.
func (c *Chunker) Cable() uint8 {
	return c.cable
}

// Begin starts a session sending total payload bytes read from src on cable.
// It fails with ErrSessionBusy, leaving the active session untouched, when a
// session is already in progress.
func (c *Chunker) Begin(cable uint8, src io.Reader, total int) error {
	switch {
	case cable >= contracts.NumCables:
		return fmt.Errorf("%w: %d", contracts.ErrInvalidCable, cable)
	case total < 0:
		return fmt.Errorf("%w: negative sysex length %d", contracts.ErrInvalidMessage, total)
	case src == nil && total > 0:
		return fmt.Errorf("%w: nil sysex source", contracts.ErrInvalidMessage)
	}
	if !c.busy.CompareAndSwap(false, true) {
		return contracts.ErrSessionBusy
	}
	c.cable = cable
	c.src = src
	c.total = total
	c.pos, c.fetched, c.head, c.tail = 0, 0, 0, 0
	return nil
}

// Fill packs the next transfer buffer. done is true when the buffer holds
// the terminal packet; the session stays busy until Finish. On error the
// session is abandoned.
//
// The returned slice stays valid until the second following call to Fill.
func (c *Chunker) Fill() (buf []byte, done bool, err error) {
	if !c.busy.Load() {
		return nil, false, errNoSession
	}
	if c.pos == c.Length() {
		return nil, true, errPacked
	}
	c.flip ^= 1
	buf = c.bufs[c.flip][:0]

	length := c.Length()
	for len(buf)+packet.Size <= c.maxPacket {
		var group [3]byte
		n := 0
		for n < len(group) && c.pos < length {
			b, err := c.next()
			if err != nil {
				c.Abandon()
				return nil, false, err
			}
			group[n] = b
			n++
		}

		p, err := packet.Encode(c.cable, group[:n])
		if err != nil {
			c.Abandon()
			return nil, false, err
		}
		buf = append(buf, p[:]...)

		if c.pos == length {
			return buf, true, nil
		}
	}
	return buf, false, nil
}

// Finish ends a session whose terminal buffer was flushed. Cursor keeps
// reporting the packed length.
func (c *Chunker) Finish() {
	c.release()
}

// Abandon drops the active session, if any.
func (c *Chunker) Abandon() {
	c.release()
	c.pos, c.fetched, c.head, c.tail = 0, 0, 0, 0
}

func (c *Chunker) release() {
	c.src = nil
	c.busy.Store(false)
}

// next returns the byte at the current stream position and advances it.
func (c *Chunker) next() (byte, error) {
	var b byte
	switch c.pos {
	case 0:
		b = packet.SysexStart
	case c.total + 1:
		b = packet.SysexEnd
	default:
		if c.head == c.tail {
			if err := c.fetch(); err != nil {
				return 0, err
			}
		}
		b = c.ahead[c.head]
		c.head++
		if b >= 0x80 {
			return 0, fmt.Errorf("%w: status byte %#02x at payload offset %d",
				contracts.ErrInvalidMessage, b, c.pos-1)
		}
	}
	c.pos++
	return b, nil
}

// fetch refills the read-ahead buffer from the source.
func (c *Chunker) fetch() error {
	want := min(c.total-c.fetched, len(c.ahead))
	n, err := io.ReadAtLeast(c.src, c.ahead[:want], 1)
	c.head, c.tail = 0, n
	c.fetched += n
	if n > 0 {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: got %d of %d bytes", contracts.ErrShortSource, c.fetched, c.total)
	}
	return fmt.Errorf("read sysex source: %w", err)
}
