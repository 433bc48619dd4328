package packet

// StreamParser turns a raw MIDI byte stream, as delivered by OS MIDI APIs,
// into USB-MIDI packets on a single cable.
//
// It honours running status, passes realtime bytes through immediately even in
// the middle of another message, and splits sysex into 3-byte groups. A status
// byte arriving inside a sysex stream terminates it with an implicit 0xF7.
type StreamParser struct {
	cable   uint8
	running byte // Running status, channel messages only.
	buf     [3]byte
	n       int  // Bytes collected in buf.
	want    int  // Length of the message being collected, 0 when idle.
	sysex   bool // Inside F0 ... F7.
}

// NewStreamParser creates a parser emitting packets on cable.
func NewStreamParser(cable uint8) *StreamParser {
	return &StreamParser{cable: cable & 0x0F}
}

// Reset drops any partial message and the running status.
func (s *StreamParser) Reset() {
	s.running, s.n, s.want, s.sysex = 0, 0, 0, false
}

// InSysex reports whether the parser is between 0xF0 and 0xF7.
func (s *StreamParser) InSysex() bool {
	return s.sysex
}

// Feed consumes data and calls emit for every complete packet.
func (s *StreamParser) Feed(data []byte, emit func(Packet)) {
	for _, b := range data {
		s.feedByte(b, emit)
	}
}

func (s *StreamParser) feedByte(b byte, emit func(Packet)) {
	if b >= realtimeFirst {
		s.emit([]byte{b}, emit)
		return
	}

	if s.sysex {
		switch {
		case b == SysexEnd:
			s.endSysex(emit)
			return
		case b < statusBit:
			s.buf[s.n] = b
			s.n++
			if s.n == 3 {
				s.emit(s.buf[:3], emit)
				s.n = 0
			}
			return
		default:
			s.endSysex(emit)
		}
	}

	switch {
	case b == SysexStart:
		s.running, s.want = 0, 0
		s.sysex = true
		s.buf[0] = b
		s.n = 1
	case b == SysexEnd:
		// Stray end marker with no open stream.
	case b >= statusBit:
		s.startMessage(b, emit)
	default:
		s.dataByte(b, emit)
	}
}

func (s *StreamParser) startMessage(status byte, emit func(Packet)) {
	want := statusLength(status)
	if status < SysexStart {
		s.running = status
	} else {
		s.running = 0
	}
	if want == 0 {
		s.n, s.want = 0, 0
		return
	}
	s.buf[0] = status
	s.n, s.want = 1, want
	if want == 1 {
		s.emit(s.buf[:1], emit)
		s.n, s.want = 0, 0
	}
}

func (s *StreamParser) dataByte(b byte, emit func(Packet)) {
	if s.want == 0 {
		if s.running == 0 {
			return
		}
		s.buf[0] = s.running
		s.n, s.want = 1, statusLength(s.running)
	}
	s.buf[s.n] = b
	s.n++
	if s.n == s.want {
		s.emit(s.buf[:s.n], emit)
		s.n, s.want = 0, 0
	}
}

func (s *StreamParser) endSysex(emit func(Packet)) {
	s.buf[s.n] = SysexEnd
	s.emit(s.buf[:s.n+1], emit)
	s.n, s.sysex = 0, false
}

func (s *StreamParser) emit(msg []byte, emit func(Packet)) {
	p, err := Encode(s.cable, msg)
	if err != nil {
		return
	}
	emit(p)
}

// MessageLength returns the length of the complete message that status
// starts, or 0 for sysex and undefined statuses.
func MessageLength(status byte) int {
	if status >= realtimeFirst {
		return 1
	}
	return statusLength(status)
}

// statusLength returns the full message length for a status byte, or 0 for
// undefined system common statuses.
func statusLength(status byte) int {
	switch {
	case status < SysexStart:
		return CIN(status >> 4).Len()
	case status == TimeCode || status == SongSelect:
		return 2
	case status == SongPosition:
		return 3
	case status == TuneRequest:
		return 1
	default:
		return 0
	}
}

// Flatten converts a bulk buffer of packets back into raw MIDI byte runs.
//
// Consecutive sysex packets on the same cable are coalesced into a single run
// so a sysex fragment reaches fn as one slice; every other message is passed
// on its own. Reserved packets are skipped. The slice passed to fn is reused
// between calls.
func Flatten(buf []byte, fn func(cable uint8, raw []byte)) error {
	var (
		run      []byte
		runCable uint8
	)
	flush := func() {
		if len(run) > 0 {
			fn(runCable, run)
			run = run[:0]
		}
	}
	err := ForEach(buf, func(p Packet) {
		cin := p.CIN()
		switch {
		case cin.Reserved():
			return
		case p.IsSysex():
			if len(run) > 0 && runCable != p.Cable() {
				flush()
			}
			runCable = p.Cable()
			run = append(run, p.Bytes()...)
			if cin.IsSysexEnd() {
				flush()
			}
		default:
			flush()
			fn(p.Cable(), p.Bytes())
		}
	})
	flush()
	return err
}
