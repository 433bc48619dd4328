// Package device binds the packet codec and the sysex engines to a bulk
// transport. A Device is the single context object holding all framing state.
package device

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/usbmidi/internal/logger"
	"github.com/leandrodaf/usbmidi/internal/packet"
	"github.com/leandrodaf/usbmidi/internal/sysex"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var _ contracts.USBMIDI = (*Device)(nil)

type counters struct {
	packetsReceived  atomic.Uint64
	packetsSent      atomic.Uint64
	reservedDropped  atomic.Uint64
	orphanDropped    atomic.Uint64
	malformedDropped atomic.Uint64
	decodeErrors     atomic.Uint64
	sysexReceived    atomic.Uint64
	sysexRestarted   atomic.Uint64
	sysexSent        atomic.Uint64
	sysexAbandoned   atomic.Uint64
	transportFailure atomic.Uint64
}

// session identifies the transmit session in progress.
type session struct {
	id    string
	cable uint8
	start time.Time
}

// Device implements contracts.USBMIDI above a contracts.Transport.
//
// Transmit state is guarded by mu and receive state by rxMu. Neither lock is
// held across Transport.Send, so a transport may signal completion from
// inside Send. Listener callbacks are never invoked with mu held.
type Device struct {
	transport contracts.Transport
	listener  contracts.Listener
	log       contracts.Logger
	now       func() time.Time
	cables    int

	mu      sync.Mutex
	chunker *sysex.Chunker
	sess    session
	gen     uint64 // Bumped whenever a transmit session ends.
	endErr  error  // Why the session of generation gen-1 ended.
	pending bool   // A non-final sysex buffer awaits completion.
	inSend  bool   // A pump is inside Transport.Send.
	resumed bool   // Completion arrived while inSend.
	closed  bool

	rxMu sync.Mutex
	rx   [contracts.NumCables]sysex.Reassembler

	available atomic.Bool
	stats     counters
}

// New attaches a device to t and registers its handlers. The device starts
// unavailable until t signals otherwise.
func New(t contracts.Transport, opts contracts.ClientOptions) *Device {
	d := &Device{
		transport: t,
		listener:  opts.Listener,
		log:       opts.Logger,
		now:       opts.Clock,
		cables:    opts.Cables,
		chunker:   sysex.NewChunker(opts.MaxPacketSize),
	}
	if d.listener == nil {
		d.listener = contracts.ListenerFuncs{}
	}
	if d.log == nil {
		d.log = logger.NewZapLoggerFrom(zap.NewNop())
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.cables <= 0 || d.cables > contracts.NumCables {
		d.cables = contracts.NumCables
	}

	t.OnSendComplete(d.handleSendComplete)
	t.OnReceive(d.handleReceive)
	t.OnAvailabilityChange(d.handleAvailability)
	return d
}

// TransmitFixed sends one message of 1 to 3 bytes as a single packet.
func (d *Device) TransmitFixed(cable uint8, msg []byte) error {
	if err := d.ready(cable); err != nil {
		return err
	}
	if d.chunker.Busy() {
		d.log.Warn("fixed message rejected during sysex transmit", d.log.Field().Uint8("cable", cable))
		return contracts.ErrSessionBusy
	}
	p, err := packet.Encode(cable, msg)
	if err != nil {
		return err
	}

	d.log.Debug("tx packet", d.log.Field().String("packet", p.String()))
	if err := d.transport.Send(p[:]); err != nil {
		d.stats.transportFailure.Add(1)
		d.log.Error("failed to send packet", d.log.Field().Error("error", err))
		return fmt.Errorf("%w: %v", contracts.ErrTransportFailure, err)
	}
	d.stats.packetsSent.Add(1)
	return nil
}

// TransmitSysex starts sending length payload bytes read from src, wrapped
// in 0xF0 and 0xF7, on cable. It returns once the first buffer was handed to
// the transport; later buffers follow transport completions. The outcome is
// reported through Listener.OnSysexSent unless TransmitSysex itself returns
// an error.
func (d *Device) TransmitSysex(cable uint8, src io.Reader, length int) error {
	if err := d.ready(cable); err != nil {
		return err
	}

	d.mu.Lock()
	if err := d.chunker.Begin(cable, src, length); err != nil {
		d.mu.Unlock()
		if errors.Is(err, contracts.ErrSessionBusy) {
			d.log.Warn("sysex transmit rejected", d.log.Field().Uint8("cable", cable), d.log.Field().Error("error", err))
		}
		return err
	}
	d.sess = session{id: uuid.NewString(), cable: cable, start: d.now()}
	id, gen := d.sess.id, d.gen
	buf, done, err := d.chunker.Fill()
	if err != nil {
		rep := d.endLocked(err)
		d.mu.Unlock()
		d.logReport(rep)
		return err
	}
	d.pending = !done
	d.inSend = true
	d.mu.Unlock()

	d.log.Info("sysex transmit started",
		d.log.Field().String("session", id),
		d.log.Field().Uint8("cable", cable),
		d.log.Field().Int("bytes", length+2))

	rep, err := d.pump(gen, buf, done)
	if rep != nil {
		d.logReport(*rep)
		if rep.Err == nil {
			d.listener.OnSysexSent(*rep)
		}
	}
	return err
}

// TransmitSysexBytes sends payload as one sysex stream.
func (d *Device) TransmitSysexBytes(cable uint8, payload []byte) error {
	return d.TransmitSysex(cable, bytes.NewReader(payload), len(payload))
}

// AbortSysex abandons the active transmit session. It reports false when no
// session was active. A buffer already handed to the transport is not
// recalled.
func (d *Device) AbortSysex() bool {
	d.mu.Lock()
	if !d.chunker.Busy() {
		d.mu.Unlock()
		return false
	}
	rep := d.endLocked(contracts.ErrSessionAborted)
	d.mu.Unlock()
	d.finish(rep)
	return true
}

// SysexBusy reports whether a transmit session is active.
func (d *Device) SysexBusy() bool {
	return d.chunker.Busy()
}

// Available reports the last availability signal from the transport.
func (d *Device) Available() bool {
	return d.available.Load()
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() contracts.Stats {
	return contracts.Stats{
		PacketsReceived:  d.stats.packetsReceived.Load(),
		PacketsSent:      d.stats.packetsSent.Load(),
		ReservedDropped:  d.stats.reservedDropped.Load(),
		OrphanDropped:    d.stats.orphanDropped.Load(),
		MalformedDropped: d.stats.malformedDropped.Load(),
		DecodeErrors:     d.stats.decodeErrors.Load(),
		SysexReceived:    d.stats.sysexReceived.Load(),
		SysexRestarted:   d.stats.sysexRestarted.Load(),
		SysexSent:        d.stats.sysexSent.Load(),
		SysexAbandoned:   d.stats.sysexAbandoned.Load(),
		TransportFailure: d.stats.transportFailure.Load(),
	}
}

// Close detaches the device from its transport, abandons an active session
// and closes the transport when it implements io.Closer.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	var rep *contracts.SysexReport
	if d.chunker.Busy() {
		r := d.endLocked(contracts.ErrSessionAborted)
		rep = &r
	}
	d.mu.Unlock()

	d.available.Store(false)
	d.transport.OnSendComplete(nil)
	d.transport.OnReceive(nil)
	d.transport.OnAvailabilityChange(nil)
	if rep != nil {
		d.finish(*rep)
	}

	var err error
	if c, ok := d.transport.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	d.log.Info("device closed")
	return multierr.Append(err, d.log.Sync())
}

// ready validates a transmit request against the device state.
func (d *Device) ready(cable uint8) error {
	if int(cable) >= d.cables {
		return fmt.Errorf("%w: %d (%d configured)", contracts.ErrInvalidCable, cable, d.cables)
	}
	if !d.available.Load() {
		return contracts.ErrNotAvailable
	}
	return nil
}

// pump sends buf and keeps the session moving while completions arrive from
// inside Send. It returns when the final buffer went out, the session ended,
// or a completion is still outstanding. A non-nil report means the session
// ended here.
func (d *Device) pump(gen uint64, buf []byte, done bool) (*contracts.SysexReport, error) {
	for {
		d.log.Debug("tx sysex buffer",
			d.log.Field().Int("packets", len(buf)/packet.Size),
			d.log.Field().Binary("data", buf))
		sendErr := d.transport.Send(buf)

		d.mu.Lock()
		if d.gen != gen {
			// Ended elsewhere while sending and already reported.
			err := contracts.ErrSessionAborted
			if d.gen == gen+1 && d.endErr != nil {
				err = d.endErr
			}
			d.mu.Unlock()
			return nil, err
		}
		d.inSend = false
		if sendErr != nil {
			d.stats.transportFailure.Add(1)
			rep := d.endLocked(fmt.Errorf("%w: %v", contracts.ErrTransportFailure, sendErr))
			d.mu.Unlock()
			return &rep, rep.Err
		}
		d.stats.packetsSent.Add(uint64(len(buf) / packet.Size))
		if done {
			rep := d.endLocked(nil)
			d.mu.Unlock()
			return &rep, nil
		}
		if !d.resumed {
			d.mu.Unlock()
			return nil, nil
		}

		d.resumed = false
		var err error
		buf, done, err = d.chunker.Fill()
		if err != nil {
			rep := d.endLocked(err)
			d.mu.Unlock()
			return &rep, err
		}
		d.pending = !done
		d.inSend = true
		d.mu.Unlock()
	}
}

// endLocked closes the transmit session and builds its report. A session
// stays busy until this runs, including while its terminal buffer is inside
// Transport.Send.
func (d *Device) endLocked(err error) contracts.SysexReport {
	rep := contracts.SysexReport{
		SessionID: d.sess.id,
		Cable:     d.sess.cable,
		Bytes:     d.chunker.Cursor(),
		Elapsed:   d.now().Sub(d.sess.start),
		Err:       err,
	}
	if err != nil {
		d.chunker.Abandon()
		d.stats.sysexAbandoned.Add(1)
	} else {
		d.chunker.Finish()
		d.stats.sysexSent.Add(1)
	}
	d.pending, d.inSend, d.resumed = false, false, false
	d.endErr = err
	d.gen++
	return rep
}

func (d *Device) finish(rep contracts.SysexReport) {
	d.logReport(rep)
	d.listener.OnSysexSent(rep)
}

func (d *Device) logReport(rep contracts.SysexReport) {
	fields := []contracts.Field{
		d.log.Field().String("session", rep.SessionID),
		d.log.Field().Uint8("cable", rep.Cable),
		d.log.Field().Int("bytes", rep.Bytes),
		d.log.Field().Duration("elapsed", rep.Elapsed),
	}
	switch {
	case rep.Err == nil:
		d.log.Info("sysex transmit complete", append(fields, d.log.Field().Float64("bytes_per_second", rep.BytesPerSecond()))...)
	case errors.Is(rep.Err, contracts.ErrTransportFailure):
		d.log.Error("sysex transmit failed", append(fields, d.log.Field().Error("error", rep.Err))...)
	default:
		d.log.Warn("sysex transmit abandoned", append(fields, d.log.Field().Error("error", rep.Err))...)
	}
}

// handleSendComplete advances the transmit session by one buffer.
// Completions of fixed messages and of the final sysex buffer are ignored.
func (d *Device) handleSendComplete() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	if d.inSend {
		d.resumed = true
		d.mu.Unlock()
		return
	}

	gen := d.gen
	buf, done, err := d.chunker.Fill()
	if err != nil {
		rep := d.endLocked(err)
		d.mu.Unlock()
		d.finish(rep)
		return
	}
	d.pending = !done
	d.inSend = true
	d.mu.Unlock()

	if rep, _ := d.pump(gen, buf, done); rep != nil {
		d.finish(*rep)
	}
}

// handleReceive decodes every packet of a received frame.
func (d *Device) handleReceive(frame []byte) {
	if err := packet.ForEach(frame, d.receive); err != nil {
		d.stats.decodeErrors.Add(1)
		d.log.Warn("dropped partial packet",
			d.log.Field().Int("frame_bytes", len(frame)),
			d.log.Field().Error("error", err))
	}
}

func (d *Device) receive(p packet.Packet) {
	d.stats.packetsReceived.Add(1)
	if p.CIN().Reserved() {
		d.stats.reservedDropped.Add(1)
		d.log.Debug("dropped reserved packet", d.log.Field().String("packet", p.String()))
		return
	}
	d.log.Debug("rx packet", d.log.Field().String("packet", p.String()))

	if !p.IsSysex() {
		d.listener.OnMessage(p.Cable(), p.Bytes())
		return
	}

	d.rxMu.Lock()
	out := d.rx[p.Cable()].Feed(p, d.now(), d.listener)
	d.rxMu.Unlock()

	switch {
	case out.Has(sysex.Orphan):
		d.stats.orphanDropped.Add(1)
		d.log.Warn("dropped orphan sysex packet", d.log.Field().String("packet", p.String()))
		return
	case out.Has(sysex.Malformed):
		d.stats.malformedDropped.Add(1)
		d.log.Warn("dropped sysex end packet without end marker", d.log.Field().String("packet", p.String()))
		return
	case out.Has(sysex.Restarted):
		d.stats.sysexRestarted.Add(1)
		d.log.Warn("sysex receive restarted", d.log.Field().Uint8("cable", p.Cable()))
	}
	if out.Has(sysex.Completed) {
		d.stats.sysexReceived.Add(1)
	}
}

// handleAvailability tracks the transport state. Losing the transport
// abandons the transmit session and every open receive stream.
func (d *Device) handleAvailability(available bool) {
	if d.available.Swap(available) == available {
		return
	}

	var rep *contracts.SysexReport
	d.mu.Lock()
	switch {
	case !available && d.chunker.Busy():
		r := d.endLocked(contracts.ErrNotAvailable)
		rep = &r
	case available && !d.chunker.Busy():
		d.chunker.Abandon()
		d.pending, d.resumed = false, false
	}
	d.mu.Unlock()

	if !available {
		d.rxMu.Lock()
		for i := range d.rx {
			d.rx[i].Reset()
		}
		d.rxMu.Unlock()
	}

	d.log.Info("availability changed", d.log.Field().Bool("available", available))
	if rep != nil {
		d.finish(*rep)
	}
	d.listener.OnAvailabilityChange(available)
}
