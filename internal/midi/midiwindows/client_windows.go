//go:build windows
// +build windows

package midiwindows

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/leandrodaf/usbmidi/internal/midi/bridge"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_LONGDATA  = 0x3C4 // Sysex buffer filled
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

const (
	mmsyserrNoError     = 0
	midierrStillPlaying = 65 // MIDIERR_STILLPLAYING
	mhdrDone            = 0x00000001

	sysexBuffers    = 4
	sysexBufferSize = 1024
	longMsgTimeout  = 5 * time.Second
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// midiHdr mirrors MIDIHDR.
type midiHdr struct {
	lpData          uintptr
	dwBufferLength  uint32
	dwBytesRecorded uint32
	dwUser          uintptr
	dwFlags         uint32
	lpNext          uintptr
	reserved        uintptr
	dwOffset        uint32
	dwReserved      [8]uintptr
}

// Load the winmm.dll library and required functions
var (
	winmm                      = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs       = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps       = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen             = winmm.NewProc("midiInOpen")
	procMidiInStart            = winmm.NewProc("midiInStart")
	procMidiInStop             = winmm.NewProc("midiInStop")
	procMidiInReset            = winmm.NewProc("midiInReset")
	procMidiInClose            = winmm.NewProc("midiInClose")
	procMidiInPrepareHeader    = winmm.NewProc("midiInPrepareHeader")
	procMidiInUnprepareHeader  = winmm.NewProc("midiInUnprepareHeader")
	procMidiInAddBuffer        = winmm.NewProc("midiInAddBuffer")
	procMidiOutGetNumDevs      = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps      = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen            = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg        = winmm.NewProc("midiOutShortMsg")
	procMidiOutLongMsg         = winmm.NewProc("midiOutLongMsg")
	procMidiOutPrepareHeader   = winmm.NewProc("midiOutPrepareHeader")
	procMidiOutUnprepareHeader = winmm.NewProc("midiOutUnprepareHeader")
	procMidiOutReset           = winmm.NewProc("midiOutReset")
	procMidiOutClose           = winmm.NewProc("midiOutClose")
)

// Bridge carries USB-MIDI frames over winmm input and output devices.
// Every message is bridged on a single OS port regardless of its cable.
type Bridge struct {
	*bridge.Hub

	logger   contracts.Logger
	mu       sync.Mutex
	in       HMIDIIN
	out      HMIDIOUT
	callback uintptr
	inBufs   [sysexBuffers]struct {
		hdr  midiHdr
		data [sysexBufferSize]byte
	}
	closing   bool
	closeOnce sync.Once
}

// NewBridge creates a winmm bridge. No device is opened until Open.
func NewBridge(options *contracts.ClientOptions) (contracts.PortTransport, error) {
	options.Logger.Info("MIDI bridge created for Windows")
	return &Bridge{
		Hub:    bridge.NewHub(0),
		logger: options.Logger,
	}, nil
}

// ListInputs lists the winmm input devices.
func (m *Bridge) ListInputs() ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn("No MIDI input devices found")
		return nil, contracts.ErrNoMIDIPorts
	}

	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != mmsyserrNoError {
			m.logger.Warn("Failed to get MIDI input capabilities", m.logger.Field().Int("device", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		ports = append(ports, contracts.PortInfo{
			Index:        int(i),
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return ports, nil
}

// ListOutputs lists the winmm output devices.
func (m *Bridge) ListOutputs() ([]contracts.PortInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn("No MIDI output devices found")
		return nil, contracts.ErrNoMIDIPorts
	}

	ports := make([]contracts.PortInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != mmsyserrNoError {
			m.logger.Warn("Failed to get MIDI output capabilities", m.logger.Field().Int("device", int(i)))
			continue
		}
		name := windows.UTF16ToString(caps.szPname[:])
		ports = append(ports, contracts.PortInfo{
			Index:        int(i),
			Name:         name,
			EntityName:   name,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return ports, nil
}

// Open opens the input device at index input and the output device at index
// output. A negative index leaves that direction closed.
func (m *Bridge) Open(input, output int) error {
	m.SetAvailable(false)
	if err := m.open(input, output); err != nil {
		return err
	}
	m.SetAvailable(true)
	return nil
}

func (m *Bridge) open(input, output int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeLocked(); err != nil {
		return fmt.Errorf("failed to close previous MIDI devices: %w", err)
	}

	if output >= 0 {
		r1, _, err := procMidiOutOpen.Call(
			uintptr(unsafe.Pointer(&m.out)),
			uintptr(output),
			0, 0, 0,
		)
		if r1 != mmsyserrNoError {
			m.logger.Error("Failed to open MIDI output device", m.logger.Field().Int("output", output))
			return fmt.Errorf("%w: output %d: %v", contracts.ErrInvalidMIDIPort, output, err)
		}
		m.logger.Info("MIDI output device opened", m.logger.Field().Int("output", output))
	}

	if input >= 0 {
		if m.callback == 0 {
			m.callback = windows.NewCallback(midiInCallback)
		}
		r1, _, err := procMidiInOpen.Call(
			uintptr(unsafe.Pointer(&m.in)),
			uintptr(input),
			m.callback,
			uintptr(unsafe.Pointer(m)),
			uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
		)
		if r1 != mmsyserrNoError {
			m.logger.Error("Failed to open MIDI input device", m.logger.Field().Int("input", input))
			return fmt.Errorf("%w: input %d: %v", contracts.ErrInvalidMIDIPort, input, err)
		}
		if err := m.addInputBuffers(); err != nil {
			return err
		}
		r1, _, err = procMidiInStart.Call(uintptr(m.in))
		if r1 != mmsyserrNoError {
			return fmt.Errorf("failed to start MIDI input: %v", err)
		}
		m.logger.Info("MIDI input device started", m.logger.Field().Int("input", input))
	}
	m.closing = false
	return nil
}

// addInputBuffers hands the sysex receive buffers to the input device.
func (m *Bridge) addInputBuffers() error {
	for i := range m.inBufs {
		b := &m.inBufs[i]
		b.hdr = midiHdr{
			lpData:         uintptr(unsafe.Pointer(&b.data[0])),
			dwBufferLength: sysexBufferSize,
		}
		r1, _, err := procMidiInPrepareHeader.Call(uintptr(m.in), uintptr(unsafe.Pointer(&b.hdr)), unsafe.Sizeof(b.hdr))
		if r1 != mmsyserrNoError {
			return fmt.Errorf("failed to prepare MIDI input buffer: %v", err)
		}
		r1, _, err = procMidiInAddBuffer.Call(uintptr(m.in), uintptr(unsafe.Pointer(&b.hdr)), unsafe.Sizeof(b.hdr))
		if r1 != mmsyserrNoError {
			return fmt.Errorf("failed to add MIDI input buffer: %v", err)
		}
	}
	return nil
}

// Send writes every message of buf to the output device, then signals
// completion. Short messages go through midiOutShortMsg and sysex chunks
// through midiOutLongMsg.
func (m *Bridge) Send(buf []byte) error {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()
	if out == 0 {
		return fmt.Errorf("%w: no MIDI output device open", contracts.ErrNotAvailable)
	}

	return m.Output(buf, func(cable uint8, raw []byte) error {
		if bridge.IsSysexChunk(raw) {
			return m.sendLong(out, raw)
		}
		r1, _, err := procMidiOutShortMsg.Call(uintptr(out), uintptr(bridge.ShortMessage(raw)))
		if r1 != mmsyserrNoError {
			return fmt.Errorf("midiOutShortMsg: %v", err)
		}
		return nil
	})
}

// sendLong writes a sysex chunk and waits until the driver has released it.
func (m *Bridge) sendLong(out HMIDIOUT, raw []byte) error {
	data := append([]byte(nil), raw...)
	hdr := midiHdr{
		lpData:         uintptr(unsafe.Pointer(&data[0])),
		dwBufferLength: uint32(len(data)),
	}
	size := unsafe.Sizeof(hdr)

	r1, _, err := procMidiOutPrepareHeader.Call(uintptr(out), uintptr(unsafe.Pointer(&hdr)), size)
	if r1 != mmsyserrNoError {
		return fmt.Errorf("midiOutPrepareHeader: %v", err)
	}
	r1, _, err = procMidiOutLongMsg.Call(uintptr(out), uintptr(unsafe.Pointer(&hdr)), size)
	if r1 != mmsyserrNoError {
		procMidiOutUnprepareHeader.Call(uintptr(out), uintptr(unsafe.Pointer(&hdr)), size)
		return fmt.Errorf("midiOutLongMsg: %v", err)
	}

	deadline := time.Now().Add(longMsgTimeout)
	for {
		r1, _, err = procMidiOutUnprepareHeader.Call(uintptr(out), uintptr(unsafe.Pointer(&hdr)), size)
		switch {
		case r1 == mmsyserrNoError:
			return nil
		case r1 != midierrStillPlaying:
			return fmt.Errorf("midiOutUnprepareHeader: %v", err)
		case time.Now().After(deadline):
			procMidiOutReset.Call(uintptr(out))
			return fmt.Errorf("midiOutLongMsg: timed out after %s", longMsgTimeout)
		}
		time.Sleep(time.Millisecond)
	}
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	m := (*Bridge)(unsafe.Pointer(dwInstance))

	switch wMsg {
	case MIM_OPEN:
		m.logger.Info("MIDI input device opened")
	case MIM_CLOSE:
		m.logger.Info("MIDI input device closed")
	case MIM_DATA:
		m.Input(bridge.UnpackShortMessage(uint32(dwParam1)))
	case MIM_LONGDATA:
		hdr := (*midiHdr)(unsafe.Pointer(dwParam1))
		if n := hdr.dwBytesRecorded; n > 0 {
			data := unsafe.Slice((*byte)(unsafe.Pointer(hdr.lpData)), n)
			m.Input(data)
		}
		m.mu.Lock()
		closing := m.closing
		m.mu.Unlock()
		if !closing {
			procMidiInAddBuffer.Call(hMidiIn, dwParam1, unsafe.Sizeof(*hdr))
		}
	case MIM_ERROR, MIM_LONGERROR:
		m.logger.Error("MIDI input error", m.logger.Field().Uint64("msg", uint64(wMsg)))
	case MIM_MOREDATA:
		m.Input(bridge.UnpackShortMessage(uint32(dwParam1)))
	default:
		m.logger.Warn("Unknown MIDI message", m.logger.Field().Uint64("msg", uint64(wMsg)))
	}

	return 0
}

// Close stops input, releases the sysex buffers and closes both devices.
func (m *Bridge) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.SetAvailable(false)
		m.mu.Lock()
		err = m.closeLocked()
		m.mu.Unlock()
		if err == nil {
			m.logger.Info("MIDI devices closed")
		}
	})
	return err
}

// closeLocked releases both devices. Errors are combined.
func (m *Bridge) closeLocked() error {
	var err error
	if m.in != 0 {
		m.closing = true
		h := uintptr(m.in)
		m.mu.Unlock()
		procMidiInStop.Call(h)
		procMidiInReset.Call(h)
		m.mu.Lock()
		for i := range m.inBufs {
			hdr := &m.inBufs[i].hdr
			procMidiInUnprepareHeader.Call(h, uintptr(unsafe.Pointer(hdr)), unsafe.Sizeof(*hdr))
		}
		if r1, _, e := procMidiInClose.Call(h); r1 != mmsyserrNoError {
			err = multierr.Append(err, fmt.Errorf("midiInClose: %v", e))
		}
		m.in = 0
	}
	if m.out != 0 {
		procMidiOutReset.Call(uintptr(m.out))
		if r1, _, e := procMidiOutClose.Call(uintptr(m.out)); r1 != mmsyserrNoError {
			err = multierr.Append(err, fmt.Errorf("midiOutClose: %v", e))
		}
		m.out = 0
	}
	return err
}
