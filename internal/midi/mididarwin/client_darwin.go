//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/usbmidi/internal/midi/bridge"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"github.com/youpy/go-coremidi"
	"go.uber.org/multierr"
)

// Error definitions for CoreMIDI port handling.
var (
	ErrMIDIConnectionError = errors.New("error connecting to MIDI source")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrPortNotOpen         = errors.New("no MIDI output port open")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// Bridge carries USB-MIDI frames over a CoreMIDI source and destination.
// Every message is bridged on a single OS port regardless of its cable.
type Bridge struct {
	*bridge.Hub

	logger     contracts.Logger
	client     coremidi.Client
	config     contracts.BridgeConfig
	mu         sync.Mutex             // Guards the port fields.
	inputPort  coremidi.InputPort     // Port receiving from the selected source.
	outputPort coremidi.OutputPort    // Port sending to the selected destination.
	dest       coremidi.Destination   // Selected destination.
	portConn   internalPortConnection // Connection to the selected source.
	hasOutput  bool
	wg         sync.WaitGroup // Tracks input callbacks in progress.
	closeOnce  sync.Once
}

// NewBridge creates a CoreMIDI client named after options.BridgeConfig.
func NewBridge(options *contracts.ClientOptions) (contracts.PortTransport, error) {
	config := contracts.BridgeConfig{ClientName: "USB-MIDI Bridge"}
	if options.BridgeConfig != nil {
		config = *options.BridgeConfig
	}
	client, err := coremidi.NewClient(config.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("CoreMIDI client successfully created", options.Logger.Field().String("name", config.ClientName))

	return &Bridge{
		Hub:    bridge.NewHub(0),
		logger: options.Logger,
		client: client,
		config: config,
	}, nil
}

// ListInputs returns the CoreMIDI sources.
func (m *Bridge) ListInputs() ([]contracts.PortInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(contracts.ErrNoMIDIPorts.Error())
		return nil, contracts.ErrNoMIDIPorts
	}

	ports := make([]contracts.PortInfo, len(sources))
	for i, source := range sources {
		entity := source.Entity()
		ports[i] = contracts.PortInfo{
			Index:        i,
			Name:         source.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return ports, nil
}

// ListOutputs returns the CoreMIDI destinations.
func (m *Bridge) ListOutputs() ([]contracts.PortInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(destinations) == 0 {
		m.logger.Warn(contracts.ErrNoMIDIPorts.Error())
		return nil, contracts.ErrNoMIDIPorts
	}

	ports := make([]contracts.PortInfo, len(destinations))
	for i, dest := range destinations {
		entity := dest.Entity()
		ports[i] = contracts.PortInfo{
			Index:        i,
			Name:         dest.Name(),
			EntityName:   entity.Name(),
			Manufacturer: entity.Manufacturer(),
		}
	}
	return ports, nil
}

// Open connects the source at index input and the destination at index
// output. A negative index leaves that direction closed. The bridge becomes
// available once both requested ports are open.
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

	m.disconnectLocked()

	if input >= 0 {
		sources, err := coremidi.AllSources()
		if err != nil {
			return fmt.Errorf("error retrieving MIDI sources: %w", err)
		}
		if input >= len(sources) {
			m.logger.Error(contracts.ErrInvalidMIDIPort.Error(), m.logger.Field().Int("input", input))
			return fmt.Errorf("%w: input %d", contracts.ErrInvalidMIDIPort, input)
		}
		source := sources[input]

		m.inputPort, err = coremidi.NewInputPort(m.client, "Input Port", m.handleMIDIMessage)
		if err != nil {
			m.logger.Error(ErrCreateInputPort.Error())
			return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
		}
		m.portConn, err = m.inputPort.Connect(source)
		if err != nil {
			m.logger.Error(ErrMIDIConnectionError.Error())
			return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
		}
		m.logger.Info("MIDI source connected",
			m.logger.Field().Int("input", input),
			m.logger.Field().String("name", source.Name()))
	}

	if output >= 0 {
		destinations, err := coremidi.AllDestinations()
		if err != nil {
			return fmt.Errorf("error retrieving MIDI destinations: %w", err)
		}
		if output >= len(destinations) {
			m.logger.Error(contracts.ErrInvalidMIDIPort.Error(), m.logger.Field().Int("output", output))
			return fmt.Errorf("%w: output %d", contracts.ErrInvalidMIDIPort, output)
		}
		m.outputPort, err = coremidi.NewOutputPort(m.client, "Output Port")
		if err != nil {
			m.logger.Error(ErrCreateOutputPort.Error())
			return fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
		}
		m.dest = destinations[output]
		m.hasOutput = true
		m.logger.Info("MIDI destination selected",
			m.logger.Field().Int("output", output),
			m.logger.Field().String("name", m.dest.Name()))
	}
	return nil
}

// Send writes every message of buf to the selected destination, then
// signals completion.
func (m *Bridge) Send(buf []byte) error {
	m.mu.Lock()
	if !m.hasOutput {
		m.mu.Unlock()
		return ErrPortNotOpen
	}
	port, dest := m.outputPort, m.dest
	m.mu.Unlock()

	return m.Output(buf, func(cable uint8, raw []byte) error {
		packet := coremidi.NewPacket(append([]byte(nil), raw...), 0)
		return packet.Send(&port, &dest)
	})
}

// handleMIDIMessage forwards bytes read from the source to the receive handler.
func (m *Bridge) handleMIDIMessage(source coremidi.Source, packet coremidi.Packet) {
	m.wg.Add(1)
	defer m.wg.Done()

	if len(packet.Data) == 0 {
		return
	}
	m.Input(packet.Data)
}

// Close disconnects the source and waits for input callbacks in progress.
func (m *Bridge) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.logger.Info("Closing CoreMIDI bridge")
		m.SetAvailable(false)
		m.mu.Lock()
		m.disconnectLocked()
		m.mu.Unlock()
		m.wg.Wait()
		err = multierr.Append(err, m.logger.Sync())
	})
	return err
}

func (m *Bridge) disconnectLocked() {
	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}
	m.hasOutput = false
}
