// Package usbmidi is the entry point of the USB-MIDI framing layer. It builds
// a device over any contracts.Transport, or over the OS MIDI bridge of the
// running platform.
package usbmidi

import (
	"errors"

	"github.com/leandrodaf/usbmidi/internal/device"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"go.uber.org/multierr"
)

// NewUSBMIDI creates a device on top of transport with the specified options.
// It applies default options and registers the device's handlers on the
// transport.
//
// transport contracts.Transport: The bulk endpoint facility to frame over.
// opts ...contracts.Option: A variadic list of option functions to customize the device.
//
// Returns:
//   - contracts.USBMIDI: The logical MIDI surface.
//   - error: An error, if any occurred while applying the options.
func NewUSBMIDI(transport contracts.Transport, opts ...contracts.Option) (contracts.USBMIDI, error) {
	if transport == nil {
		return nil, errors.New("usbmidi: nil transport")
	}
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}
	return device.New(transport, options), nil
}

// NewBridgedUSBMIDI creates a device over the OS MIDI bridge and opens the
// ports named by the bridge configuration.
//
// Returns:
//   - contracts.USBMIDI: The logical MIDI surface; closing it closes the bridge.
//   - contracts.PortTransport: The opened bridge, for port listing and reselection.
//   - error: An error if the OS is unsupported or the ports cannot be opened.
func NewBridgedUSBMIDI(opts ...contracts.Option) (contracts.USBMIDI, contracts.PortTransport, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, nil, err
	}

	transport, err := NewBridgeTransport(&options)
	if err != nil {
		return nil, nil, err
	}

	dev := device.New(transport, options)
	cfg := options.BridgeConfig
	if err := transport.Open(cfg.InputPort, cfg.OutputPort); err != nil {
		return nil, nil, multierr.Append(err, dev.Close())
	}
	return dev, transport, nil
}
