//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// NewBridge reports that CoreMIDI is not available on this platform.
func NewBridge(options *contracts.ClientOptions) (contracts.PortTransport, error) {
	options.Logger.Warn("CoreMIDI bridge requested on a non-macOS system")
	return nil, fmt.Errorf("%w: CoreMIDI requires darwin", contracts.ErrUnsupportedOS)
}
