//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// NewBridge reports that winmm is not available on this platform.
func NewBridge(options *contracts.ClientOptions) (contracts.PortTransport, error) {
	options.Logger.Warn("winmm bridge requested on a non-Windows system")
	return nil, fmt.Errorf("%w: winmm requires windows", contracts.ErrUnsupportedOS)
}
