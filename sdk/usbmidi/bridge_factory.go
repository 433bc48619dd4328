package usbmidi

import (
	"fmt"
	"runtime"

	"github.com/leandrodaf/usbmidi/internal/midi/mididarwin"
	"github.com/leandrodaf/usbmidi/internal/midi/midiwindows"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// bridgeInitializers maps OS names to corresponding bridge transport initializers.
var bridgeInitializers = map[string]func(*contracts.ClientOptions) (contracts.PortTransport, error){
	"darwin":  mididarwin.NewBridge,  // macOS (Darwin) CoreMIDI bridge.
	"windows": midiwindows.NewBridge, // Windows winmm bridge.
}

// NewBridgeTransport creates the OS MIDI bridge for the current operating system.
// It supports macOS (Darwin) and Windows, returning contracts.ErrUnsupportedOS otherwise.
//
// opts *contracts.ClientOptions: Configuration options; Logger and BridgeConfig are used.
//
// Returns:
//   - contracts.PortTransport: A bridge that is not yet open.
//   - error: An error if the operating system is unsupported or if initialization fails.
func NewBridgeTransport(opts *contracts.ClientOptions) (contracts.PortTransport, error) {
	return newBridgeTransport(runtime.GOOS, opts)
}

func newBridgeTransport(goos string, opts *contracts.ClientOptions) (contracts.PortTransport, error) {
	if initializer, exists := bridgeInitializers[goos]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrUnsupportedOS, goos)
}
