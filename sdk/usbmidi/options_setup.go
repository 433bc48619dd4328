package usbmidi

import (
	"fmt"
	"time"

	"github.com/leandrodaf/usbmidi/internal/logger"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// DefaultClientName is the name registered with the OS MIDI service when no
// bridge configuration is given.
const DefaultClientName = "GO USB-MIDI Bridge"

// applyDefaultOptions sets default values for ClientOptions if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify ClientOptions.
//
// Returns:
//   - contracts.ClientOptions: A structure containing the finalized client options with defaults applied.
//   - error: contracts.ErrInvalidOption when a value is out of range.
func applyDefaultOptions(opts ...contracts.Option) (contracts.ClientOptions, error) {
	options := &contracts.ClientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	switch {
	case options.Cables < 0 || options.Cables > contracts.NumCables:
		return contracts.ClientOptions{}, fmt.Errorf("%w: cables must be 1-%d, got %d",
			contracts.ErrInvalidOption, contracts.NumCables, options.Cables)
	case options.MaxPacketSize < 0 || options.MaxPacketSize%4 != 0:
		return contracts.ClientOptions{}, fmt.Errorf("%w: max packet size must be a positive multiple of 4, got %d",
			contracts.ErrInvalidOption, options.MaxPacketSize)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.Listener == nil {
		options.Listener = contracts.ListenerFuncs{}
	}
	if options.Cables == 0 {
		options.Cables = contracts.NumCables
	}
	if options.MaxPacketSize == 0 {
		options.MaxPacketSize = contracts.DefaultMaxPacketSize
	}
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.BridgeConfig == nil {
		options.BridgeConfig = &contracts.BridgeConfig{ClientName: DefaultClientName}
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
