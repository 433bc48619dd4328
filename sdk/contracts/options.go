package contracts

import "time"

// DefaultMaxPacketSize is the bulk endpoint size of a full-speed USB-MIDI interface.
const DefaultMaxPacketSize = 64

// BridgeConfig holds configuration for OS MIDI bridge transports.
type BridgeConfig struct {
	ClientName string // Name registered with the OS MIDI service.
	InputPort  int    // Index of the OS input port to read from.
	OutputPort int    // Index of the OS output port to write to.
}

// ClientOptions defines the configuration options for a USB-MIDI device.
type ClientOptions struct {
	Logger        Logger           // Logger for logging events and errors.
	LogLevel      LogLevel         // Level of logging to use.
	LogFilePath   string           // File path for logging if file logging is enabled.
	Listener      Listener         // Receiver of decoded MIDI traffic.
	Cables        int              // Number of virtual cables in use (1-16).
	MaxPacketSize int              // Bulk endpoint maximum packet size in bytes.
	Clock         func() time.Time // Time source for sysex timing.
	BridgeConfig  *BridgeConfig    // Configuration specific to OS bridge transports.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the device.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the device.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to the given file.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithListener sets the receiver of decoded MIDI traffic.
func WithListener(l Listener) Option {
	return func(opts *ClientOptions) {
		opts.Listener = l
	}
}

// WithCables limits the cable numbers accepted for transmit.
func WithCables(n int) Option {
	return func(opts *ClientOptions) {
		opts.Cables = n
	}
}

// WithMaxPacketSize sets the bulk endpoint maximum packet size.
func WithMaxPacketSize(size int) Option {
	return func(opts *ClientOptions) {
		opts.MaxPacketSize = size
	}
}

// WithClock replaces the time source used for sysex timing.
func WithClock(now func() time.Time) Option {
	return func(opts *ClientOptions) {
		opts.Clock = now
	}
}

// WithBridgeConfig sets the OS bridge configuration.
func WithBridgeConfig(config BridgeConfig) Option {
	return func(opts *ClientOptions) {
		opts.BridgeConfig = &config
	}
}
