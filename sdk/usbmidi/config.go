package usbmidi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"gopkg.in/yaml.v3"
)

// Config is the YAML file form of the client options.
type Config struct {
	LogLevel      string       `yaml:"LogLevel"`
	LogFile       string       `yaml:"LogFile"`
	Cables        int          `yaml:"Cables"`
	MaxPacketSize int          `yaml:"MaxPacketSize"`
	Bridge        BridgeConfig `yaml:"Bridge"`
	HTTP          HTTPConfig   `yaml:"HTTP"`
}

// BridgeConfig selects the OS MIDI ports.
type BridgeConfig struct {
	ClientName string `yaml:"ClientName"`
	InputPort  int    `yaml:"InputPort"`
	OutputPort int    `yaml:"OutputPort"`
}

// HTTPConfig configures the control server of the demo harness.
type HTTPConfig struct {
	Addr string `yaml:"Addr"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML configuration. Unknown keys are rejected and an
// empty document yields the defaults.
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{
		Bridge: BridgeConfig{ClientName: DefaultClientName},
		HTTP:   HTTPConfig{Addr: ":8080"},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return config, nil
}

// Options converts the configuration into client options.
func (c *Config) Options() ([]contracts.Option, error) {
	level, ok := contracts.ParseLogLevel(c.LogLevel)
	if !ok {
		return nil, fmt.Errorf("%w: unknown log level %q", contracts.ErrInvalidOption, c.LogLevel)
	}

	opts := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithCables(c.Cables),
		contracts.WithMaxPacketSize(c.MaxPacketSize),
		contracts.WithBridgeConfig(contracts.BridgeConfig{
			ClientName: c.Bridge.ClientName,
			InputPort:  c.Bridge.InputPort,
			OutputPort: c.Bridge.OutputPort,
		}),
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	return opts, nil
}
