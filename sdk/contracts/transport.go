package contracts

// Transport is the bulk-endpoint facility the framing layer runs above.
//
// Send hands a buffer of whole 4-byte packets to the IN endpoint. The buffer
// must not be retained after the send-complete handler has been invoked.
// Handlers may be invoked from any goroutine, including synchronously from
// within Send; a nil handler detaches the previous one. Registering an
// availability handler on a transport that is already available invokes it
// once with true.
type Transport interface {
	Send(buf []byte) error
	OnSendComplete(handler func())
	OnReceive(handler func(frame []byte))
	OnAvailabilityChange(handler func(available bool))
}

// PortTransport is a Transport bridged onto OS MIDI ports.
type PortTransport interface {
	Transport
	ListInputs() ([]PortInfo, error)
	ListOutputs() ([]PortInfo, error)
	Open(input, output int) error
	Close() error
}
