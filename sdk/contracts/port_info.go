package contracts

// PortInfo describes an OS-level MIDI port a bridge transport can attach to.
type PortInfo struct {
	Index        int    // Position in the OS port list.
	Name         string // Port name.
	Manufacturer string // Port manufacturer, when the OS reports one.
	EntityName   string // Name of the entity to which the port belongs.
}
