package contracts

import "time"

// ListenerFuncs adapts plain functions to the Listener interface.
// Nil fields are skipped.
type ListenerFuncs struct {
	Message      func(cable uint8, msg []byte)
	SysexStart   func(cable uint8)
	SysexData    func(cable uint8, data []byte)
	SysexEnd     func(cable uint8, total int, elapsed time.Duration)
	SysexSent    func(report SysexReport)
	Availability func(available bool)
}

var _ Listener = ListenerFuncs{}

func (l ListenerFuncs) OnMessage(cable uint8, msg []byte) {
	if l.Message != nil {
		l.Message(cable, msg)
	}
}

func (l ListenerFuncs) OnSysexStart(cable uint8) {
	if l.SysexStart != nil {
		l.SysexStart(cable)
	}
}

func (l ListenerFuncs) OnSysexData(cable uint8, data []byte) {
	if l.SysexData != nil {
		l.SysexData(cable, data)
	}
}

func (l ListenerFuncs) OnSysexEnd(cable uint8, total int, elapsed time.Duration) {
	if l.SysexEnd != nil {
		l.SysexEnd(cable, total, elapsed)
	}
}

func (l ListenerFuncs) OnSysexSent(report SysexReport) {
	if l.SysexSent != nil {
		l.SysexSent(report)
	}
}

func (l ListenerFuncs) OnAvailabilityChange(available bool) {
	if l.Availability != nil {
		l.Availability(available)
	}
}
