// Package loopback provides an in-process pair of connected USB-MIDI
// transports. A buffer sent on one end is delivered to the receive handler of
// the other, then the sender is signalled completion.
package loopback

import (
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
)

// queueDepth bounds the sends an async endpoint accepts before Send blocks.
const queueDepth = 16

// Option configures a loopback pair.
type Option func(*config)

type config struct {
	async bool
}

// WithAsync delivers buffers and completions from a goroutine per endpoint
// instead of from inside Send.
func WithAsync() Option {
	return func(c *config) {
		c.async = true
	}
}

// Endpoint is one end of a loopback pair. It implements contracts.Transport
// and io.Closer.
type Endpoint struct {
	name string
	peer *Endpoint
	link *link

	mu       sync.RWMutex
	complete func()
	receive  func(frame []byte)
	avail    func(available bool)

	queue     chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	done      sync.WaitGroup
}

// link is the state shared by both ends.
type link struct {
	connected atomic.Bool
}

var _ contracts.Transport = (*Endpoint)(nil)

// Pair creates two connected endpoints. They report unavailable until
// Connect is called.
func Pair(opts ...Option) (a, b *Endpoint) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	l := &link{}
	a = newEndpoint("a", l, cfg)
	b = newEndpoint("b", l, cfg)
	a.peer, b.peer = b, a
	return a, b
}

func newEndpoint(name string, l *link, cfg config) *Endpoint {
	e := &Endpoint{name: name, link: l, closeCh: make(chan struct{})}
	if cfg.async {
		e.queue = make(chan []byte, queueDepth)
		e.done.Add(1)
		go e.run()
	}
	return e
}

// Name returns "a" or "b".
func (e *Endpoint) Name() string {
	return e.name
}

// Connect makes both ends available.
func (e *Endpoint) Connect() {
	if e.link.connected.CompareAndSwap(false, true) {
		e.signal(true)
		e.peer.signal(true)
	}
}

// Disconnect makes both ends unavailable. Buffers already queued are still
// delivered.
func (e *Endpoint) Disconnect() {
	if e.link.connected.CompareAndSwap(true, false) {
		e.signal(false)
		e.peer.signal(false)
	}
}

// Connected reports whether the pair is connected.
func (e *Endpoint) Connected() bool {
	return e.link.connected.Load()
}

// Send delivers a copy of buf to the peer.
func (e *Endpoint) Send(buf []byte) error {
	if !e.link.connected.Load() {
		return contracts.ErrNotAvailable
	}
	frame := append([]byte(nil), buf...)
	if e.queue == nil {
		e.deliver(frame)
		return nil
	}
	select {
	case e.queue <- frame:
		return nil
	case <-e.closeCh:
		return contracts.ErrNotAvailable
	}
}

// OnSendComplete registers the completion handler.
func (e *Endpoint) OnSendComplete(handler func()) {
	e.mu.Lock()
	e.complete = handler
	e.mu.Unlock()
}

// OnReceive registers the receive handler.
func (e *Endpoint) OnReceive(handler func(frame []byte)) {
	e.mu.Lock()
	e.receive = handler
	e.mu.Unlock()
}

// OnAvailabilityChange registers the availability handler. It is invoked at
// once when the pair is already connected.
func (e *Endpoint) OnAvailabilityChange(handler func(available bool)) {
	e.mu.Lock()
	e.avail = handler
	e.mu.Unlock()
	if handler != nil && e.link.connected.Load() {
		handler(true)
	}
}

// Close stops the delivery goroutine of an async endpoint after draining its
// queue. The peer is not closed.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.closeCh)
		e.done.Wait()
	})
	return nil
}

func (e *Endpoint) run() {
	defer e.done.Done()
	for {
		select {
		case frame := <-e.queue:
			e.deliver(frame)
		case <-e.closeCh:
			for {
				select {
				case frame := <-e.queue:
					e.deliver(frame)
				default:
					return
				}
			}
		}
	}
}

func (e *Endpoint) deliver(frame []byte) {
	e.peer.mu.RLock()
	receive := e.peer.receive
	e.peer.mu.RUnlock()
	if receive != nil {
		receive(frame)
	}

	e.mu.RLock()
	complete := e.complete
	e.mu.RUnlock()
	if complete != nil {
		complete()
	}
}

func (e *Endpoint) signal(available bool) {
	e.mu.RLock()
	avail := e.avail
	e.mu.RUnlock()
	if avail != nil {
		avail(available)
	}
}
