package main

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"golang.org/x/net/websocket"
)

// Event is one received-traffic notification streamed to websocket clients.
type Event struct {
	Type      string `json:"type"`
	Cable     uint8  `json:"cable"`
	Data      string `json:"data,omitempty"`
	Total     int    `json:"total,omitempty"`
	ElapsedMs int64  `json:"elapsedMs,omitempty"`
	Available *bool  `json:"available,omitempty"`
	Session   string `json:"session,omitempty"`
	Error     string `json:"error,omitempty"`
}

// subscriberQueue bounds the events buffered for one slow client.
const subscriberQueue = 64

// Broadcaster fans listener callbacks out to websocket subscribers.
// It implements contracts.Listener.
type Broadcaster struct {
	logger contracts.Logger
	mu     sync.RWMutex
	subs   map[string]chan Event
}

var _ contracts.Listener = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(logger contracts.Logger) *Broadcaster {
	return &Broadcaster{logger: logger, subs: make(map[string]chan Event)}
}

// Subscribe registers a subscriber and returns its id and event channel.
func (b *Broadcaster) Subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberQueue)
	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	ch, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (b *Broadcaster) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Warn("Event queue full; dropping event", b.logger.Field().String("subscriber", id))
		}
	}
}

func (b *Broadcaster) OnMessage(cable uint8, msg []byte) {
	b.publish(Event{Type: "message", Cable: cable, Data: hex.EncodeToString(msg)})
}

func (b *Broadcaster) OnSysexStart(cable uint8) {
	b.publish(Event{Type: "sysex_start", Cable: cable})
}

// OnSysexData is not streamed; sysex payloads are reported by size only.
func (b *Broadcaster) OnSysexData(cable uint8, data []byte) {}

func (b *Broadcaster) OnSysexEnd(cable uint8, total int, elapsed time.Duration) {
	b.publish(Event{Type: "sysex_end", Cable: cable, Total: total, ElapsedMs: elapsed.Milliseconds()})
}

func (b *Broadcaster) OnSysexSent(r contracts.SysexReport) {
	e := Event{Type: "sysex_sent", Cable: r.Cable, Total: r.Bytes, ElapsedMs: r.Elapsed.Milliseconds(), Session: r.SessionID}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	b.publish(e)
}

func (b *Broadcaster) OnAvailabilityChange(available bool) {
	b.publish(Event{Type: "availability", Available: &available})
}

// Serve streams events to ws until the client goes away.
func (b *Broadcaster) Serve(ws *websocket.Conn) {
	id, events := b.Subscribe()
	defer b.Unsubscribe(id)
	b.logger.Info("Event subscriber connected", b.logger.Field().String("subscriber", id))

	// Detects the browser closing the socket.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var message string
		for {
			if err := websocket.Message.Receive(ws, &message); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-events:
			if err := ws.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
				return
			}
			if err := websocket.JSON.Send(ws, e); err != nil {
				b.logger.Debug("Event subscriber write failed", b.logger.Field().Error("error", err))
				return
			}
		case <-gone:
			b.logger.Info("Event subscriber disconnected", b.logger.Field().String("subscriber", id))
			return
		}
	}
}
