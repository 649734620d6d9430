// Package broadcast fans call events out to every connected observer.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultWriteTimeout bounds how long one subscriber send may block. A
// subscriber that cannot keep up is dropped instead of stalling the relay.
const DefaultWriteTimeout = 5 * time.Second

// Sink receives serialized events. Production sinks wrap a websocket
// connection; tests use in-memory fakes.
type Sink interface {
	WriteEvent(data []byte) error
}

// Broadcaster delivers events to all current subscribers. Fan-out is
// serialized under one mutex so every subscriber observes publishes in
// publish order; individual sends are deadline-bounded by the Sink.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[Sink]struct{}
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[Sink]struct{})}
}

// Subscribe adds a sink to the fan-out set.
func (b *Broadcaster) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[s] = struct{}{}
}

// Unsubscribe removes a sink. Safe to call for sinks already removed.
func (b *Broadcaster) Unsubscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Len reports the current number of subscribers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers the event to every current subscriber. A failed send
// never affects delivery to the rest; the failing subscriber is removed
// from the set after this publish completes. Publish never returns an
// error.
func (b *Broadcaster) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("broadcast: dropping unmarshalable event %s/%s: %v", ev.Source, ev.Event, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var dead []Sink
	for s := range b.subs {
		if werr := s.WriteEvent(data); werr != nil {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		delete(b.subs, s)
	}
	if len(dead) > 0 {
		log.Printf("broadcast: removed %d dead subscriber(s), %d remaining", len(dead), len(b.subs))
	}
}

// ConnSink adapts a websocket connection to the Sink interface, applying a
// write deadline per send.
type ConnSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func NewConnSink(conn *websocket.Conn, timeout time.Duration) *ConnSink {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &ConnSink{conn: conn, timeout: timeout}
}

func (s *ConnSink) WriteEvent(data []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
