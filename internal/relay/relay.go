// Package relay bridges a live call's media stream to the realtime
// speech-to-text service. One call means two coupled loops: inbound audio
// frames forwarded upstream, and upstream transcript messages normalized
// into broadcast events. Whichever loop ends first tears the other down.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/calebrieck/retech/internal/broadcast"
	"github.com/calebrieck/retech/internal/codec"
	"github.com/calebrieck/retech/internal/session"
)

// DefaultIdleTimeout tears down a call whose telephony leg stops sending
// frames without a stop event, so an abandoned stream cannot hold the
// upstream connection forever.
const DefaultIdleTimeout = 5 * time.Minute

// Upstream is the speech-service side of one call.
type Upstream interface {
	SendAudioChunk(payloadB64 string) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens the upstream connection for a new call.
type Dialer interface {
	Dial(ctx context.Context) (Upstream, error)
}

// Publisher receives the events the relay emits.
type Publisher interface {
	Publish(broadcast.Event)
}

// Relay owns the per-call duplex bridge lifecycle.
type Relay struct {
	dialer      Dialer
	events      Publisher
	registry    *session.Registry
	upgrader    websocket.Upgrader
	idleTimeout time.Duration
}

func New(dialer Dialer, events Publisher, registry *session.Registry) *Relay {
	return &Relay{
		dialer:   dialer,
		events:   events,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			// Twilio does not send an Origin header on media streams.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		idleTimeout: DefaultIdleTimeout,
	}
}

// SetIdleTimeout overrides the inbound idle timeout. Zero disables it.
func (r *Relay) SetIdleTimeout(d time.Duration) { r.idleTimeout = d }

// HandleMediaStream accepts the telephony provider's media socket and runs
// the bridge until the call ends. Failures are terminal for the call and
// surface only as broadcast events; the handler itself never errors.
func (r *Relay) HandleMediaStream(c echo.Context) error {
	conn, err := r.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("relay: media socket upgrade failed: %v", err)
		return nil
	}
	log.Printf("relay: media stream connected from %s", c.RealIP())

	up, err := r.dialer.Dial(c.Request().Context())
	if err != nil {
		log.Printf("relay: upstream dial failed: %v", err)
		r.events.Publish(broadcast.Event{
			Source: broadcast.SourceServer,
			Event:  broadcast.EventError,
			Error:  err.Error(),
		})
		_ = conn.Close()
		return nil
	}

	b := &bridge{relay: r, conn: conn, up: up}
	defer b.closeBoth()

	g := new(errgroup.Group)
	g.Go(func() error {
		defer b.closeBoth()
		return b.pumpInbound()
	})
	g.Go(func() error {
		defer b.closeBoth()
		return b.pumpUpstream()
	})

	if err := g.Wait(); err != nil {
		callSID, streamSID := b.ids()
		log.Printf("relay: call ended with error: %v", err)
		r.events.Publish(broadcast.Event{
			Source:    broadcast.SourceServer,
			Event:     broadcast.EventError,
			CallSID:   callSID,
			StreamSID: streamSID,
			Error:     err.Error(),
		})
		// A failed relay must not leave a stale active session behind.
		if callSID != "" {
			r.registry.ClearIf(callSID)
		}
	}
	return nil
}

// bridge is the shared state of one in-flight call.
type bridge struct {
	relay *Relay
	conn  *websocket.Conn
	up    Upstream

	mu        sync.Mutex
	callSID   string
	streamSID string

	closing atomic.Bool
	once    sync.Once
}

// closeBoth closes both sockets exactly once. Ending either loop unblocks
// the sibling's pending read, so the pairing always terminates together.
func (b *bridge) closeBoth() {
	b.once.Do(func() {
		b.closing.Store(true)
		_ = b.conn.Close()
		_ = b.up.Close()
	})
}

func (b *bridge) setIDs(callSID, streamSID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callSID, b.streamSID = callSID, streamSID
}

func (b *bridge) ids() (callSID, streamSID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.callSID, b.streamSID
}

// pumpInbound reads telephony frames and forwards audio upstream
// one-to-one, in arrival order, with no buffering.
func (b *bridge) pumpInbound() error {
	for {
		if b.relay.idleTimeout > 0 {
			_ = b.conn.SetReadDeadline(time.Now().Add(b.relay.idleTimeout))
		}
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if b.closing.Load() || isExpectedClose(err) {
				log.Printf("relay: telephony socket disconnected")
				return nil
			}
			return fmt.Errorf("reading media frame: %w", err)
		}

		frame, err := codec.DecodeMediaFrame(data)
		if err != nil {
			// Malformed frames are forwarded for observability, never fatal.
			raw, text := eventPayload(data)
			b.relay.events.Publish(broadcast.Event{
				Source: broadcast.SourceTwilio,
				Event:  broadcast.EventMessage,
				Raw:    raw,
				Text:   text,
			})
			continue
		}

		switch f := frame.(type) {
		case codec.StartFrame:
			b.setIDs(f.CallSID, f.StreamSID)
			b.relay.registry.SetActive(session.Session{CallSID: f.CallSID, StreamSID: f.StreamSID})
			log.Printf("relay: stream started call=%s stream=%s", f.CallSID, f.StreamSID)
			b.relay.events.Publish(broadcast.Event{
				Source:    broadcast.SourceTwilio,
				Event:     broadcast.EventStart,
				CallSID:   f.CallSID,
				StreamSID: f.StreamSID,
			})

		case codec.MediaFrame:
			if err := b.up.SendAudioChunk(f.PayloadB64); err != nil {
				return fmt.Errorf("forwarding audio upstream: %w", err)
			}

		case codec.StopFrame:
			callSID, streamSID := b.ids()
			log.Printf("relay: stream stopped call=%s", callSID)
			b.relay.events.Publish(broadcast.Event{
				Source:    broadcast.SourceTwilio,
				Event:     broadcast.EventStop,
				CallSID:   callSID,
				StreamSID: streamSID,
			})
			b.relay.registry.ClearIf(callSID)
			return nil

		case codec.IgnoredFrame:
			// forward-compatible: skip
		}
	}
}

// pumpUpstream reads speech-service messages. The first message is always
// surfaced verbatim (it usually carries the session acknowledgement); the
// rest become transcript events on a hit or generic message events on a
// miss, so nothing from upstream is silently dropped.
func (b *bridge) pumpUpstream() error {
	first := true
	for {
		data, err := b.up.ReadMessage()
		if err != nil {
			callSID, streamSID := b.ids()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				log.Printf("relay: upstream closed code=%d reason=%q", closeErr.Code, closeErr.Text)
				b.relay.events.Publish(broadcast.Event{
					Source:    broadcast.SourceSpeech,
					Event:     broadcast.EventClosed,
					CallSID:   callSID,
					StreamSID: streamSID,
					Code:      closeErr.Code,
					Reason:    closeErr.Text,
				})
				return nil
			}
			if b.closing.Load() {
				return nil
			}
			return fmt.Errorf("reading upstream message: %w", err)
		}

		callSID, streamSID := b.ids()

		if first {
			first = false
			raw, text := eventPayload(data)
			b.relay.events.Publish(broadcast.Event{
				Source:    broadcast.SourceSpeech,
				Event:     broadcast.EventFirstMessage,
				CallSID:   callSID,
				StreamSID: streamSID,
				Message:   raw,
				Text:      text,
			})
			continue
		}

		if text, isFinal, ok := codec.ExtractTranscript(data); ok {
			b.relay.events.Publish(broadcast.Event{
				Source:    broadcast.SourceSpeech,
				Event:     broadcast.EventTranscript,
				CallSID:   callSID,
				StreamSID: streamSID,
				Text:      text,
				IsFinal:   isFinal,
				Raw:       append(json.RawMessage(nil), data...),
			})
		} else {
			raw, text := eventPayload(data)
			b.relay.events.Publish(broadcast.Event{
				Source:    broadcast.SourceSpeech,
				Event:     broadcast.EventMessage,
				CallSID:   callSID,
				StreamSID: streamSID,
				Raw:       raw,
				Text:      text,
			})
		}
	}
}

// eventPayload carries the payload as raw JSON when it is valid JSON and
// as plain text otherwise, since events with invalid raw JSON cannot be
// serialized for subscribers.
func eventPayload(data []byte) (raw json.RawMessage, text string) {
	if json.Valid(data) {
		return append(json.RawMessage(nil), data...), ""
	}
	return nil, string(data)
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
