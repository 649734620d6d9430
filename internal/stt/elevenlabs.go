// Package stt is the client side of the realtime speech-to-text socket.
package stt

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/calebrieck/retech/internal/codec"
)

const defaultEndpoint = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"

// Config describes one realtime transcription session.
type Config struct {
	APIKey string
	// Endpoint overrides the production URL, mainly for tests.
	Endpoint string
	// ModelID selects the realtime model; defaults to scribe_v2_realtime.
	ModelID string
	// LanguageCode defaults to "en".
	LanguageCode string
	// AudioFormat must match what the telephony media stream carries;
	// defaults to ulaw_8000, Twilio's narrow-band companded format.
	AudioFormat string
	// CommitStrategy defaults to "vad".
	CommitStrategy   string
	HandshakeTimeout time.Duration
}

func (c Config) url() string {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	q := url.Values{}
	q.Set("model_id", orDefault(c.ModelID, "scribe_v2_realtime"))
	q.Set("language_code", orDefault(c.LanguageCode, "en"))
	q.Set("audio_format", orDefault(c.AudioFormat, "ulaw_8000"))
	q.Set("commit_strategy", orDefault(c.CommitStrategy, "vad"))
	return endpoint + "?" + q.Encode()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Client is one live connection to the speech service.
type Client struct {
	conn *websocket.Conn

	// guards writes; reads stay single-reader by contract
	writeMu sync.Mutex
}

// Dial connects, authenticates via the xi-api-key header and sends the
// session-initiation control message. A failed dial is terminal for the
// call; the relay never retries.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech service API key is empty")
	}

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	header := http.Header{"xi-api-key": {cfg.APIKey}}

	conn, resp, err := dialer.DialContext(ctx, cfg.url(), header)
	if err != nil {
		if resp != nil {
			log.Printf("stt: connection refused with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("connecting to speech service: %w", err)
	}

	// Session-start control message; harmless if the service ignores it.
	if err := conn.WriteJSON(map[string]string{"message_type": "start"}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sending session start: %w", err)
	}
	return &Client{conn: conn}, nil
}

// SendAudioChunk forwards one base64 audio payload as an
// input_audio_chunk message.
func (c *Client) SendAudioChunk(payloadB64 string) error {
	data, err := codec.EncodeAudioChunk(payloadB64)
	if err != nil {
		return fmt.Errorf("encoding audio chunk: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage returns the next raw message from the service.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *Client) Close() error {
	return c.conn.Close()
}
