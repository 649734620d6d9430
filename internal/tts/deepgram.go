package tts

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// Deepgram synthesizes speech over the speak WebSocket API, collecting
// the streamed audio into one complete clip. Output is μ-law 8 kHz
// (audio/basic), which the telephony provider can play directly.
type Deepgram struct {
	apiKey string
	model  string
}

func NewDeepgram(apiKey, model string) *Deepgram {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &Deepgram{apiKey: apiKey, model: model}
}

func (d *Deepgram) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if d.apiKey == "" {
		return nil, "", fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return nil, "", fmt.Errorf("deepgram: empty text")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   "mulaw",
		SampleRate: 8000,
	}

	var (
		mu           sync.Mutex
		buf          bytes.Buffer
		lastRecvUnix int64
		seenAudio    int32
	)
	cb := &speakCollector{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		atomic.StoreInt64(&lastRecvUnix, time.Now().UnixNano())
		atomic.StoreInt32(&seenAudio, 1)
		mu.Lock()
		buf.Write(data)
		mu.Unlock()
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, "", fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, "", fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, "", fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		log.Printf("deepgram: flush error: %v", err)
	}

	// The speak socket has no end-of-clip marker; treat a short idle gap
	// after the first audio as completion, bounded by a hard deadline.
	const idleWindow = 400 * time.Millisecond
	deadline := time.Now().Add(12 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-ticker.C:
			if atomic.LoadInt32(&seenAudio) == 1 {
				last := time.Unix(0, atomic.LoadInt64(&lastRecvUnix))
				if time.Since(last) > idleWindow {
					mu.Lock()
					data := append([]byte(nil), buf.Bytes()...)
					mu.Unlock()
					return data, "audio/basic", nil
				}
			}
			if time.Now().After(deadline) {
				if atomic.LoadInt32(&seenAudio) == 0 {
					return nil, "", fmt.Errorf("deepgram: no audio received before deadline")
				}
				mu.Lock()
				data := append([]byte(nil), buf.Bytes()...)
				mu.Unlock()
				return data, "audio/basic", nil
			}
		}
	}
}

type speakCollector struct{ onBinary func([]byte) error }

func (s *speakCollector) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCollector) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCollector) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCollector) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCollector) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCollector) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCollector) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCollector) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCollector) Binary(data []byte) error {
	if s.onBinary != nil {
		return s.onBinary(data)
	}
	return nil
}
