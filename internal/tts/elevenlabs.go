// Package tts turns reply text into playable audio bytes.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Synthesizer produces one complete audio clip for the given text, along
// with its content type.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (data []byte, contentType string, err error)
}

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabs synthesizes speech via the text-to-speech REST endpoint and
// returns a full MP3 clip.
type ElevenLabs struct {
	apiKey  string
	voiceID string
	modelID string
	// BaseURL overrides the production endpoint, mainly for tests.
	BaseURL    string
	httpClient *http.Client
}

func NewElevenLabs(apiKey, voiceID, modelID string) *ElevenLabs {
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabs{
		apiKey:     apiKey,
		voiceID:    voiceID,
		modelID:    modelID,
		BaseURL:    elevenLabsBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if e.apiKey == "" || e.voiceID == "" {
		return nil, "", fmt.Errorf("elevenlabs: api key or voice id missing")
	}

	body, err := json.Marshal(map[string]any{
		"text":     text,
		"model_id": e.modelID,
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: encoding request: %w", err)
	}

	url := e.BaseURL + "/v1/text-to-speech/" + e.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: building request: %w", err)
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, "", fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, preview)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: reading audio: %w", err)
	}
	return data, "audio/mpeg", nil
}
