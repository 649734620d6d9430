package tts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabs_Synthesize(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	e := NewElevenLabs("sk-test", "voice-1", "")
	e.BaseURL = srv.URL

	data, contentType, err := e.Synthesize(context.Background(), "hello caller")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "mp3-bytes" || contentType != "audio/mpeg" {
		t.Fatalf("got (%q,%q)", data, contentType)
	}
	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Fatalf("path wrong: %q", gotPath)
	}
	if gotKey != "sk-test" {
		t.Fatalf("api key header wrong: %q", gotKey)
	}
	if gotBody["text"] != "hello caller" || gotBody["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("request body wrong: %v", gotBody)
	}
}

func TestElevenLabs_SynthesizeErrors(t *testing.T) {
	e := NewElevenLabs("", "", "")
	if _, _, err := e.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected error without credentials")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	e = NewElevenLabs("sk-bad", "voice-1", "")
	e.BaseURL = srv.URL
	if _, _, err := e.Synthesize(context.Background(), "x"); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}

func TestDeepgram_RequiresKeyAndText(t *testing.T) {
	d := NewDeepgram("", "")
	if _, _, err := d.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error without api key")
	}
	d = NewDeepgram("dg-key", "")
	if _, _, err := d.Synthesize(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty text")
	}
}
