package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echohttp "github.com/calebrieck/retech/api/http"
	"github.com/calebrieck/retech/internal/audiocache"
	"github.com/calebrieck/retech/internal/broadcast"
	"github.com/calebrieck/retech/internal/callcontrol"
	"github.com/calebrieck/retech/internal/config"
	"github.com/calebrieck/retech/internal/httpserver"
	"github.com/calebrieck/retech/internal/middleware"
	"github.com/calebrieck/retech/internal/relay"
	"github.com/calebrieck/retech/internal/session"
	"github.com/calebrieck/retech/internal/storage"
	"github.com/calebrieck/retech/internal/stt"
	"github.com/calebrieck/retech/internal/tts"
)

// sttDialer opens one realtime transcription session per call.
type sttDialer struct {
	cfg stt.Config
}

func (d sttDialer) Dial(ctx context.Context) (relay.Upstream, error) {
	return stt.Dial(ctx, d.cfg)
}

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	events := broadcast.New()
	registry := session.NewRegistry()

	cache := audiocache.New(cfg.AudioCacheTTL, cfg.AudioCacheSweep)
	defer cache.Close()

	media := relay.New(sttDialer{cfg: stt.Config{
		APIKey:         cfg.ElevenLabsKey,
		ModelID:        cfg.STTModelID,
		LanguageCode:   cfg.STTLanguageCode,
		AudioFormat:    cfg.STTAudioFormat,
		CommitStrategy: cfg.STTCommitStrategy,
	}}, events, registry)

	var synth tts.Synthesizer
	synth = tts.NewElevenLabs(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
	if cfg.DeepgramAPIKey != "" {
		synth = tts.NewFallback(synth, tts.NewDeepgram(cfg.DeepgramAPIKey, cfg.DeepgramModel))
	}

	calls := callcontrol.New(callcontrol.Config{
		AccountSID:    cfg.TwilioAccountSID,
		AuthToken:     cfg.TwilioAuthToken,
		PublicBaseURL: cfg.PublicBaseURL,
		Greeting:      cfg.Greeting,
	}, registry)

	handlers := echohttp.NewHandlers()
	handlers.Events = events
	handlers.Cache = cache
	handlers.Synth = synth
	handlers.Calls = calls
	handlers.Media = media
	handlers.OutboundTo = cfg.OutboundTo
	handlers.OutboundFrom = cfg.OutboundFrom
	handlers.VoiceAuth = middleware.TwilioAuth(func() string { return cfg.TwilioAuthToken })

	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		store, err := storage.New(storage.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("storage disabled: %v", err)
		} else {
			handlers.Store = store
		}
	}

	e := httpserver.New()
	handlers.Register(e)

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
