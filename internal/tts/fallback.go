package tts

import (
	"context"
	"fmt"
	"log"
)

// Fallback tries the primary synthesizer first and falls back to the
// secondary when it fails, so a provider outage degrades the voice
// instead of silencing replies.
type Fallback struct {
	primary   Synthesizer
	secondary Synthesizer
}

func NewFallback(primary, secondary Synthesizer) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	data, contentType, err := f.primary.Synthesize(ctx, text)
	if err == nil {
		return data, contentType, nil
	}
	if f.secondary == nil {
		return nil, "", err
	}
	log.Printf("tts: primary synthesizer failed (%v), trying fallback", err)
	data, contentType, ferr := f.secondary.Synthesize(ctx, text)
	if ferr != nil {
		return nil, "", fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return data, contentType, nil
}
