package tts

import (
	"context"
	"errors"
	"testing"
)

type stubSynth struct {
	data        []byte
	contentType string
	err         error
	calls       int
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	s.calls++
	return s.data, s.contentType, s.err
}

func TestFallback_PrimarySucceeds(t *testing.T) {
	primary := &stubSynth{data: []byte("a"), contentType: "audio/mpeg"}
	secondary := &stubSynth{data: []byte("b"), contentType: "audio/basic"}
	f := NewFallback(primary, secondary)

	data, ct, err := f.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "a" || ct != "audio/mpeg" {
		t.Fatalf("expected primary result, got (%q,%q)", data, ct)
	}
	if secondary.calls != 0 {
		t.Fatalf("secondary must not run when primary succeeds")
	}
}

func TestFallback_SecondaryOnPrimaryFailure(t *testing.T) {
	primary := &stubSynth{err: errors.New("quota exceeded")}
	secondary := &stubSynth{data: []byte("b"), contentType: "audio/basic"}
	f := NewFallback(primary, secondary)

	data, ct, err := f.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(data) != "b" || ct != "audio/basic" {
		t.Fatalf("expected fallback result, got (%q,%q)", data, ct)
	}
}

func TestFallback_BothFail(t *testing.T) {
	f := NewFallback(&stubSynth{err: errors.New("one")}, &stubSynth{err: errors.New("two")})
	if _, _, err := f.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected combined error")
	}
}

func TestFallback_NilSecondary(t *testing.T) {
	f := NewFallback(&stubSynth{err: errors.New("one")}, nil)
	if _, _, err := f.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatalf("expected primary error to surface")
	}
}
